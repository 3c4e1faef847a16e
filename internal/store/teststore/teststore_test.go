package teststore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/store"
)

func TestCreateProjectSeedsMainRift(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ada", "ada@example.com")
	require.NoError(t, err)

	proj, main, err := s.CreateProject(ctx, "rift-demo", "demo project", u.ID)
	require.NoError(t, err)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, proj.ID, main.ProjectID)

	member, err := s.IsProjectMember(ctx, proj.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestCreateProjectNameConflict(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	u, _ := s.CreateUser(ctx, "ada", "ada@example.com")
	_, _, err := s.CreateProject(ctx, "dup", "", u.ID)
	require.NoError(t, err)

	_, _, err = s.CreateProject(ctx, "dup", "", u.ID)
	require.ErrorIs(t, err, store.ErrNameConflict)
}

func TestSwitchRiftRequiresMembership(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "owner", "owner@example.com")
	outsider, _ := s.CreateUser(ctx, "outsider", "outsider@example.com")
	_, main, _ := s.CreateProject(ctx, "proj", "", owner.ID)

	require.NoError(t, s.SwitchRift(ctx, owner.ID, main.ID))
	err := s.SwitchRift(ctx, outsider.ID, main.ID)
	require.ErrorIs(t, err, store.ErrNotMember)
}

func TestCommitCheckpointUpdatesRiftFilesAndHistory(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	u, _ := s.CreateUser(ctx, "ada", "ada@example.com")
	_, main, _ := s.CreateProject(ctx, "proj", "", u.ID)

	cp1, err := s.CommitCheckpoint(ctx, store.CommitRequest{
		RiftID:       main.ID,
		AuthorUserID: u.ID,
		Message:      "first",
		Changes: []model.FileChange{
			{Path: "a.txt", ChangeType: model.ChangeCreated, NewContentHash: "hash1"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, cp1.ParentCheckpointID)

	cp2, err := s.CommitCheckpoint(ctx, store.CommitRequest{
		RiftID:       main.ID,
		AuthorUserID: u.ID,
		Message:      "second",
		Changes: []model.FileChange{
			{Path: "a.txt", ChangeType: model.ChangeModified, NewContentHash: "hash2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, cp1.ID, cp2.ParentCheckpointID)

	state, err := s.GetRiftState(ctx, main.ID)
	require.NoError(t, err)
	assert.Equal(t, cp2.ID, state.LastCheckpointID)
	require.Len(t, state.Files, 1)
	assert.Equal(t, "hash2", state.Files[0].ContentHash)

	history, err := s.GetRiftHistory(ctx, main.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, cp2.ID, history[0].ID)
	assert.Equal(t, cp1.ID, history[1].ID)

	hash, err := s.GetCheckpointBlobHash(ctx, main.ID, cp2.ID, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hash2", hash)
}

func TestCreateRiftForksFromParentAndRejectsDuplicateName(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "ada", "ada@example.com")
	proj, main, _ := s.CreateProject(ctx, "proj", "", owner.ID)

	fork, err := s.CreateRift(ctx, proj.ID, "feature-x", main.ID)
	require.NoError(t, err)
	assert.Equal(t, main.ID, fork.ParentRiftID)
	assert.Equal(t, proj.ID, fork.ProjectID)

	rifts, err := s.ListRifts(ctx, proj.ID)
	require.NoError(t, err)
	assert.Len(t, rifts, 2)

	_, err = s.CreateRift(ctx, proj.ID, "feature-x", "")
	require.ErrorIs(t, err, store.ErrNameConflict)
}

func TestGetCheckpointBlobHashAfterDelete(t *testing.T) {
	s := New(t)
	ctx := context.Background()

	u, _ := s.CreateUser(ctx, "ada", "ada@example.com")
	_, main, _ := s.CreateProject(ctx, "proj", "", u.ID)

	_, err := s.CommitCheckpoint(ctx, store.CommitRequest{
		RiftID: main.ID, AuthorUserID: u.ID,
		Changes: []model.FileChange{{Path: "a.txt", ChangeType: model.ChangeCreated, NewContentHash: "h1"}},
	})
	require.NoError(t, err)

	cp2, err := s.CommitCheckpoint(ctx, store.CommitRequest{
		RiftID: main.ID, AuthorUserID: u.ID,
		Changes: []model.FileChange{{Path: "a.txt", ChangeType: model.ChangeDeleted}},
	})
	require.NoError(t, err)

	_, err = s.GetCheckpointBlobHash(ctx, main.ID, cp2.ID, "a.txt")
	require.ErrorIs(t, err, store.ErrNotFound)
}
