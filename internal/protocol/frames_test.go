package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		Type: TypeFileChanged,
		FileChanged: &FileChanged{
			RiftID:   "rift-1",
			Path:     "src/a.txt",
			Content:  "hi",
			ClientTS: time.Now().UTC().Truncate(time.Second),
		},
	}

	data, err := f.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, TypeFileChanged, decoded.Type)
	require.NotNil(t, decoded.FileChanged)
	assert.Equal(t, "rift-1", decoded.FileChanged.RiftID)
	assert.Equal(t, "src/a.txt", decoded.FileChanged.Path)
	assert.Equal(t, "hi", decoded.FileChanged.Content)
}

func TestDecodeMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"path": "a.txt"}`))
	require.Error(t, err)
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestHeartbeatHasNoPayload(t *testing.T) {
	hb := Heartbeat()
	assert.Equal(t, TypeHeartbeat, hb.Type)
	data, err := hb.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, decoded.Type)
}
