package sqlstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendDriverName(t *testing.T) {
	name, err := BackendMySQL.driverName()
	assert.NoError(t, err)
	assert.Equal(t, "mysql", name)

	name, err = BackendDolt.driverName()
	assert.NoError(t, err)
	assert.Equal(t, "dolt", name)

	_, err = Backend("postgres").driverName()
	assert.Error(t, err)
}

func TestIsDuplicateErr(t *testing.T) {
	assert.True(t, isDuplicateErr(errors.New("Error 1062: Duplicate entry 'x' for key 'name'")))
	assert.True(t, isDuplicateErr(errors.New("UNIQUE constraint failed: projects.name")))
	assert.False(t, isDuplicateErr(errors.New("connection refused")))
	assert.False(t, isDuplicateErr(nil))
}
