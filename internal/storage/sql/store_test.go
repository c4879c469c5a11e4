package sql

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/storage"
	"tempinbox/backend/internal/storage/storagetest"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(&config.DatabaseConfig{
		Type: DialectSQLite,
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	require.NoError(t, err)
	return store
}

func TestSQLStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newSQLiteStore(t)
	})
}

func TestOpen_RejectsUnknownDialect(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Type: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)

	_, err = Open(&config.DatabaseConfig{Type: DialectSQLite}, nil)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(fmt.Errorf("boom")))
}
