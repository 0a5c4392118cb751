package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
)

func TestSourceConfigRepository_GetOrCreate_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSourceConfigRepository(db)
	ctx := context.Background()

	cfg, created, err := repo.GetOrCreate(ctx, "divisions", process.Payload{"chunk_size": 500})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 500, cfg.Config.Int("chunk_size", 0))

	// different defaults must not overwrite the stored row
	cfg, created, err = repo.GetOrCreate(ctx, "divisions", process.Payload{"chunk_size": 10})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 500, cfg.Config.Int("chunk_size", 0))

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM process_source_configs`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSourceConfigRepository_Find_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSourceConfigRepository(db)

	_, err := repo.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrSourceConfigNotFound)
}

func TestSourceConfigRepository_EmptySource(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSourceConfigRepository(db)

	_, _, err := repo.GetOrCreate(context.Background(), "", nil)
	assert.Error(t, err)
}
