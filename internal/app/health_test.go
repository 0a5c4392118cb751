package app

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHealth(t *testing.T) {
	fs := afero.NewMemMapFs()

	err := WriteHealth(fs, "/var/run/procrunner/health.json", Health{
		Source: "divisions",
		Stage:  "PARSING",
		Result: "failed",
		Error:  "decode division JSON",
	})
	require.NoError(t, err)

	b, err := afero.ReadFile(fs, "/var/run/procrunner/health.json")
	require.NoError(t, err)

	var got Health
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "divisions", got.Source)
	assert.Equal(t, "failed", got.Result)
	assert.False(t, got.OK)
	assert.NotEmpty(t, got.TS)
}

func TestWriteHealth_EmptyPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteHealth(fs, "", Health{Source: "divisions"}))

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
