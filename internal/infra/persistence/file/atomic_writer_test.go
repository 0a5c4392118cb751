package file_test

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/procrunner/internal/infra/persistence/file"
)

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    []byte
		setupFS func(fs afero.Fs) error
	}{
		{
			name: "new file in nested directory",
			path: "/work/01HX/part-0.ndjson",
			data: []byte("{\"code\":\"UA\"}\n"),
		},
		{
			name: "overwrite existing file",
			path: "/work/parsed.ndjson",
			data: []byte("new"),
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "/work/parsed.ndjson", []byte("old content"), 0o644)
			},
		},
		{
			name: "empty file",
			path: "/empty.ndjson",
			data: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.setupFS != nil {
				require.NoError(t, tt.setupFS(fs))
			}

			require.NoError(t, file.WriteFileAtomic(fs, tt.path, tt.data))

			content, err := afero.ReadFile(fs, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.data, content)
			assertNoTempFiles(t, fs)
		})
	}
}

func TestWriteAtomic_WriterErrorKeepsOldFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/parsed.ndjson", []byte("complete"), 0o644))

	errHalfway := errors.New("source closed")
	err := file.WriteAtomic(fs, "/work/parsed.ndjson", func(w io.Writer) error {
		if _, err := io.WriteString(w, "partial"); err != nil {
			return err
		}
		return errHalfway
	})
	assert.ErrorIs(t, err, errHalfway)

	content, err := afero.ReadFile(fs, "/work/parsed.ndjson")
	require.NoError(t, err)
	assert.Equal(t, "complete", string(content))
	assertNoTempFiles(t, fs)
}

func TestWriteFileAtomic_ReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := file.WriteFileAtomic(fs, "/work/file.txt", []byte("x"))
	assert.Error(t, err)
}

func assertNoTempFiles(t *testing.T, fs afero.Fs) {
	t.Helper()
	err := afero.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			assert.NotContains(t, info.Name(), ".tmp-", "leftover temp file %s", path)
		}
		return nil
	})
	require.NoError(t, err)
}
