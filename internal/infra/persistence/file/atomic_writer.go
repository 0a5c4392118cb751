package file

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteAtomic streams the output of write into path through a temp file in the
// same directory followed by a rename. Readers see the old file or the complete
// new one, never a partial write.
func WriteAtomic(fs afero.Fs, path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	renamed := false
	defer func() {
		if !renamed {
			fs.Remove(tmpPath)
		}
	}()

	buf := bufio.NewWriter(tmpFile)
	if err := write(buf); err != nil {
		tmpFile.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	renamed = true
	return nil
}

// WriteFileAtomic writes data to path atomically
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	return WriteAtomic(fs, path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
