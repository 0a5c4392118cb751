package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

// LocalSourceStorage implements SourceStorage on a filesystem rooted at baseDir
type LocalSourceStorage struct {
	fs      afero.Fs
	baseDir string
}

// NewLocalSourceStorage creates a storage reading files below baseDir on the OS filesystem
func NewLocalSourceStorage(baseDir string) *LocalSourceStorage {
	return NewLocalSourceStorageWithFs(afero.NewOsFs(), baseDir)
}

// NewLocalSourceStorageWithFs creates a storage on a custom afero filesystem
// This is primarily used for testing with afero.MemMapFs
func NewLocalSourceStorageWithFs(fsys afero.Fs, baseDir string) *LocalSourceStorage {
	return &LocalSourceStorage{fs: fsys, baseDir: baseDir}
}

// Read returns the content of name below the base directory
func (g *LocalSourceStorage) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := g.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(g.fs, full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", output.ErrSourceNotFound, full)
		}
		return nil, fmt.Errorf("read source file %s: %w", full, err)
	}
	return data, nil
}

// List walks the directory named by prefix and returns relative file paths
func (g *LocalSourceStorage) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := g.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var files []string
	err = afero.Walk(g.fs, root, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(g.baseDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", output.ErrSourceNotFound, root)
		}
		return nil, fmt.Errorf("list source files under %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Location returns the filesystem path of name
func (g *LocalSourceStorage) Location(name string) string {
	full, err := g.resolve(name)
	if err != nil {
		return name
	}
	return full
}

// resolve joins name to the base directory, rejecting paths that escape it
func (g *LocalSourceStorage) resolve(name string) (string, error) {
	slashed := filepath.ToSlash(name)
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("source path %q escapes the storage root", name)
		}
	}
	return filepath.Join(g.baseDir, filepath.FromSlash(strings.TrimPrefix(slashed, "/"))), nil
}
