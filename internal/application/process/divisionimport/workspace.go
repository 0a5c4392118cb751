package divisionimport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
	"github.com/YoshitsuguKoike/procrunner/internal/infra/persistence/file"
)

const parsedFileName = "parsed.ndjson"

// workspace holds the intermediate files of one run under <root>/<state id>
type workspace struct {
	fs  afero.Fs
	dir string
}

func newWorkspace(fs afero.Fs, root, stateID string) workspace {
	return workspace{fs: fs, dir: filepath.Join(root, stateID)}
}

func (w workspace) partPath(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("part-%d.ndjson", index))
}

func (w workspace) parsedPath() string {
	return filepath.Join(w.dir, parsedFileName)
}

// writePart stores the divisions parsed from source file index
func (w workspace) writePart(index int, items []division.Division) error {
	return file.WriteAtomic(w.fs, w.partPath(index), func(out io.Writer) error {
		enc := json.NewEncoder(out)
		for _, d := range items {
			if err := enc.Encode(d); err != nil {
				return fmt.Errorf("encode division %s: %w", d.Code, err)
			}
		}
		return nil
	})
}

// concatParts joins part-0..part-(n-1) into the parsed file and returns its line count
func (w workspace) concatParts(n int) (int, error) {
	count := 0
	err := file.WriteAtomic(w.fs, w.parsedPath(), func(out io.Writer) error {
		count = 0
		for i := 0; i < n; i++ {
			lines, err := w.copyLines(w.partPath(i), out)
			if err != nil {
				return err
			}
			count += lines
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (w workspace) copyLines(path string, out io.Writer) (int, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open part file: %w", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if _, err := out.Write(scanner.Bytes()); err != nil {
			return lines, err
		}
		if _, err := out.Write([]byte{'\n'}); err != nil {
			return lines, err
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("read part file %s: %w", path, err)
	}
	return lines, nil
}

// readParsed returns up to limit divisions starting at line offset of path
func (w workspace) readParsed(path string, offset, limit int) ([]division.Division, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parsed file: %w", err)
	}
	defer f.Close()

	var (
		out  []division.Division
		line int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() && len(out) < limit {
		if line < offset {
			line++
			continue
		}
		var d division.Division
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", path, line+1, err)
		}
		out = append(out, d)
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read parsed file: %w", err)
	}
	return out, nil
}

func (w workspace) remove() error {
	return w.fs.RemoveAll(w.dir)
}
