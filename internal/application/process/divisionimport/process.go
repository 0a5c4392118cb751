// Package divisionimport imports administrative divisions from source files
// into the divisions table in resumable stages:
//
//	INITIAL  copy the file list and tuning knobs from config into state
//	PARSING  parse one source file per iteration into a part file
//	MERGE    upsert one chunk per iteration, committed with the offset
//	CLEANUP  remove the work directory and finish
package divisionimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/process"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
)

// Source is the process source key
const Source = "divisions"

// Stages
const (
	StageInitial process.Stage = process.StageInitial
	StageParsing process.Stage = "PARSING"
	StageMerge   process.Stage = "MERGE"
	StageCleanup process.Stage = "CLEANUP"
)

// State keys
const (
	keySourceFiles   = "source_files"
	keySourcePrefix  = "source_prefix"
	keyChunkSize     = "chunk_size"
	keyParserVersion = "parser_version"
	keySourceIndex   = "source_index"
	keyParsedFile    = "parsed_file"
	keyParsedCount   = "parsed_count"
	keyMergeOffset   = "merge_offset"
	keyCleanedAt     = "cleaned_at"
)

// Parser converts one source file into divisions
type Parser interface {
	Parse(data []byte) ([]division.Division, error)
}

// ParserLookup resolves a parser version to a parser
type ParserLookup func(version string) (Parser, error)

// Deps are the collaborators of the import stages
type Deps struct {
	Storage   output.SourceStorage
	Divisions repository.DivisionRepository
	Parsers   ParserLookup
	Fs        afero.Fs
	WorkDir   string
}

type importer struct {
	deps Deps
}

// NewDefinition builds the runner definition of the division import
func NewDefinition(deps Deps) (runner.Definition, error) {
	if deps.Storage == nil || deps.Divisions == nil || deps.Parsers == nil {
		return runner.Definition{}, errors.New("division import requires storage, divisions repository and parsers")
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.WorkDir == "" {
		return runner.Definition{}, errors.New("division import requires a work directory")
	}

	defaults, err := DefaultConfig()
	if err != nil {
		return runner.Definition{}, err
	}

	imp := &importer{deps: deps}
	stages := runner.NewStageRegistry().
		MustRegister(StageInitial, imp.initial).
		MustRegister(StageParsing, imp.parsing).
		MustRegister(StageMerge, imp.merge).
		MustRegister(StageCleanup, imp.cleanup)

	return runner.Definition{
		Source:        Source,
		Description:   "Import administrative divisions from JSON or CSV files",
		InitialStage:  StageInitial,
		DefaultConfig: defaults,
		Stages:        stages,
	}, nil
}

func (imp *importer) workspace(r *runner.Runner) workspace {
	return newWorkspace(imp.deps.Fs, imp.deps.WorkDir, r.State().ID.String())
}

// initial freezes the configuration of this run into its state, so later
// config edits do not affect a run that is already under way
func (imp *importer) initial(ctx context.Context, r *runner.Runner) error {
	cfg := r.Config()

	files, err := cfg.Strings(keySourceFiles)
	if err != nil {
		return fmt.Errorf("config %s: %w", keySourceFiles, err)
	}
	if prefix := cfg.String(keySourcePrefix, ""); prefix != "" {
		files, err = imp.deps.Storage.List(ctx, prefix)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return errors.New("no source files to import")
	}

	chunkSize := cfg.Int(keyChunkSize, defaultChunkSize)
	if chunkSize <= 0 {
		return fmt.Errorf("config %s must be positive, got %d", keyChunkSize, chunkSize)
	}

	r.Logger().Info("import planned", "files", len(files), "chunk_size", chunkSize)
	return r.Advance(ctx, StageParsing, process.Payload{
		keySourceFiles:   files,
		keyChunkSize:     chunkSize,
		keyParserVersion: cfg.String(keyParserVersion, "v1"),
		keySourceIndex:   0,
		keyMergeOffset:   0,
	})
}

// parsing handles one source file per call. Part files are rewritten whole,
// so repeating an index after a crash is harmless.
func (imp *importer) parsing(ctx context.Context, r *runner.Runner) error {
	state := r.State().State
	ws := imp.workspace(r)

	files, err := state.Strings(keySourceFiles)
	if err != nil {
		return fmt.Errorf("state %s: %w", keySourceFiles, err)
	}
	index := state.Int(keySourceIndex, 0)

	if index >= len(files) {
		count, err := ws.concatParts(len(files))
		if err != nil {
			return err
		}
		r.Logger().Info("parsing complete", "divisions", count)
		return r.Advance(ctx, StageMerge, process.Payload{
			keyParsedFile:  ws.parsedPath(),
			keyParsedCount: count,
		})
	}

	parser, err := imp.deps.Parsers(state.String(keyParserVersion, "v1"))
	if err != nil {
		return err
	}

	data, err := imp.deps.Storage.Read(ctx, files[index])
	if err != nil {
		return err
	}
	items, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", imp.deps.Storage.Location(files[index]), err)
	}
	if err := ws.writePart(index, items); err != nil {
		return err
	}

	r.Logger().Debug("parsed source file", "file", files[index], "divisions", len(items))
	return r.MergeState(ctx, process.Payload{keySourceIndex: index + 1})
}

// merge upserts one chunk. The upsert and the offset advance commit together.
func (imp *importer) merge(ctx context.Context, r *runner.Runner) error {
	state := r.State().State
	offset := state.Int(keyMergeOffset, 0)
	total := state.Int(keyParsedCount, 0)
	chunkSize := state.Int(keyChunkSize, defaultChunkSize)

	if offset >= total {
		r.Logger().Info("merge complete", "divisions", total)
		return r.Advance(ctx, StageCleanup, nil)
	}

	ws := imp.workspace(r)
	batch, err := ws.readParsed(state.String(keyParsedFile, ws.parsedPath()), offset, chunkSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return fmt.Errorf("parsed file ended at line %d, expected %d divisions", offset, total)
	}

	return r.Transaction(ctx, func(txCtx context.Context) error {
		if err := imp.deps.Divisions.UpsertBatch(txCtx, batch); err != nil {
			return fmt.Errorf("upsert divisions %d-%d: %w", offset, offset+len(batch), err)
		}
		return r.MergeState(txCtx, process.Payload{keyMergeOffset: offset + len(batch)})
	})
}

func (imp *importer) cleanup(ctx context.Context, r *runner.Runner) error {
	if err := imp.workspace(r).remove(); err != nil {
		return fmt.Errorf("remove work directory: %w", err)
	}
	if err := r.MergeState(ctx, process.Payload{keyCleanedAt: time.Now().UTC().Format(time.RFC3339)}); err != nil {
		return err
	}
	return r.Finish()
}
