package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
)

// ErrUnknownVersion is returned when no parser is registered for a version
var ErrUnknownVersion = errors.New("unknown parser version")

// DivisionParser converts one source file into normalised divisions
type DivisionParser interface {
	Parse(data []byte) ([]division.Division, error)
}

// Registry maps parser versions to parsers
type Registry struct {
	parsers map[string]DivisionParser
}

// NewRegistry returns a registry with the built-in parsers:
//   - v1: JSON array of {code, name, parent_code, level}
//   - v2: CSV with a header row naming the same columns
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]DivisionParser{
		"v1": JSONParser{},
		"v2": CSVParser{},
	}}
}

// Register adds or replaces the parser for version
func (r *Registry) Register(version string, p DivisionParser) {
	r.parsers[version] = p
}

// Lookup returns the parser for version
func (r *Registry) Lookup(version string) (DivisionParser, error) {
	p, ok := r.parsers[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownVersion, version, strings.Join(r.Versions(), ", "))
	}
	return p, nil
}

// Versions returns the registered versions in sorted order
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.parsers))
	for v := range r.parsers {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

type rawDivision struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parent_code"`
	Level      string `json:"level"`
}

// JSONParser reads a JSON array of division records
type JSONParser struct{}

func (JSONParser) Parse(data []byte) ([]division.Division, error) {
	var raw []rawDivision
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode division JSON: %w", err)
	}

	out := make([]division.Division, 0, len(raw))
	for i, r := range raw {
		d, err := division.NewDivision(r.Code, r.Name, r.ParentCode, r.Level)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// CSVParser reads comma-separated division records with a header row.
// Column order is taken from the header; code and name are required.
type CSVParser struct{}

func (CSVParser) Parse(data []byte) ([]division.Division, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"code", "name"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := columns[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	var out []division.Division
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		d, err := division.NewDivision(field(record, "code"), field(record, "name"), field(record, "parent_code"), field(record, "level"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, d)
	}
	return out, nil
}
