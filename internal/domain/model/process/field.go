package process

import "sort"

// Field names a persisted column of a process run that a save may write
type Field string

const (
	FieldStatus Field = "status"
	FieldStage  Field = "stage"
	FieldState  Field = "state"
)

// FieldSet is the write-set of a versioned save
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields
func NewFieldSet(fields ...Field) FieldSet {
	fs := make(FieldSet, len(fields))
	for _, f := range fields {
		fs.Add(f)
	}
	return fs
}

// Add inserts a field
func (fs FieldSet) Add(f Field) {
	fs[f] = struct{}{}
}

// Contains reports whether f is in the set
func (fs FieldSet) Contains(f Field) bool {
	_, ok := fs[f]
	return ok
}

// IsEmpty reports whether nothing would be written
func (fs FieldSet) IsEmpty() bool {
	return len(fs) == 0
}

// Sorted returns the fields in a stable order, used to build SQL deterministically
func (fs FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
