package repository

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
)

// ErrDivisionNotFound is returned when no division has the requested code
var ErrDivisionNotFound = errors.New("division not found")

// DivisionRepository stores imported divisions keyed by code
type DivisionRepository interface {
	// UpsertBatch inserts or overwrites each division by code
	UpsertBatch(ctx context.Context, items []division.Division) error

	// Find retrieves a division by code
	Find(ctx context.Context, code string) (*division.Division, error)

	// Count returns the number of stored divisions
	Count(ctx context.Context) (int, error)
}
