package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultColumns is used when a board is created without an explicit column list.
var DefaultColumns = []string{"todo", "in_progress", "done"} //nolint:gochecknoglobals // read-only default

type Board struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Columns     []string  `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasColumn reports whether column is one of the board's declared columns.
// The comparison is exact: column names are identifiers, not display text.
func (b *Board) HasColumn(column string) bool {
	return slices.Contains(b.Columns, column)
}

// NormalizeColumns trims column names and rejects empty or duplicate entries.
// An empty list yields DefaultColumns.
func NormalizeColumns(columns []string) ([]string, error) {
	if len(columns) == 0 {
		return slices.Clone(DefaultColumns), nil
	}

	out := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("column names must not be empty: %w", ErrInvalid)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", c, ErrInvalid)
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out, nil
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id string) (*Board, error)
	List(ctx context.Context) ([]*Board, error)
	Update(ctx context.Context, b *Board) error
	// Delete removes the board together with its tickets, comments and history.
	Delete(ctx context.Context, id string) error
}
