// Package codegen issues human-readable codes of the form PREFIX-YYYY-NNNNNN.
package codegen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Code prefixes.
const (
	PrefixRequirement = "REQ"
	PrefixSample      = "QR"
)

// width is the zero-padded counter width.
const width = 6

// Sequence hands out monotonic counters per prefix and year. tx is the
// caller's transaction; implementations that keep state elsewhere use it
// only to seed themselves from already-issued codes.
type Sequence interface {
	Next(ctx context.Context, tx *gorm.DB, prefix string, year int) (int64, error)
}

// Source describes where codes for a prefix are stored, so a sequence can
// be seeded from the last code issued before it existed.
type Source struct {
	Table  string
	Column string
}

// Sources maps each prefix to the column holding its codes.
var Sources = map[string]Source{
	PrefixRequirement: {Table: "requirements", Column: "code"},
	PrefixSample:      {Table: "samples", Column: "qr_code"},
}

// Format renders a code.
func Format(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, width, n)
}

// Parse splits a code into its parts.
func Parse(code string) (prefix string, year int, n int64, err error) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("codegen: malformed code %q", code)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("codegen: malformed year in %q: %w", code, err)
	}
	n, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("codegen: malformed counter in %q: %w", code, err)
	}
	return parts[0], year, n, nil
}

// LastIssued returns the counter of the most recently created code for
// prefix and year, or 0 when none exists.
func LastIssued(tx *gorm.DB, prefix string, year int) (int64, error) {
	src, ok := Sources[prefix]
	if !ok {
		return 0, fmt.Errorf("codegen: unknown prefix %q", prefix)
	}

	var last string
	err := tx.Table(src.Table).
		Select(src.Column).
		Where(src.Column+" LIKE ?", fmt.Sprintf("%s-%d-%%", prefix, year)).
		Order("created_at DESC, " + src.Column + " DESC").
		Limit(1).
		Row().Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("codegen: last %s code for %d: %w", prefix, year, err)
	}

	_, _, n, err := Parse(last)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Generator formats sequence values into codes stamped with the current year.
type Generator struct {
	Seq Sequence
	Now func() time.Time
}

// NewGenerator returns a Generator over seq using the wall clock.
func NewGenerator(seq Sequence) *Generator {
	return &Generator{Seq: seq, Now: time.Now}
}

// Next issues the next code for prefix inside tx.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	year := g.Now().Year()
	n, err := g.Seq.Next(ctx, tx, prefix, year)
	if err != nil {
		return "", err
	}
	return Format(prefix, year, n), nil
}
