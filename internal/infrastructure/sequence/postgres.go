package sequence

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresGenerator increments a row of the sequences table per code.
type PostgresGenerator struct {
	db *sqlx.DB
}

func NewPostgresGenerator(db *sqlx.DB) *PostgresGenerator {
	return &PostgresGenerator{db: db}
}

func (g *PostgresGenerator) Next(ctx context.Context, code string) (string, error) {
	var n int64
	err := g.db.GetContext(ctx, &n,
		`INSERT INTO sequences (code, value) VALUES ($1, 1)
		 ON CONFLICT (code) DO UPDATE SET value = sequences.value + 1
		 RETURNING value`, code)
	if err != nil {
		return "", errors.Wrapf(err, "next %s", code)
	}
	return Format(code, n), nil
}
