package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

// SaveFruit validates f and inserts it. A fruit without an id gets a new uuid,
// which is written back to f and returned. An id that is already stored yields
// ErrAlreadyExists and leaves the stored fruit untouched.
func (d *DB) SaveFruit(ctx context.Context, f *fruit.Fruit) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	if strings.TrimSpace(f.ID) == "" {
		f.ID = uuid.NewString()
	}

	attrs, err := json.Marshal(f.Attributes)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	prefs, err := json.Marshal(f.Preferences)
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO fruits (id, type, attributes, preferences, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING;
`, f.ID, string(f.Type), string(attrs), string(prefs), now())
	if err != nil {
		return "", fmt.Errorf("save fruit %s: %w", f.ID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("save fruit %s: %w", f.ID, err)
	}
	if inserted == 0 {
		return "", fmt.Errorf("fruit %s: %w", f.ID, ErrAlreadyExists)
	}

	return f.ID, nil
}

// GetFruit returns the fruit with id or ErrNotFound.
func (d *DB) GetFruit(ctx context.Context, id string) (*fruit.Fruit, error) {
	row := d.Pool.QueryRowContext(ctx, `
SELECT id, type, attributes, preferences FROM fruits WHERE id = ?;
`, id)

	f, err := scanFruit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fruit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFruits returns fruits in insertion order. An empty typ lists every fruit.
func (d *DB) ListFruits(ctx context.Context, typ fruit.Type) (*fruit.Fruits, error) {
	query := `SELECT id, type, attributes, preferences FROM fruits`
	var args []any
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY rowid;`

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fruits: %w", err)
	}
	defer rows.Close()

	out := &fruit.Fruits{Items: []*fruit.Fruit{}}
	for rows.Next() {
		f, err := scanFruit(rows)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fruits: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFruit(s scanner) (*fruit.Fruit, error) {
	var (
		f            fruit.Fruit
		typ          string
		attrs, prefs string
	)
	if err := s.Scan(&f.ID, &typ, &attrs, &prefs); err != nil {
		return nil, err
	}
	f.Type = fruit.Type(typ)

	if err := json.Unmarshal([]byte(attrs), &f.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(prefs), &f.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences of %s: %w", f.ID, err)
	}

	return &f, nil
}
