package registry

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/postgres"
)

// Dialect selects placeholder syntax for a SQL store.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS documents (
	id   INTEGER PRIMARY KEY,
	path TEXT NOT NULL
)`

// SQLStore mirrors the registry into a documents(id, path) table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates the documents table if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, createDocumentsTable); err != nil {
		return nil, apperrors.Storage("registry", "creating documents table", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) insertSQL() string {
	if s.dialect == DialectPostgres {
		return `INSERT INTO documents (id, path) VALUES ($1, $2)`
	}
	return `INSERT INTO documents (id, path) VALUES (?, ?)`
}

// Save replaces the table contents in one transaction.
func (s *SQLStore) Save(ctx context.Context, entries []Entry) error {
	err := postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, s.insertSQL())
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.ID, e.Path); err != nil {
				return fmt.Errorf("inserting document %d: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Storage("registry", "saving documents", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (Lookup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM documents ORDER BY id`)
	if err != nil {
		return nil, apperrors.Storage("registry", "querying documents", err)
	}
	defer rows.Close()

	lookup := make(Lookup)
	for rows.Next() {
		var (
			id   int
			path string
		)
		if err := rows.Scan(&id, &path); err != nil {
			return nil, apperrors.Storage("registry", "scanning document", err)
		}
		lookup[id] = path
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("registry", "iterating documents", err)
	}
	return lookup, nil
}
