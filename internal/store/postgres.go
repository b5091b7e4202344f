package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// OpenPostgres opens and pings a PostgreSQL connection.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresDocumentStore stores every collection in one jsonb-backed table.
//
//	documents(collection text, id text, created_at timestamptz,
//	          updated_at timestamptz, data jsonb)
//
// Filters compile to WHERE conditions over data->>field; RFC3339 timestamps
// compare correctly as text.
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

// EnsureSchema creates the documents table when it does not exist yet.
func (s *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection  text        NOT NULL,
			id          text        NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now(),
			updated_at  timestamptz NOT NULL DEFAULT now(),
			data        jsonb       NOT NULL DEFAULT '{}'::jsonb,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	where := []string{"collection = $1"}
	args := []any{collection}
	limit := -1

	for _, f := range filters {
		if f.Op == OpLimit {
			if len(f.Values) == 1 {
				if n, ok := f.Values[0].(int); ok {
					limit = n
				}
			}
			continue
		}
		cond, err := buildCondition(f, &args)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
	}

	query := fmt.Sprintf(
		`SELECT id, created_at, updated_at, data FROM documents WHERE %s ORDER BY created_at, id`,
		strings.Join(where, " AND "))
	if limit >= 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var raw json.RawMessage
		if err := rows.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		if err := json.Unmarshal(raw, &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s document %s: %w", collection, doc.ID, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s documents: %w", collection, err)
	}
	return out, nil
}

func (s *PostgresDocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (*Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var doc Document
	doc.ID = id
	doc.Fields = cloneFields(fields)
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING created_at, updated_at`,
		collection, id, string(raw),
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s document: %w", collection, err)
	}
	return &doc, nil
}

func (s *PostgresDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("failed to update %s document %s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDocumentStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s document %s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// buildCondition renders one filter into a WHERE fragment, appending its
// placeholder arguments to args.
func buildCondition(f Filter, args *[]any) (string, error) {
	switch f.Op {
	case OpEqual:
		expr := columnExpr(f.Field)
		if len(f.Values) == 1 {
			*args = append(*args, sqlValue(f.Values[0]))
			return fmt.Sprintf("%s = $%d", expr, len(*args)), nil
		}
		placeholders := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			*args = append(*args, sqlValue(v))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
		}
		return fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")), nil
	case OpNotEqual:
		*args = append(*args, sqlValue(f.Values[0]))
		return fmt.Sprintf("%s IS DISTINCT FROM $%d", columnExpr(f.Field), len(*args)), nil
	case OpLessThan:
		*args = append(*args, sqlValue(f.Values[0]))
		if f.Field == "$createdAt" {
			return fmt.Sprintf("created_at < $%d::timestamptz", len(*args)), nil
		}
		return fmt.Sprintf("%s < $%d", columnExpr(f.Field), len(*args)), nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", columnExpr(f.Field)), nil
	case OpOr:
		parts := make([]string, 0, len(f.Sub))
		for _, sub := range f.Sub {
			cond, err := buildCondition(sub, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, cond)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

func columnExpr(field string) string {
	switch field {
	case "$id":
		return "id"
	case "$createdAt":
		return "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD\"T\"HH24:MI:SS\"Z\"')"
	}
	return fmt.Sprintf("data->>'%s'", field)
}

// sqlValue renders a filter value the way jsonb text extraction does, so
// booleans and timestamps compare against data->>field output.
func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	}
	return v
}
