package derm

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Row is one skin_diseases record. The table's columns are defined by
// whoever populated the database, so values are kept in column order
// rather than mapped onto a struct.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Empty reports whether the row has no columns
func (r Row) Empty() bool {
	return len(r.Columns) == 0
}

// MarshalJSON encodes the row as an object with keys in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Page is one page of the skin disease encyclopedia, one entry per page
type Page struct {
	Total   int   `json:"total"`
	Page    int   `json:"page"`
	Results []Row `json:"results"`
}

// Store reads the skin disease encyclopedia
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens the encyclopedia database at path
func Open(path string, logger zerolog.Logger) (*Store, error) {
	observability.EnsureRegistered()

	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("store", "derm").Logger(),
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Page returns the entry at the given 1-based position and the total count
func (s *Store) Page(ctx context.Context, page int) (*Page, error) {
	defer observe("page", time.Now())

	if page < 1 {
		page = 1
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM skin_diseases").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count skin diseases: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM skin_diseases LIMIT 1 OFFSET ?", page-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read skin disease: %w", err)
	}
	defer rows.Close()

	results := []Row{}
	row, err := scanOne(rows)
	if err != nil {
		return nil, err
	}
	if !row.Empty() {
		results = append(results, row)
	}

	return &Page{Total: total, Page: page, Results: results}, nil
}

// Random returns one entry chosen at random, or an empty Row when the
// table has no entries.
func (s *Store) Random(ctx context.Context) (Row, error) {
	defer observe("random", time.Now())

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM skin_diseases ORDER BY RANDOM() LIMIT 1")
	if err != nil {
		return Row{}, fmt.Errorf("failed to read skin disease: %w", err)
	}
	defer rows.Close()

	return scanOne(rows)
}

func scanOne(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Row{}, err
	}

	if !rows.Next() {
		return Row{}, rows.Err()
	}

	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Row{}, err
	}

	values := make(map[string]any, len(cols))
	for i, col := range cols {
		if b, ok := raw[i].([]byte); ok {
			values[col] = string(b)
		} else {
			values[col] = raw[i]
		}
	}

	return Row{Columns: cols, Values: values}, nil
}

func observe(op string, start time.Time) {
	observability.RecordLookup("derm", op, time.Since(start))
}
