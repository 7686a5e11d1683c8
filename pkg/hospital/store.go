package hospital

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	// PageSize is the number of hospitals returned per search page
	PageSize = 10

	// DefaultSuggestionLimit applies when the caller passes no limit
	DefaultSuggestionLimit = 20

	deptSuffix = "科"
)

// Hospital is one row of the hospitals table
type Hospital struct {
	Province      string `json:"province"`
	City          string `json:"city"`
	Hospital      string `json:"hospital"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Level         string `json:"level"`
	Departments   string `json:"departments"`
	OperationMode string `json:"operation_mode"`
	Email         string `json:"email"`
	Website       string `json:"website"`
}

// Query filters a search. Empty fields match everything.
type Query struct {
	Province    string `json:"province"`
	City        string `json:"city"`
	Level       string `json:"level"`
	Departments string `json:"departments"`
	Page        int    `json:"page"`
}

// Result is one page of search results
type Result struct {
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Results []Hospital `json:"results"`
}

// Store serves hospital lookups from a SQLite database
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens the hospital database at path. The file is created if missing;
// queries fail until Import has populated it.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	observability.EnsureRegistered()

	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("store", "hospital").Logger(),
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ready reports whether the hospitals table exists
func (s *Store) Ready(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'hospitals'",
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Suggestions returns distinct values of field containing q, for
// autocomplete. Only "province" and "hospital" are searchable; any other
// field yields an empty list.
func (s *Store) Suggestions(ctx context.Context, field, q string, limit int) ([]string, error) {
	defer observe("suggestions", time.Now())

	if field != "province" && field != "hospital" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	q = strings.TrimSpace(q)

	// field is one of two fixed column names, safe to interpolate
	var (
		query string
		args  []any
	)
	if q == "" {
		query = fmt.Sprintf(
			"SELECT DISTINCT %[1]s FROM hospitals WHERE %[1]s <> '' ORDER BY %[1]s LIMIT ?", field)
		args = []any{limit}
	} else {
		query = fmt.Sprintf(
			"SELECT DISTINCT %[1]s FROM hospitals WHERE %[1]s LIKE ? COLLATE NOCASE ORDER BY %[1]s LIMIT ?", field)
		args = []any{"%" + q + "%", limit}
	}

	return s.column(ctx, query, args...)
}

// Cities returns the distinct non-empty cities, optionally within a province
func (s *Store) Cities(ctx context.Context, province string) ([]string, error) {
	defer observe("cities", time.Now())

	province = strings.TrimSpace(province)
	if province == "" {
		return s.column(ctx, "SELECT DISTINCT city FROM hospitals WHERE city <> '' ORDER BY city")
	}
	return s.column(ctx,
		"SELECT DISTINCT city FROM hospitals WHERE province = ? AND city <> '' ORDER BY city", province)
}

// Levels returns the distinct non-empty hospital grades
func (s *Store) Levels(ctx context.Context) ([]string, error) {
	defer observe("levels", time.Now())
	return s.column(ctx, "SELECT DISTINCT level FROM hospitals WHERE level <> '' ORDER BY level")
}

// Search returns one page of hospitals matching q, ordered by name.
// Department matching ignores the 科 character on both sides, so "皮肤科"
// and "皮肤" find the same rows.
func (s *Store) Search(ctx context.Context, q Query) (*Result, error) {
	defer observe("search", time.Now())

	page := q.Page
	if page < 1 {
		page = 1
	}

	where, args := buildWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hospitals"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count hospitals: %w", err)
	}

	query := `SELECT province, city, hospital, address, phone, level, departments,
		operation_mode, email, website FROM hospitals` + where + ` ORDER BY hospital LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, PageSize, (page-1)*PageSize)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search hospitals: %w", err)
	}
	defer rows.Close()

	results := []Hospital{}
	for rows.Next() {
		var (
			h    Hospital
			cols [10]sql.NullString
		)
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4],
			&cols[5], &cols[6], &cols[7], &cols[8], &cols[9]); err != nil {
			return nil, err
		}
		h.Province = clean(cols[0])
		h.City = clean(cols[1])
		h.Hospital = clean(cols[2])
		h.Address = clean(cols[3])
		h.Phone = clean(cols[4])
		h.Level = clean(cols[5])
		h.Departments = clean(cols[6])
		h.OperationMode = clean(cols[7])
		h.Email = clean(cols[8])
		h.Website = clean(cols[9])
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("total", total).
		Int("page", page).
		Msg("Hospital search")

	return &Result{
		Total:   total,
		Page:    page,
		PerPage: PageSize,
		Results: results,
	}, nil
}

func buildWhere(q Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if v := strings.TrimSpace(q.Province); v != "" {
		clauses = append(clauses, "province = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.City); v != "" {
		clauses = append(clauses, "city = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Level); v != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Departments); v != "" {
		v = strings.TrimSuffix(v, deptSuffix)
		clauses = append(clauses, "REPLACE(departments, '"+deptSuffix+"', '') LIKE ? COLLATE NOCASE")
		args = append(args, "%"+v+"%")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v.String)
	}
	return out, rows.Err()
}

func clean(v sql.NullString) string {
	return strings.TrimSpace(v.String)
}

func observe(op string, start time.Time) {
	observability.RecordLookup("hospital", op, time.Since(start))
}
