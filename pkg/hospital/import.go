package hospital

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHospitalColumn is returned when no header maps to the hospital name
var ErrNoHospitalColumn = errors.New("no hospital name column found")

// headerAliases lists accepted spreadsheet headers per column, in priority order
var headerAliases = []struct {
	column  string
	aliases []string
}{
	{"province", []string{"省份", "省", "所在省（或直辖市）", "省/市"}},
	{"city", []string{"城市", "市", "所在城市", "市/区"}},
	{"hospital", []string{"医院名称", "医院", "单位名称", "机构名称"}},
	{"address", []string{"医院地址", "地址", "详细地址"}},
	{"phone", []string{"联系电话", "电话", "联系电话（门诊/总机）", "电话1"}},
	{"level", []string{"医院等级", "等级", "医院等级（三级乙等）", "级别"}},
	{"departments", []string{"重点科室", "重点科室/特色科室", "科室", "重点科"}},
	{"operation_mode", []string{"经营方式", "办院性质", "经营形式"}},
	{"email", []string{"电子邮箱", "邮箱", "Email", "E-mail"}},
	{"website", []string{"医院网站", "网站", "网址", "网站地址"}},
}

const schema = `
CREATE TABLE hospitals (
	province TEXT,
	city TEXT,
	hospital TEXT,
	address TEXT,
	phone TEXT,
	level TEXT,
	departments TEXT,
	operation_mode TEXT,
	email TEXT,
	website TEXT
);
CREATE INDEX IF NOT EXISTS idx_province ON hospitals(province);
CREATE INDEX IF NOT EXISTS idx_city ON hospitals(city);
CREATE INDEX IF NOT EXISTS idx_level ON hospitals(level);
CREATE INDEX IF NOT EXISTS idx_dept ON hospitals(departments);
`

// ReadCSV parses a hospital directory export. Headers are matched against
// known aliases, exactly first and then case-insensitively. Columns with
// no matching header import as empty strings.
func ReadCSV(r io.Reader) ([]Hospital, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHospitalColumn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := mapHeader(header)
	if _, ok := index["hospital"]; !ok {
		return nil, ErrNoHospitalColumn
	}

	var out []Hospital
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, index.hospital(record))
	}

	return out, nil
}

// columnIndex maps a column name to its position in a record
type columnIndex map[string]int

func (c columnIndex) hospital(record []string) Hospital {
	field := func(column string) string {
		i, ok := c[column]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	return Hospital{
		Province:      field("province"),
		City:          field("city"),
		Hospital:      field("hospital"),
		Address:       field("address"),
		Phone:         field("phone"),
		Level:         field("level"),
		Departments:   field("departments"),
		OperationMode: field("operation_mode"),
		Email:         field("email"),
		Website:       field("website"),
	}
}

func mapHeader(header []string) columnIndex {
	exact := make(map[string]int, len(header))
	lowered := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := exact[h]; !dup {
			exact[h] = i
		}
		if _, dup := lowered[strings.ToLower(h)]; !dup {
			lowered[strings.ToLower(h)] = i
		}
	}

	index := make(columnIndex)
	for _, col := range headerAliases {
		if i, ok := find(col.aliases, exact, false); ok {
			index[col.column] = i
		} else if i, ok := find(col.aliases, lowered, true); ok {
			index[col.column] = i
		}
	}
	return index
}

func find(aliases []string, headers map[string]int, fold bool) (int, bool) {
	for _, a := range aliases {
		if fold {
			a = strings.ToLower(a)
		}
		if i, ok := headers[a]; ok {
			return i, true
		}
	}
	return 0, false
}

// Import replaces the hospitals table with rows and rebuilds its indexes
// in a single transaction.
func (s *Store) Import(ctx context.Context, rows []Hospital) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS hospitals"); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hospitals (province, city, hospital, address,
		phone, level, departments, operation_mode, email, website) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range rows {
		if _, err := stmt.ExecContext(ctx, h.Province, h.City, h.Hospital, h.Address,
			h.Phone, h.Level, h.Departments, h.OperationMode, h.Email, h.Website); err != nil {
			return fmt.Errorf("failed to insert %q: %w", h.Hospital, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info().Int("rows", len(rows)).Msg("Imported hospitals")
	return nil
}
