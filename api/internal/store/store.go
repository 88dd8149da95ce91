package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

var (
	ErrNotFound = sql.ErrNoRows
	// ErrNoFilter guards against unscoped update and delete statements.
	ErrNoFilter = errors.New("store: update and delete need at least one filter")
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Op is a comparison operator usable in a Filter.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpLt  Op = "<"
	OpGt  Op = ">"
	OpLte Op = "<="
	OpGte Op = ">="
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(col string, v any) Filter { return Filter{Column: col, Op: OpEq, Value: v} }

type Order struct {
	Column string
	Desc   bool
}

// Row is one selected record, keyed by column name.
type Row map[string]any

// Store runs generic statements against any table. Table and column names
// are checked and quoted; values are always bound parameters.
type Store struct{ DB *sql.DB }

func New(db *sql.DB) *Store { return &Store{DB: db} }

// Open connects to Postgres through the pgx database/sql driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// Insert writes rec into table and returns its id. A missing "id" gets a new UUID.
func (s *Store) Insert(ctx context.Context, table string, rec map[string]any) (string, error) {
	q, args, err := buildInsert(table, rec)
	if err != nil {
		return "", err
	}
	var id string
	if err := s.DB.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Select returns rows of table matching every filter. limit <= 0 means no limit.
func (s *Store) Select(ctx context.Context, table string, filters []Filter, order []Order, limit int) ([]Row, error) {
	q, args, err := buildSelect(table, filters, order, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(types))
		for i, ct := range types {
			row[ct.Name()] = columnValue(ct.DatabaseTypeName(), vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Update applies patch to every row matching filters and returns the count.
func (s *Store) Update(ctx context.Context, table string, filters []Filter, patch map[string]any) (int64, error) {
	q, args, err := buildUpdate(table, filters, patch)
	if err != nil {
		return 0, err
	}
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes every row matching filters and returns the count.
func (s *Store) Delete(ctx context.Context, table string, filters []Filter) (int64, error) {
	q, args, err := buildDelete(table, filters)
	if err != nil {
		return 0, err
	}
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func buildInsert(table string, rec map[string]any) (string, []any, error) {
	t, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	if len(rec) == 0 {
		return "", nil, errors.New("store: empty record")
	}
	rec = withID(rec)
	cols := sortedColumns(rec)
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if quoted[i], err = ident(c); err != nil {
			return "", nil, err
		}
		marks[i] = fmt.Sprintf("$%d", i+1)
		if args[i], err = bindValue(rec[c]); err != nil {
			return "", nil, fmt.Errorf("store: column %s: %w", c, err)
		}
	}
	q := fmt.Sprintf("insert into %s (%s) values (%s) returning id::text",
		t, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	return q, args, nil
}

func buildSelect(table string, filters []Filter, order []Order, limit int) (string, []any, error) {
	t, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(filters, 1)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("select * from ")
	b.WriteString(t)
	b.WriteString(where)
	if len(order) > 0 {
		parts := make([]string, len(order))
		for i, o := range order {
			c, err := ident(o.Column)
			if err != nil {
				return "", nil, err
			}
			if o.Desc {
				c += " desc"
			}
			parts[i] = c
		}
		b.WriteString(" order by ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " limit $%d", len(args))
	}
	return b.String(), args, nil
}

func buildUpdate(table string, filters []Filter, patch map[string]any) (string, []any, error) {
	t, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, ErrNoFilter
	}
	if len(patch) == 0 {
		return "", nil, errors.New("store: empty patch")
	}
	cols := sortedColumns(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		qc, err := ident(c)
		if err != nil {
			return "", nil, err
		}
		v, err := bindValue(patch[c])
		if err != nil {
			return "", nil, fmt.Errorf("store: column %s: %w", c, err)
		}
		args = append(args, v)
		sets[i] = fmt.Sprintf("%s = $%d", qc, len(args))
	}
	where, wargs, err := buildWhere(filters, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	args = append(args, wargs...)
	return fmt.Sprintf("update %s set %s%s", t, strings.Join(sets, ", "), where), args, nil
}

func buildDelete(table string, filters []Filter) (string, []any, error) {
	t, err := ident(table)
	if err != nil {
		return "", nil, err
	}
	if len(filters) == 0 {
		return "", nil, ErrNoFilter
	}
	where, args, err := buildWhere(filters, 1)
	if err != nil {
		return "", nil, err
	}
	return "delete from " + t + where, args, nil
}

func buildWhere(filters []Filter, first int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		c, err := ident(f.Column)
		if err != nil {
			return "", nil, err
		}
		op := f.Op
		if op == "" {
			op = OpEq
		}
		switch op {
		case OpEq, OpNe, OpLt, OpGt, OpLte, OpGte:
		default:
			return "", nil, fmt.Errorf("store: unsupported operator %q", op)
		}
		if args[i], err = bindValue(f.Value); err != nil {
			return "", nil, fmt.Errorf("store: filter %s: %w", f.Column, err)
		}
		conds[i] = fmt.Sprintf("%s %s $%d", c, op, first+i)
	}
	return " where " + strings.Join(conds, " and "), args, nil
}

func ident(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("store: invalid identifier %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// bindValue stores maps and slices as JSON text; scalars pass through.
func bindValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time, []byte, uuid.UUID:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func columnValue(dbType string, v any) any {
	switch strings.ToUpper(dbType) {
	case "JSON", "JSONB":
		var raw []byte
		switch x := v.(type) {
		case []byte:
			raw = x
		case string:
			raw = []byte(x)
		default:
			return v
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return string(raw)
		}
		return out
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func withID(rec map[string]any) map[string]any {
	if v, ok := rec["id"]; ok && v != nil && v != "" {
		return rec
	}
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out["id"] = uuid.NewString()
	return out
}

func sortedColumns(m map[string]any) []string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
