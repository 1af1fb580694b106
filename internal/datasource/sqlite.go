package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/seltable/pkg/debug"
	"github.com/vanderheijden86/seltable/pkg/fetch"
	"github.com/vanderheijden86/seltable/pkg/record"
)

// Filter operators are selected by a suffix on the parameter name:
// "age__gte", "age__lte", "name__prefix". Plain names compare for equality;
// array values become IN lists.
const (
	suffixGte    = "__gte"
	suffixLte    = "__lte"
	suffixPrefix = "__prefix"
)

// CodeUnknownColumn is returned in the response envelope when a parameter
// names a column the table does not have.
const CodeUnknownColumn = 1

// SQLiteOptions configures a SQLiteProvider.
type SQLiteOptions struct {
	// PrimaryKey orders pages; rowid is used when the table lacks it.
	PrimaryKey string
	// NestKey is where paging and filter parameters are nested, if anywhere.
	NestKey string
}

// SQLiteProvider pages through one table of a read-only SQLite database.
type SQLiteProvider struct {
	db      *sql.DB
	path    string
	table   string
	columns []string
	known   map[string]bool
	orderBy string
	nestKey string
}

// NewSQLiteProvider opens path read-only. An empty table selects the first
// user table.
func NewSQLiteProvider(path, table string, opts SQLiteOptions) (*SQLiteProvider, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite: %s: %v", pragma, err)
		}
	}

	p := &SQLiteProvider{db: db, path: path, nestKey: opts.NestKey}
	if table == "" {
		table, err = firstTable(db)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	p.table = table

	p.columns, err = tableColumns(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	p.known = make(map[string]bool, len(p.columns))
	for _, c := range p.columns {
		p.known[c] = true
	}

	p.orderBy = "rowid"
	if opts.PrimaryKey != "" && p.known[opts.PrimaryKey] {
		p.orderBy = quoteIdent(opts.PrimaryKey)
	}
	return p, nil
}

func firstTable(db *sql.DB) (string, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name LIMIT 1`).Scan(&name)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("database has no tables")
	}
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}
	return name, nil
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %q: %w", table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return cols, nil
}

// quoteIdent quotes an SQL identifier: "na""me".
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Table returns the table being paged.
func (p *SQLiteProvider) Table() string { return p.table }

// Columns returns the table's column names in declaration order.
func (p *SQLiteProvider) Columns() []string {
	return append([]string(nil), p.columns...)
}

// Close closes the database connection
func (p *SQLiteProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Count returns the number of rows in the table.
func (p *SQLiteProvider) Count() (int, error) {
	var n int
	query, args, err := sq.Select("COUNT(*)").From(quoteIdent(p.table)).ToSql()
	if err != nil {
		return 0, err
	}
	if err := p.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

// Fetch implements fetch.Provider. Unknown filter columns produce a
// non-success code rather than an error.
func (p *SQLiteProvider) Fetch(ctx context.Context, q fetch.Query) (fetch.Response, error) {
	pg, size := q.Page(p.nestKey), q.PageSize(p.nestKey)
	if pg < 1 {
		pg = 1
	}
	if size < 1 {
		size = fetch.DefaultPageSize
	}

	where, err := p.conditions(q)
	if err != nil {
		return fetch.Response{Code: CodeUnknownColumn, Message: err.Error()}, nil
	}

	cols := make([]string, len(p.columns))
	for i, c := range p.columns {
		cols[i] = quoteIdent(c)
	}
	query, args, err := sq.Select(cols...).
		From(quoteIdent(p.table)).
		Where(where).
		OrderBy(p.orderBy).
		Limit(uint64(size)).
		Offset(uint64((pg - 1) * size)).
		ToSql()
	if err != nil {
		return fetch.Response{}, fmt.Errorf("building query: %w", err)
	}
	debug.Log("sqlite: %s %v", query, args)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fetch.Response{}, fmt.Errorf("querying %s: %w", p.table, err)
	}
	defer rows.Close()

	list := make([]record.Record, 0, size)
	for rows.Next() {
		vals := make([]any, len(p.columns))
		ptrs := make([]any, len(p.columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fetch.Response{}, fmt.Errorf("scanning row: %w", err)
		}
		rec := make(record.Record, len(p.columns))
		for i, c := range p.columns {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return fetch.Response{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return fetch.Response{Data: fetch.Data{List: list}}, nil
}

// conditions turns query parameters into a WHERE clause. Paging parameters
// are skipped; with a nest key only the nested object is consulted.
func (p *SQLiteProvider) conditions(q fetch.Query) (sq.And, error) {
	params := map[string]any(q)
	if p.nestKey != "" {
		params, _ = q[p.nestKey].(map[string]any)
	}

	names := make([]string, 0, len(params))
	for k := range params {
		if k == fetch.ParamPage || k == fetch.ParamPageSize {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	and := sq.And{}
	for _, name := range names {
		v := params[name]
		col, op := name, ""
		for _, suf := range []string{suffixGte, suffixLte, suffixPrefix} {
			if strings.HasSuffix(name, suf) {
				col, op = strings.TrimSuffix(name, suf), suf
				break
			}
		}
		if !p.known[col] {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		qc := quoteIdent(col)
		switch op {
		case suffixGte:
			and = append(and, sq.GtOrEq{qc: v})
		case suffixLte:
			and = append(and, sq.LtOrEq{qc: v})
		case suffixPrefix:
			and = append(and, sq.Like{qc: stripWildcards(fmt.Sprint(v)) + "%"})
		default:
			and = append(and, sq.Eq{qc: v})
		}
	}
	return and, nil
}

func stripWildcards(s string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(s)
}
