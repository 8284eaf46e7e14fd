package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams selects and pages the rows of a table.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as "What = ?".
	Where string
	Args  []any

	// Limit caps the number of rows returned. 0 returns every row.
	Limit  int
	Offset int

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string
}

// clauses renders the part of a SELECT that follows the table name.
func (p QueryParams) clauses() string {
	var sb strings.Builder

	if p.Where != "" {
		sb.WriteString(" WHERE " + p.Where)
	}

	if p.OrderBy != "" {
		sb.WriteString(" ORDER BY " + p.OrderBy)
	}

	switch {
	case p.Limit > 0:
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", p.Limit, p.Offset)
	case p.Offset > 0:
		fmt.Fprintf(&sb, " LIMIT -1 OFFSET %d", p.Offset)
	}

	return sb.String()
}

// DataReader reads back the tables that a DataRecorder wrote.
type DataReader interface {
	// MapTable decodes the rows of tableName into values of the type of
	// sampleEntry. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// Query returns one page of rows as pointers to the mapped type, and the
	// number of rows that match params.Where over all pages.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db    *sql.DB
	types map[string]reflect.Type
}

// NewReader opens the database file with the given driver.
func NewReader(filename, driver string) (DataReader, error) {
	db, err := sql.Open(driver, filename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB reads from an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:    db,
		types: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.types[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	t, ok := r.types[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	countParams := QueryParams{Where: params.Where}
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+countParams.clauses(),
		params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT * FROM "+tableName+params.clauses(), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := decodeRows(rows, t)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// decodeRows fills one new value of type t per row. Columns without a field
// of the same name are discarded.
func decodeRows(rows *sql.Rows, t reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(t)
		targets := make([]any, len(columns))

		for i, name := range columns {
			field := entry.Elem().FieldByName(name)
			if field.IsValid() {
				targets[i] = field.Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
