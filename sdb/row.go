package sdb

import "context"

// QueryOne runs a query expected to return a single row and returns
// that row's values in column order.
//
// An empty result set is a NotFound error with the message "No rows
// returned". Additional rows beyond the first are ignored.
func QueryOne(ctx context.Context, conn Connection, query string, params ...Value) ([]Value, error) {
	rs, err := conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rs.Close() //nolint:errcheck

	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return nil, AsError(err)
		}
		return nil, Errorf(KindNotFound, "No rows returned")
	}
	return currentRow(rs), nil
}

// QueryAll runs a query and returns every row's values in column
// order. An empty result set yields an empty slice, not an error.
func QueryAll(ctx context.Context, conn Connection, query string, params ...Value) ([][]Value, error) {
	rs, err := conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rs.Close() //nolint:errcheck

	rows := make([][]Value, 0, 8)
	for rs.Next() {
		rows = append(rows, currentRow(rs))
	}
	if err := rs.Err(); err != nil {
		return nil, AsError(err)
	}
	return rows, nil
}

func currentRow(rs ResultSet) []Value {
	cols := rs.ColumnNames()
	row := make([]Value, len(cols))
	for i := range cols {
		row[i] = rs.Get(i)
	}
	return row
}
