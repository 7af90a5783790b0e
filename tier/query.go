package tier

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/bobg/sqlutil"
	"github.com/pkg/errors"
)

// Op is a timestamp comparison operator. Nearest is resolved by the
// caller (package isto), not here: this package only ever executes the
// four primitive SQL comparisons plus equality.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "="
	OpGE Op = ">="
	OpGT Op = ">"
)

func (s *Store) declared(tag string) bool {
	for _, t := range s.cfg.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// whereTags builds a " AND tag = ? AND ..." fragment for the supplied
// tag filter. Every key must name a declared tag column: filtering on
// an undeclared tag is a caller error, reported here rather than left
// to surface as an opaque "no such column" SQL error.
func (s *Store) whereTags(tags map[string]string) (string, []interface{}, error) {
	if len(tags) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if !s.declared(k) {
			return "", nil, errors.Errorf("undeclared tag %q", k)
		}
		keys = append(keys, k)
	}
	// Deterministic order keeps generated SQL (and therefore test
	// expectations and query-plan caching) stable across calls.
	sort.Strings(keys)
	var (
		clauses []string
		args    []interface{}
	)
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = ?", k))
		args = append(args, tags[k])
	}
	return " AND " + strings.Join(clauses, " AND "), args, nil
}

// NearestTimestamp finds the timestamp in this tier's index nearest to
// (for op <, <=: at or before; for op >=, >: at or after) ts, restricted
// to rows matching tags. It reports ok=false if no row matches.
func (s *Store) NearestTimestamp(ctx context.Context, op Op, ts string, tags map[string]string) (string, bool, error) {
	agg := "max"
	cmp := "<="
	switch op {
	case OpLT:
		cmp = "<"
	case OpLE, OpEQ:
		cmp = "<="
	case OpGE:
		agg, cmp = "min", ">="
	case OpGT:
		agg, cmp = "min", ">"
	default:
		return "", false, errors.Errorf("unsupported operator %q", op)
	}

	tagWhere, tagArgs, err := s.whereTags(tags)
	if err != nil {
		return "", false, err
	}
	query := fmt.Sprintf(`SELECT %s(timestamp) FROM DataItems WHERE timestamp %s ?%s`, agg, cmp, tagWhere)
	args := append([]interface{}{ts}, tagArgs...)

	var result sql.NullString
	if err := s.tx.QueryRowContext(ctx, query, args...).Scan(&result); err != nil {
		return "", false, errors.Wrap(err, "querying nearest timestamp")
	}
	if !result.Valid {
		return "", false, nil
	}
	return result.String, true, nil
}

// IDForTimestamp returns the id of the (assumed unique) row whose
// timestamp equals ts and whose tags match, if any.
func (s *Store) IDForTimestamp(ctx context.Context, ts string, tags map[string]string) (string, bool, error) {
	tagWhere, tagArgs, err := s.whereTags(tags)
	if err != nil {
		return "", false, err
	}
	query := fmt.Sprintf(`SELECT id FROM DataItems WHERE timestamp = ?%s LIMIT 1`, tagWhere)
	args := append([]interface{}{ts}, tagArgs...)

	var id string
	err = s.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "querying id for timestamp")
	}
	return id, true, nil
}

func (s *Store) rowDest() ([]interface{}, *string, *string, *string, *int64, []string) {
	cols := s.columns()
	dest := make([]interface{}, len(cols))
	var id, ts, path string
	var size int64
	dest[0], dest[1], dest[2], dest[3] = &id, &ts, &path, &size
	tagVals := make([]string, len(s.cfg.Tags))
	for i := range s.cfg.Tags {
		dest[4+i] = &tagVals[i]
	}
	return dest, &id, &ts, &path, &size, tagVals
}

func (s *Store) rowFromDest(id, ts, path string, size int64, tagVals []string) Row {
	tags := make(map[string]string, len(s.cfg.Tags))
	for i, tag := range s.cfg.Tags {
		tags[tag] = tagVals[i]
	}
	return Row{ID: id, Timestamp: ts, Path: path, Size: size, Tags: tags}
}

func (s *Store) selectColumnsSQL() string {
	return strings.Join(s.columns(), ", ")
}

// GetByID returns the row for id, or ok=false if no such row exists.
func (s *Store) GetByID(ctx context.Context, id string) (Row, bool, error) {
	dest, pid, pts, ppath, psize, tagVals := s.rowDest()
	query := fmt.Sprintf(`SELECT %s FROM DataItems WHERE id = ?`, s.selectColumnsSQL())
	err := s.tx.QueryRowContext(ctx, query, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, errors.Wrapf(err, "getting row %s", id)
	}
	return s.rowFromDest(*pid, *pts, *ppath, *psize, tagVals), true, nil
}

// DeleteByID removes the row for id and returns what it was, or
// ok=false if no such row existed. The caller is responsible for
// removing the corresponding content file.
func (s *Store) DeleteByID(ctx context.Context, id string) (Row, bool, error) {
	row, ok, err := s.GetByID(ctx, id)
	if err != nil || !ok {
		return Row{}, ok, err
	}
	if _, err := s.tx.ExecContext(ctx, `DELETE FROM DataItems WHERE id = ?`, id); err != nil {
		return Row{}, false, errors.Wrapf(err, "deleting row %s", id)
	}
	s.MarkDirty()
	if s.cfg.Kind == Rotating {
		s.currentBytes -= row.Size
	}
	return row, true, nil
}

// Order controls the sort direction of Range results.
type Order int

const (
	DontCare Order = iota
	Asc
	Desc
)

// Range returns rows with timestamp in [start, end], matching tags, in
// the requested order (unless DontCare, in which case the underlying
// table order is used), capped at max rows. max == 0 yields no rows.
func (s *Store) Range(ctx context.Context, start, end string, tags map[string]string, max int, order Order) ([]Row, error) {
	if max == 0 {
		return nil, nil
	}
	tagWhere, tagArgs, err := s.whereTags(tags)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM DataItems WHERE timestamp BETWEEN ? AND ?%s`, s.selectColumnsSQL(), tagWhere)
	args := append([]interface{}{start, end}, tagArgs...)
	switch order {
	case Asc:
		query += " ORDER BY timestamp ASC"
	case Desc:
		query += " ORDER BY timestamp DESC"
	}
	query += " LIMIT ?"
	args = append(args, max)

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying range")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		dest, pid, pts, ppath, psize, tagVals := s.rowDest()
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scanning range row")
		}
		out = append(out, s.rowFromDest(*pid, *pts, *ppath, *psize, tagVals))
	}
	return out, errors.Wrap(rows.Err(), "iterating range rows")
}

// IDsSortedAscending returns ids from this tier whose timestamp is in
// the half-open interval [begin, end) — either bound may be empty to
// leave it unconstrained — in ascending timestamp order.
func (s *Store) IDsSortedAscending(ctx context.Context, begin, end string) ([]string, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if begin != "" {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, begin)
	}
	if end != "" {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, end)
	}
	query := "SELECT id FROM DataItems"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp ASC"

	var ids []string
	callArgs := append(args, func(id string) {
		ids = append(ids, id)
	})
	err := sqlutil.ForQueryRows(ctx, s.tx, query, callArgs...)
	return ids, errors.Wrap(err, "listing ids by ascending timestamp")
}

// OldestFirst iterates rotating rows in ascending timestamp order,
// invoking f for each. It stops early if f returns false.
func (s *Store) OldestFirst(ctx context.Context, f func(Row) (bool, error)) error {
	query := fmt.Sprintf(`SELECT %s FROM DataItems ORDER BY timestamp ASC`, s.selectColumnsSQL())
	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "querying oldest rows")
	}
	defer rows.Close()

	for rows.Next() {
		dest, pid, pts, ppath, psize, tagVals := s.rowDest()
		if err := rows.Scan(dest...); err != nil {
			return errors.Wrap(err, "scanning row")
		}
		cont, err := f(s.rowFromDest(*pid, *pts, *ppath, *psize, tagVals))
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return errors.Wrap(rows.Err(), "iterating oldest rows")
}
