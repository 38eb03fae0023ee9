package logdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DefaultQueryLimit caps result sets when the caller does not say otherwise.
const DefaultQueryLimit = 1000

// QueryWhere fetches records matching a SQL predicate fragment (as produced
// by the dsl package), newest first. An empty where matches all rows.
func (s *Store) QueryWhere(ctx context.Context, where string, params []any, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	q := "SELECT id, timestamp, level, source, process, module, version, message, traceback, event_run_id, context FROM logs"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args := append(append([]any(nil), params...), limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrStorage, err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r                                        Record
		source, process, version, tb, runID, ctx sql.NullString
	)
	err := rows.Scan(&r.ID, &r.Timestamp, &r.Level, &source, &process, &r.Module,
		&version, &r.Message, &tb, &runID, &ctx)
	if err != nil {
		return Record{}, fmt.Errorf("%w: scan: %w", ErrStorage, err)
	}
	r.Source = source.String
	r.Process = process.String
	r.Version = version.String
	r.Traceback = tb.String
	r.EventRunID = runID.String
	if ctx.Valid && ctx.String != "" {
		var v any
		if json.Unmarshal([]byte(ctx.String), &v) == nil {
			r.Context = v
		} else {
			// Not JSON; keep the raw text rather than dropping it.
			r.Context = ctx.String
		}
	}
	return r, nil
}

// Facet columns that may be enumerated with Distinct.
var facetColumns = map[string]bool{
	"module":  true,
	"source":  true,
	"process": true,
	"version": true,
}

// Distinct returns the observed values of a facet column, ascending,
// skipping NULL/empty values.
func (s *Store) Distinct(ctx context.Context, column string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	if !facetColumns[column] {
		return nil, fmt.Errorf("%w: no facet for column %q", ErrStorage, column)
	}

	q := fmt.Sprintf("SELECT DISTINCT %s FROM logs WHERE %s IS NOT NULL AND %s != '' ORDER BY %s",
		column, column, column, column)
	return s.stringColumn(ctx, q)
}

// EventRunIDs returns the 100 most recent distinct correlation ids,
// descending.
func (s *Store) EventRunIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	return s.stringColumn(ctx,
		"SELECT DISTINCT event_run_id FROM logs WHERE event_run_id IS NOT NULL ORDER BY event_run_id DESC LIMIT 100")
}

func (s *Store) stringColumn(ctx context.Context, q string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: facet: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: facet scan: %w", ErrStorage, err)
		}
		if v.Valid && v.String != "" {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: facet: %w", ErrStorage, err)
	}
	return out, nil
}

// HourlyStats returns per-hour record counts, most recent hour first,
// capped to 1000 buckets.
func (s *Store) HourlyStats(ctx context.Context) ([]HourBucket, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d %H:00', timestamp / 1000, 'unixepoch') AS hour,
		       COUNT(*) AS count
		FROM logs
		GROUP BY hour
		ORDER BY hour DESC
		LIMIT 1000`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []HourBucket
	for rows.Next() {
		var b HourBucket
		if err := rows.Scan(&b.Hour, &b.Count); err != nil {
			return nil, fmt.Errorf("%w: stats scan: %w", ErrStorage, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats: %w", ErrStorage, err)
	}
	return out, nil
}
