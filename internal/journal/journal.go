// Package journal keeps a local sqlite record of every event delivery
// attempt so operators can inspect what was sent after the fact.
//
// The journal is diagnostic only. Nothing is read back into the engine on
// restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/occupancy.report/internal/events"
)

// Journal wraps the sqlite handle.
type Journal struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the journal at path and migrates it to the
// latest schema. Use ":memory:" for an ephemeral journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises
	// writers without busy retries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}

	j := &Journal{DB: db, path: path}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the path the journal was opened with.
func (j *Journal) Path() string {
	return j.path
}

// StartRun records the start of a process run.
func (j *Journal) StartRun(ctx context.Context, runID, scenario, deviceID, version string, at time.Time) error {
	_, err := j.ExecContext(ctx,
		`INSERT INTO runs (run_id, scenario, device_id, version, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, scenario, deviceID, version, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecordEvent implements events.Journal.
func (j *Journal) RecordEvent(ctx context.Context, e events.Entry) error {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	_, err := j.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, route, time_marker, payload, ok, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.Route, e.TimeMarker, e.Payload, e.OK, errText, e.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit entries, newest first.
func (j *Journal) RecentEvents(ctx context.Context, limit int) ([]events.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.QueryContext(ctx,
		`SELECT event_id, run_id, route, time_marker, payload, ok, error, sent_at
		 FROM events ORDER BY sent_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Entry
	for rows.Next() {
		var (
			e       events.Entry
			errText sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Route, &e.TimeMarker, &e.Payload, &e.OK, &errText, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// RouteCount is the number of successful and failed sends for a route.
type RouteCount struct {
	Route  string `json:"route"`
	OK     int    `json:"ok"`
	Failed int    `json:"failed"`
}

// CountsByRoute summarises the journal per route, ordered by route.
func (j *Journal) CountsByRoute(ctx context.Context) ([]RouteCount, error) {
	rows, err := j.QueryContext(ctx,
		`SELECT route, SUM(CASE WHEN ok THEN 1 ELSE 0 END), SUM(CASE WHEN ok THEN 0 ELSE 1 END)
		 FROM events GROUP BY route ORDER BY route`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	var out []RouteCount
	for rows.Next() {
		var rc RouteCount
		if err := rows.Scan(&rc.Route, &rc.OK, &rc.Failed); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
