// Package rundb persists ground-state search results and per-sweep
// telemetry in a small SQLite database, generalized from mat/disk.go's
// DiskMatrix (a single sparse matrix backed by a SQLite table) into a
// content-addressed cache keyed by a run's configuration hash: identical
// configs reuse a prior run's result instead of re-running DMRG. Sweep
// telemetry is stored one SweepRecord per RecordSweep call; cmd/mpsrun
// records a single one, for the final sweep of the search.
package rundb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableRuns   = "runs"
	tableSweeps = "sweeps"
)

// DB is a handle to a run cache.
type DB struct {
	Path string
	db   *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &DB{Path: path, db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Hash returns the content address of a run's config, the JSON-encoded
// runconfig.Config that produced it.
func Hash(configJSON []byte) string {
	sum := sha256.Sum256(configJSON)
	return hex.EncodeToString(sum[:])
}

// Result is a completed ground-state search's outcome, mirroring
// sweep.DMRGResult so callers can round-trip one directly.
type Result struct {
	Energy       float64
	Sweeps       int
	Converged    bool
	MaxDiscarded float64
}

// SweepRecord is one sweep's telemetry within a run.
type SweepRecord struct {
	Sweep        int
	Energy       float64
	MaxDiscarded float64
}

// Lookup returns a previously saved result for hash, if any.
func (d *DB) Lookup(hash string) (Result, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT energy, sweeps, converged, max_discarded FROM %s WHERE hash=?`, tableRuns)
	var res Result
	var converged int
	err := d.db.QueryRowContext(ctx, sqlStr, hash).Scan(&res.Energy, &res.Sweeps, &converged, &res.MaxDiscarded)
	switch {
	case err == sql.ErrNoRows:
		return Result{}, false, nil
	case err != nil:
		return Result{}, false, errors.Wrap(err, "")
	default:
		res.Converged = converged != 0
		return res, true, nil
	}
}

// SaveResult records a completed run's result under hash, alongside the
// config JSON that produced it (kept for provenance, not read back by
// Lookup).
func (d *DB) SaveResult(hash string, configJSON []byte, res Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (hash, config, energy, sweeps, converged, max_discarded, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`, tableRuns)
	converged := 0
	if res.Converged {
		converged = 1
	}
	args := []any{hash, string(configJSON), res.Energy, res.Sweeps, converged, res.MaxDiscarded, time.Now().UTC().Format(time.RFC3339)}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// RecordSweep appends one sweep's telemetry for the run identified by hash.
func (d *DB) RecordSweep(hash string, rec SweepRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (hash, sweep, energy, max_discarded) VALUES (?, ?, ?, ?)`, tableSweeps)
	args := []any{hash, rec.Sweep, rec.Energy, rec.MaxDiscarded}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Sweeps returns every recorded sweep for hash, in sweep order.
func (d *DB) Sweeps(hash string) ([]SweepRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT sweep, energy, max_discarded FROM %s WHERE hash=? ORDER BY sweep`, tableSweeps)
	rows, err := d.db.QueryContext(ctx, sqlStr, hash)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	recs := make([]SweepRecord, 0)
	for rows.Next() {
		var r SweepRecord
		if err := rows.Scan(&r.Sweep, &r.Energy, &r.MaxDiscarded); err != nil {
			return nil, errors.Wrap(err, "")
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return recs, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (hash TEXT PRIMARY KEY, config TEXT, energy REAL, sweeps INTEGER, converged INTEGER, max_discarded REAL, created_at TEXT) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (hash TEXT, sweep INTEGER, energy REAL, max_discarded REAL, PRIMARY KEY (hash, sweep)) STRICT`, tableSweeps),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}
