package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/models"
)

// SelectionRow is the last body compiled for a profile together with the
// selection it was assembled from.
type SelectionRow struct {
	Profile   string          `json:"profile"`
	Body      string          `json:"body"`
	Selection json.RawMessage `json:"selection"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecordBuild appends a build outcome.
func (db *DB) RecordBuild(r models.BuildRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO builds (key_sum, profile, status, dir, duration_ms, log, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.KeySum, r.Profile, r.Status, r.Dir, r.Duration.Milliseconds(), r.Log, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ledger: record build: %w", err)
	}
	return nil
}

// MarkEvicted flags the successful builds of a key as evicted.
func (db *DB) MarkEvicted(keySum string) error {
	_, err := db.conn.Exec(`
		UPDATE builds SET status = ?, dir = ''
		WHERE key_sum = ? AND status = ?
	`, models.BuildEvicted, keySum, models.BuildSucceeded)
	if err != nil {
		return fmt.Errorf("ledger: mark evicted: %w", err)
	}
	return nil
}

// RecentBuilds returns the newest builds first. An empty profile lists
// builds of every profile.
func (db *DB) RecentBuilds(profile string, limit int) ([]models.BuildRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT key_sum, profile, status, dir, duration_ms, log, created_at FROM builds`
	args := []any{}
	if profile != "" {
		q += ` WHERE profile = ?`
		args = append(args, profile)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent builds: %w", err)
	}
	defer rows.Close()

	out := []models.BuildRecord{}
	for rows.Next() {
		var r models.BuildRecord
		var ms int64
		if err := rows.Scan(&r.KeySum, &r.Profile, &r.Status, &r.Dir, &ms, &r.Log, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveSelection upserts the pending selection of a profile.
func (db *DB) SaveSelection(s SelectionRow) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	sel := string(s.Selection)
	if sel == "" {
		sel = "{}"
	}
	_, err := db.conn.Exec(`
		INSERT INTO selections (profile, body, selection, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			body       = excluded.body,
			selection  = excluded.selection,
			updated_at = excluded.updated_at
	`, s.Profile, s.Body, sel, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ledger: save selection: %w", err)
	}
	return nil
}

// Selection returns the pending selection of a profile or apperr.ErrNotFound.
func (db *DB) Selection(profile string) (*SelectionRow, error) {
	var s SelectionRow
	var sel string
	err := db.conn.QueryRow(`
		SELECT profile, body, selection, updated_at FROM selections WHERE profile = ?
	`, profile).Scan(&s.Profile, &s.Body, &sel, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: selection %s: %w", profile, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: selection: %w", err)
	}
	s.Selection = json.RawMessage(sel)
	return &s, nil
}
