package store

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/fruit-matcher/internal/matching"
)

// MatchRecord is a match offered to a seeker in the past.
type MatchRecord struct {
	SeekerID     string    `json:"seekerId"`
	CandidateID  string    `json:"candidateId"`
	Score        float64   `json:"score"`
	ReverseScore float64   `json:"reverseScore"`
	MutualScore  float64   `json:"mutualScore"`
	MatchedAt    time.Time `json:"matchedAt"`
}

// SaveMatches records that matches were offered to seekerID. Re-offering a
// candidate refreshes its scores and timestamp.
func (d *DB) SaveMatches(ctx context.Context, seekerID string, matches []matching.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save matches: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO matches (seeker_id, candidate_id, score, reverse_score, mutual_score, matched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(seeker_id, candidate_id) DO UPDATE SET
  score = excluded.score,
  reverse_score = excluded.reverse_score,
  mutual_score = excluded.mutual_score,
  matched_at = excluded.matched_at;
`)
	if err != nil {
		return fmt.Errorf("prepare save matches: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, seekerID, m.CandidateID, m.Score, m.ReverseScore, m.MutualScore, ts); err != nil {
			return fmt.Errorf("save match %s -> %s: %w", seekerID, m.CandidateID, err)
		}
	}

	return tx.Commit()
}

// MatchedCandidateIDs lists every candidate already offered to seekerID.
func (d *DB) MatchedCandidateIDs(ctx context.Context, seekerID string) ([]string, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT candidate_id FROM matches WHERE seeker_id = ? ORDER BY matched_at, candidate_id;
`, seekerID)
	if err != nil {
		return nil, fmt.Errorf("list matched candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMatches returns the match history of seekerID, best mutual score first.
func (d *DB) ListMatches(ctx context.Context, seekerID string) ([]MatchRecord, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT seeker_id, candidate_id, score, reverse_score, mutual_score, matched_at
FROM matches WHERE seeker_id = ?
ORDER BY mutual_score DESC, candidate_id;
`, seekerID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	records := []MatchRecord{}
	for rows.Next() {
		var (
			r  MatchRecord
			ts string
		)
		if err := rows.Scan(&r.SeekerID, &r.CandidateID, &r.Score, &r.ReverseScore, &r.MutualScore, &ts); err != nil {
			return nil, err
		}
		if r.MatchedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse matched_at %q: %w", ts, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
