package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/veganlens/veganlens-core/internal/infrastructure/database"
)

// Journal persists transition and reset history to SQLite for operator
// diagnostics. The core itself is fully transient; the journal is optional
// and has no behavioural effect.
//
// Write failures are logged, never propagated: a broken journal must not
// degrade camera coordination.
type Journal struct {
	db     *database.DB
	logger Logger
}

// JournalTransition is one persisted transition row.
type JournalTransition struct {
	FromMode   string    `json:"from_mode"`
	ToMode     string    `json:"to_mode"`
	Owner      string    `json:"owner"`
	DurationMS int64     `json:"duration_ms"`
	NeedsReset bool      `json:"needs_reset"`
	CreatedAt  time.Time `json:"created_at"`
}

// JournalReset is one persisted reset row.
type JournalReset struct {
	FromMode   string    `json:"from_mode"`
	ToMode     string    `json:"to_mode"`
	Reason     string    `json:"reason"`
	Tier       int       `json:"tier"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewJournal creates a journal over an opened, migrated database.
func NewJournal(db *database.DB, logger Logger) *Journal {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Journal{db: db, logger: logger}
}

// RecordTransition persists one completed transition.
func (j *Journal) RecordTransition(ctx context.Context, sample TransitionSample, owner string, needsReset bool) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO camera_transitions (from_mode, to_mode, owner, duration_ms, needs_reset)
		 VALUES (?, ?, ?, ?, ?)`,
		string(sample.From), string(sample.To), owner, sample.Duration.Milliseconds(), boolToInt(needsReset),
	)
	if err != nil {
		j.logger.Warn("journal transition write failed", "error", err)
	}
}

// RecordReset persists one completed recovery sequence.
func (j *Journal) RecordReset(ctx context.Context, fromMode, toMode Mode, reason string, tier int, duration time.Duration) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO camera_resets (from_mode, to_mode, reason, tier, duration_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		string(fromMode), string(toMode), reason, tier, duration.Milliseconds(),
	)
	if err != nil {
		j.logger.Warn("journal reset write failed", "error", err)
	}
}

// RecentTransitions returns the newest transition rows, newest first.
func (j *Journal) RecentTransitions(ctx context.Context, limit int) ([]JournalTransition, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT from_mode, to_mode, owner, duration_ms, needs_reset, created_at
		 FROM camera_transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []JournalTransition
	for rows.Next() {
		var t JournalTransition
		var needsReset int
		if err := rows.Scan(&t.FromMode, &t.ToMode, &t.Owner, &t.DurationMS, &needsReset, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		t.NeedsReset = needsReset != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentResets returns the newest reset rows, newest first.
func (j *Journal) RecentResets(ctx context.Context, limit int) ([]JournalReset, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT from_mode, to_mode, reason, tier, duration_ms, created_at
		 FROM camera_resets ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying resets: %w", err)
	}
	defer rows.Close()

	var out []JournalReset
	for rows.Next() {
		var r JournalReset
		if err := rows.Scan(&r.FromMode, &r.ToMode, &r.Reason, &r.Tier, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reset row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
