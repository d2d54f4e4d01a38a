package usage

import (
	"context"
	"database/sql"
)

// SQLiteStore persists counters in the agent database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Increment(ctx context.Context, userID string, d Delta) error {
	if d.VideosProcessed == 0 && d.ClipsCreated == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_stats (user_id, videos_processed, clips_created, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			videos_processed = videos_processed + excluded.videos_processed,
			clips_created = clips_created + excluded.clips_created,
			updated_at = datetime('now')
	`, userID, d.VideosProcessed, d.ClipsCreated)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (Counters, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT videos_processed, clips_created FROM usage_stats WHERE user_id = ?
	`, userID)

	var c Counters
	err := row.Scan(&c.VideosProcessed, &c.ClipsCreated)
	if err == sql.ErrNoRows {
		// Unknown users read as zero, matching a counter that was never
		// incremented.
		return Counters{}, nil
	}
	if err != nil {
		return Counters{}, err
	}
	return c, nil
}
