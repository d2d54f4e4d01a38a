package usage

import (
	"context"
	"log/slog"
)

// MirrorStore keeps counters locally and forwards increments to the
// dashboard backend. The local copy is authoritative; a remote failure
// is logged and never surfaces to the caller.
type MirrorStore struct {
	local  Store
	remote Store
	logger *slog.Logger
}

func NewMirrorStore(local, remote Store, logger *slog.Logger) *MirrorStore {
	return &MirrorStore{local: local, remote: remote, logger: logger}
}

func (s *MirrorStore) Increment(ctx context.Context, userID string, d Delta) error {
	if err := s.local.Increment(ctx, userID, d); err != nil {
		return err
	}

	if err := s.remote.Increment(ctx, userID, d); err != nil {
		s.logger.Warn("failed to mirror usage to dashboard", "user_id", userID, "error", err)
	}
	return nil
}

func (s *MirrorStore) Get(ctx context.Context, userID string) (Counters, error) {
	return s.local.Get(ctx, userID)
}
