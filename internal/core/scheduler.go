package core

// scheduler.go closes sessions that have been idle for longer than the
// configured TTL.
//
// The reaper is long-running and context-aware for graceful shutdown. A
// session whose lock is held (an edit or batch in progress) is skipped and
// looked at again on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// StartSessionReaper runs until ctx is cancelled, closing idle sessions
// every interval. It does nothing when SessionTTL is zero.
func (s *Service) StartSessionReaper(ctx context.Context, interval time.Duration) {
	if s.cfg.SessionTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	slog.Info("session reaper started",
		"ttl", s.cfg.SessionTTL.String(),
		"interval", interval.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopped")
			return
		case <-ticker.C:
			if n := s.reapIdle(ctx, time.Now()); n > 0 {
				slog.Info("closed idle sessions", "count", n)
			}
		}
	}
}

// reapIdle closes sessions last used before now minus the TTL.
func (s *Service) reapIdle(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionTTL)

	s.mu.RLock()
	var idle []*session
	for _, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, sess := range idle {
		if !sess.mu.TryLock() {
			continue
		}
		stillIdle := sess.idleSince().Before(cutoff)
		sess.mu.Unlock()
		if !stillIdle {
			continue
		}
		if err := s.Close(ctx, sess.id); err == nil {
			closed++
		}
	}
	return closed
}
