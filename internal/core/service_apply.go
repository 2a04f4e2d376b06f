package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/JonMunkholm/datastore/internal/logging"
)

// Apply writes the session's pending changes in one transaction. policy is
// abort, continue or ignore_all; empty uses the configured default.
//
// The returned report is filled in even when err is non-nil.
func (s *Service) Apply(ctx context.Context, id, policy string) (ApplyReport, error) {
	if policy == "" {
		policy = s.cfg.ErrorPolicy
	}
	decision, err := datastore.ParseDecision(policy)
	if err != nil {
		return ApplyReport{}, err
	}

	sess, err := s.get(id)
	if err != nil {
		return ApplyReport{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ApplyReport{}, err
	}
	defer s.limiter.Release()

	if s.cfg.ApplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ApplyTimeout)
		defer cancel()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch()

	logger := logging.ForSession(ctx, id, sess.table)
	logger.Debug("applying changes", "policy", decision.String())
	ctx = logging.NewContext(ctx, logger)

	start := time.Now()
	res, err := sess.store.Apply(ctx, s.db.Executor(), datastore.FixedHandler(decision))
	elapsed := time.Since(start)

	s.metrics.ObserveApply(res, err, elapsed.Seconds())
	report := stamp(newApplyReport(decision.String(), res, sess.store, elapsed), start)
	sess.record(report)

	if err != nil {
		logger.Warn("apply failed",
			"error", err,
			"aborted", res.Aborted,
			"failed", res.Failed,
		)
		return report, err
	}

	logger.Info("apply finished",
		"deleted", report.Deleted,
		"updated", report.Updated,
		"inserted", report.Inserted,
		"failed", report.Failed,
		"rows_affected", report.RowsAffected,
		"cancelled", report.Cancelled,
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

// Cancel asks a running Apply on the session to stop after the current row.
// Rows applied so far are committed. Cancel does not wait.
func (s *Service) Cancel(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.store.Cancel()

	logging.ForSession(ctx, id, sess.table).Info("cancel requested")
	return nil
}
