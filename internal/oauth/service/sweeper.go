package service

import (
	"context"
	"time"

	dErrors "stride/pkg/domain-errors"
)

// SweepExpiredCodesAt deletes authorization codes that are past their TTL as
// of now and reports how many were removed. Exported for testability; the
// background loop passes wall-clock time.
func (s *Service) SweepExpiredCodesAt(ctx context.Context, now time.Time) (int, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.codes.DeleteCreatedBefore(storeCtx, now.Add(-s.cfg.AuthCodeTTL))
	if err != nil {
		return 0, dErrors.FromStoreError(err, "failed to sweep authorization codes")
	}
	s.metrics.AddCodesSwept(n)
	return n, nil
}

// StartSweeper runs SweepExpiredCodesAt every interval until ctx is
// cancelled. A failed sweep is logged and retried on the next tick.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.SweepExpiredCodesAt(ctx, time.Now())
			if err != nil {
				s.logger.WarnContext(ctx, "authorization code sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "swept expired authorization codes", "count", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
