package cart

import (
	"context"

	"go.uber.org/zap"
)

// step is one unit of a cart mutation with the action that undoes it.
type step struct {
	name       string
	execute    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// runSteps executes steps in order. On failure the steps that completed are
// compensated in reverse order and the original error is returned.
func runSteps(ctx context.Context, logger *zap.Logger, steps ...step) error {
	done := make([]step, 0, len(steps))
	for _, s := range steps {
		logger.Debug("cart: executing step", zap.String("step", s.name))
		if err := s.execute(ctx); err != nil {
			logger.Warn("cart: step failed, rolling back", zap.String("step", s.name), zap.Error(err))
			rollback(ctx, logger, done)
			return err
		}
		done = append(done, s)
	}
	return nil
}

func rollback(ctx context.Context, logger *zap.Logger, steps []step) {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.compensate == nil {
			continue
		}
		logger.Debug("cart: compensating step", zap.String("step", s.name))
		if err := s.compensate(ctx); err != nil {
			logger.Error("cart: compensation failed", zap.String("step", s.name), zap.Error(err))
		}
	}
}
