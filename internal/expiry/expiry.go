// Package expiry runs the scheduled subscription sweep: snapshots whose
// expiry timestamp has lapsed but still read active are flipped to
// expired. The send-time credit gate already denies lapsed subscriptions
// on its own; the sweep keeps stored snapshots and list views honest.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"introchat/pkg/config"
	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/store"
)

// Start starts the expiry scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	exp := eff.Config.Expiry

	if !exp.Enabled {
		logger.Info("expiry_disabled")
		return func() {}, nil
	}

	// map empty cron to default hourly
	cronExpr := exp.Cron
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("expiry_invalid_cron", "cron", exp.Cron)
		return nil, fmt.Errorf("invalid expiry cron expression: %s", exp.Cron)
	}

	logger.Info("expiry_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("expiry_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("expiry_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			if _, err := RunOnce(ctx); err != nil {
				logger.Error("expiry_run_error", "error", err)
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			if _, err := RunOnce(ctx); err != nil {
				logger.Error("expiry_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("expiry_scheduler_stopping")
			return
		}
	}
}

// RunOnce sweeps all stored subscriptions once and returns how many were
// flipped to expired. Exposed for tests and admin triggers.
func RunOnce(ctx context.Context) (int, error) {
	subs, err := store.ListSubscriptions()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().UnixNano()
	flipped := 0
	for _, s := range subs {
		if s.Status != models.SubActive || s.ExpiresTS == 0 || s.ExpiresTS >= cutoff {
			continue
		}
		if _, err := store.UpdateSubscription(s.User, func(cur *models.Subscription) error {
			if cur.Status != models.SubActive || cur.ExpiresTS == 0 || cur.ExpiresTS >= cutoff {
				return nil
			}
			cur.Status = models.SubExpired
			return nil
		}); err != nil {
			logger.Warn("expiry_flip_failed", "user", s.User, "error", err)
			continue
		}
		flipped++
		logger.Info("subscription_expired", "user", s.User)
	}
	return flipped, nil
}
