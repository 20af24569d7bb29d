package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SecretPurger clears verification codes and reset tokens that have expired.
type SecretPurger interface {
	PurgeExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}

// StartSecretPurgeJob runs the purge every interval until ctx is cancelled.
// Expiry is always checked on use, so the job only keeps stale secrets out of storage.
func StartSecretPurgeJob(ctx context.Context, repo SecretPurger, interval time.Duration, logger *zap.Logger) {
	if repo == nil {
		logger.Warn("secret purge job disabled: no repository")
		return
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	timeout := interval / 2
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeOnce(ctx, repo, timeout, logger)
			}
		}
	}()
}

func purgeOnce(ctx context.Context, repo SecretPurger, timeout time.Duration, logger *zap.Logger) {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	n, err := repo.PurgeExpiredSecrets(tickCtx, time.Now().UTC())
	if err != nil {
		logger.Warn("secret purge job error", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("secret purge job cleared expired secrets", zap.Int64("count", n))
	}
}
