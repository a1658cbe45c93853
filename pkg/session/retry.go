package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// OpenWithRetry calls Open and re-attempts RetryableConnectErrors up to
// creds.Retries more times with exponential backoff. Any other error
// returns immediately.
func OpenWithRetry(ctx context.Context, creds config.Credentials, opts ...Option) (*Handle, error) {
	cfg := newOpenConfig(opts)

	b := cfg.backOff
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = time.Second
		eb.MaxElapsedTime = 0
		b = eb
	}
	retries := creds.Retries
	if retries < 0 {
		retries = 0
	}

	var handle *Handle
	attempt := 0
	operation := func() error {
		attempt++
		h, err := cfg.open(ctx, creds)
		if err == nil {
			handle = h
			return nil
		}
		if !dberror.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		cfg.logger.Warn("connect attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("retries", retries),
			slog.String("error", err.Error()))
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return handle, nil
}
