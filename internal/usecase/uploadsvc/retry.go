package uploadsvc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// RetryPolicy — сколько раз и с какой паузой повторять операцию после сетевого сбоя.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy возвращает политику по умолчанию.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// newBackOff строит экспоненциальный backoff, который останавливается после MaxAttempts-1 повторов.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// wait спит d или до отмены контекста.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// reconcile узнаёт у сервера реальное состояние загрузки: принятый offset или готовый файл.
// Повторяется только при сетевых сбоях.
func (c *Coordinator) reconcile(ctx context.Context, uploadID string) (models.UploadState, error) {
	op := func() (models.UploadState, error) {
		st, err := c.Client.ResolveUpload(ctx, uploadID)
		if err != nil && !models.IsTransport(err) {
			return models.UploadState{}, backoff.Permanent(err)
		}
		return st, err
	}
	notify := func(err error, d time.Duration) {
		c.Log.Warn().Err(err).Str("upload_id", uploadID).Dur("retry_in", d).Msg("offset lookup failed")
	}

	st, err := backoff.RetryNotifyWithData(op, backoff.WithContext(c.Retry.newBackOff(), ctx), notify)
	if err != nil {
		return models.UploadState{}, err
	}
	c.Metrics.resync()
	return st, nil
}
