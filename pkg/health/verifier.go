// Package health gates a run on the reachability of the system under test.
package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"resty.dev/v3"

	"github.com/mkostova/taskgrid/pkg/models"
)

// ErrTargetUnreachable is returned once the probe retries are exhausted. It
// is a fatal precondition failure: no tasks may be dispatched after it.
var ErrTargetUnreachable = errors.New("target unreachable")

// Logger is the narrow logging surface the verifier needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Verifier issues an idempotent readiness probe with bounded, capped
// exponential backoff. The probe never mutates the target.
type Verifier struct {
	cfg    models.HealthCheckConfig
	client *resty.Client
	logger Logger
}

// NewVerifier builds a Verifier for the given probe configuration.
func NewVerifier(cfg models.HealthCheckConfig, logger Logger) *Verifier {
	return &Verifier{
		cfg:    cfg,
		client: resty.New().SetTimeout(cfg.BackoffCap),
		logger: logger,
	}
}

// Close releases the underlying HTTP client.
func (v *Verifier) Close() error {
	return v.client.Close()
}

// Verify probes the target URL, retrying up to MaxRetries times with delays
// of min(BackoffBase*2^attempt, BackoffCap). The wait between attempts is
// interruptible: cancelling ctx aborts an in-progress backoff immediately.
// On exhaustion it returns ErrTargetUnreachable wrapped with the last probe
// failure.
func (v *Verifier) Verify(ctx context.Context) error {
	if v.cfg.TargetURL == "" {
		return errors.New("health check target URL not configured")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = v.cfg.BackoffBase
	bo.MaxInterval = v.cfg.BackoffCap
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempt := 0
	probe := func() error {
		attempt++
		if err := v.probe(ctx); err != nil {
			v.logger.Warnf("Health probe attempt %d against %s failed: %v", attempt, v.cfg.TargetURL, err)
			return err
		}
		return nil
	}

	err := backoff.Retry(probe, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(v.cfg.MaxRetries)), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "health check cancelled")
		}
		return errors.Wrapf(ErrTargetUnreachable, "after %d attempts: %v", attempt, err)
	}
	v.logger.Infof("Target %s healthy after %d attempt(s)", v.cfg.TargetURL, attempt)
	return nil
}

func (v *Verifier) probe(ctx context.Context) error {
	res, err := v.client.R().SetContext(ctx).Get(v.cfg.TargetURL)
	if err != nil {
		return err
	}
	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("unhealthy status %d", res.StatusCode())
	}
	return nil
}
