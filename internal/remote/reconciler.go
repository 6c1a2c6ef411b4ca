// Package remote pushes pending local changes to the remote counterpart.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"solar-field-backend/config"
	"solar-field-backend/internal/model"
)

// Reconciler hands a batch of changes to the remote. A nil error means the
// remote accepted the whole batch.
type Reconciler interface {
	Reconcile(ctx context.Context, cs model.ChangeSet) error
}

// SyncRequest is the body posted to the remote.
type SyncRequest struct {
	Schedules  []model.Schedule `json:"schedules"`
	Activities []model.Activity `json:"activities"`
}

// SyncResponse is the remote's verdict on a batch.
type SyncResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// HTTPReconciler posts change sets to <url>/sync.
type HTTPReconciler struct {
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPReconciler creates a reconciler for the configured remote.
func NewHTTPReconciler(cfg config.RemoteConfig, logger *zap.Logger) *HTTPReconciler {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for key, value := range cfg.Headers {
		client.SetHeader(key, value)
	}

	return &HTTPReconciler{client: client, logger: logger}
}

func (r *HTTPReconciler) Reconcile(ctx context.Context, cs model.ChangeSet) error {
	r.logger.Info("Calling remote sync",
		zap.Int("schedules", len(cs.Schedules)),
		zap.Int("activities", len(cs.Activities)),
	)

	var response SyncResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(SyncRequest{Schedules: cs.Schedules, Activities: cs.Activities}).
		SetResult(&response).
		Post("/sync")
	if err != nil {
		return fmt.Errorf("remote sync request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("remote sync returned status %d", resp.StatusCode())
	}
	if !response.Accepted {
		return fmt.Errorf("remote rejected batch: %s", response.Message)
	}
	return nil
}

// Simulated stands in for a remote that does not exist yet: it waits and
// accepts everything.
type Simulated struct {
	Delay time.Duration
}

func (s Simulated) Reconcile(ctx context.Context, _ model.ChangeSet) error {
	if s.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// New returns an HTTP reconciler when a URL is configured, otherwise the stub.
func New(cfg config.RemoteConfig, logger *zap.Logger) Reconciler {
	if cfg.URL == "" {
		logger.Warn("No remote URL configured; using simulated reconciliation")
		return Simulated{Delay: time.Duration(cfg.SimulatedDelayMS) * time.Millisecond}
	}
	return NewHTTPReconciler(cfg, logger)
}
