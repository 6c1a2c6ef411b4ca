package connectivity

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Prober derives connectivity from periodic HEAD requests against a URL.
type Prober struct {
	*broadcaster
	client   *resty.Client
	url      string
	interval time.Duration
	logger   *zap.Logger
}

// NewProber creates a prober. It reports offline until the first probe.
func NewProber(url string, interval time.Duration, logger *zap.Logger) *Prober {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)

	return &Prober{
		broadcaster: newBroadcaster(Offline),
		client:      client,
		url:         url,
		interval:    interval,
		logger:      logger,
	}
}

func (p *Prober) Current(context.Context) State {
	return p.current()
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.logger.Info("Starting connectivity prober", zap.String("url", p.url), zap.Duration("interval", p.interval))
	p.ProbeOnce(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Connectivity prober shutting down")
			return
		case <-timer.C:
			p.ProbeOnce(ctx)
			timer.Reset(p.interval)
		}
	}
}

// ProbeOnce performs a single probe and publishes the result.
func (p *Prober) ProbeOnce(ctx context.Context) State {
	state := Offline
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	switch {
	case err != nil:
		p.logger.Debug("connectivity probe failed", zap.Error(err))
	case resp.StatusCode() >= 500:
		// The network is up but the remote is not usable.
		state = State{IsOnline: true, Type: "http", IsInternetReachable: false}
	default:
		state = State{IsOnline: true, Type: "http", IsInternetReachable: true}
	}

	if p.set(state) {
		p.logger.Info("Connectivity changed",
			zap.Bool("online", state.IsOnline),
			zap.Bool("reachable", state.IsInternetReachable),
		)
	}
	return state
}
