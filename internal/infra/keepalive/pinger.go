package keepalive

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/config"
	"telegram-secret-relay/internal/infra/metrics"
)

// Pinger keeps free-tier hosts awake by fetching a URL on an interval.
// With no URL configured it does nothing.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *zerolog.Logger
}

func NewPinger(cfg config.PingConfig, logger *zerolog.Logger) *Pinger {
	l := logger.With().Str("component", "Pinger").Logger()
	return &Pinger{
		url:      cfg.URL,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      &l,
	}
}

func (p *Pinger) Enabled() bool { return p.url != "" }

func (p *Pinger) Run(ctx context.Context) error {
	if !p.Enabled() {
		p.log.Info().Msg("Keep-alive pinger disabled (no URL)")
		return nil
	}
	p.log.Info().Str("url", p.url).Dur("interval", p.interval).Msg("Starting keep-alive pinger")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Stopping keep-alive pinger")
			return ctx.Err()
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		metrics.IncKeepalivePing("error")
		p.log.Warn().Err(err).Msg("ping request build failed")
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		metrics.IncKeepalivePing("error")
		p.log.Warn().Err(err).Msg("ping failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		metrics.IncKeepalivePing("error")
		p.log.Warn().Int("status", resp.StatusCode).Msg("ping returned error status")
		return
	}
	metrics.IncKeepalivePing("ok")
}
