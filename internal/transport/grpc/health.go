package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in line with the database.
type HealthReporter struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
	log      *slog.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(hs *health.Server, db Pinger, interval time.Duration, log *slog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthReporter{health: hs, db: db, interval: interval, log: log}
}

// Run checks the database every interval until ctx is done, then reports
// NOT_SERVING for good.
func (r *HealthReporter) Run(ctx context.Context) error {
	r.Check(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.health.Shutdown()
			return nil
		case <-t.C:
			r.Check(ctx)
		}
	}
}

func (r *HealthReporter) Check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	next := healthpb.HealthCheckResponse_SERVING
	if err := r.db.PingContext(pctx); err != nil {
		next = healthpb.HealthCheckResponse_NOT_SERVING
		if ctx.Err() == nil {
			r.log.Warn("database ping failed", slog.Any("err", err))
		}
	}
	if next != r.last {
		r.log.Info("health status changed", slog.String("status", next.String()))
		r.last = next
	}
	r.health.SetServingStatus("", next)
}
