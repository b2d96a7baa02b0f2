package connectivity

import (
	"context"

	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DBProber pings the remote store's connection pool.
type DBProber struct {
	db *sqlx.DB
}

func NewDBProber(db *sqlx.DB) *DBProber {
	return &DBProber{db: db}
}

func (p *DBProber) Probe(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HealthReporter mirrors connectivity into the gRPC health service so the
// POS shell can watch the terminal's sync state.
func HealthReporter(hs *health.Server, service string) Listener {
	return func(_ context.Context, ev Event) {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if ev == Online {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(service, status)
	}
}
