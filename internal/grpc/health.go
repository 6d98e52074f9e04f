package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bookstore/services/items/internal/events"
	"github.com/bookstore/services/items/internal/repo"
)

// defaultWatchInterval is how often Watch re-checks dependencies
const defaultWatchInterval = 5 * time.Second

// HealthServer implements the gRPC health checking protocol
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	store         repo.ItemStore
	publisher     events.Publisher
	log           *zap.Logger
	watchInterval time.Duration
}

// NewHealthServer creates a new health check server
func NewHealthServer(store repo.ItemStore, publisher events.Publisher, log *zap.Logger) *HealthServer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &HealthServer{
		store:         store,
		publisher:     publisher,
		log:           log,
		watchInterval: defaultWatchInterval,
	}
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch streams the current status, then every change, until the client goes away
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	ctx := server.Context()

	last := h.status(ctx)
	if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current := h.status(ctx)
			if current == last {
				continue
			}
			if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: current}); err != nil {
				return err
			}
			last = current
		}
	}
}

func (h *HealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Store health check failed", zap.Error(err))
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	if !h.publisher.IsHealthy() {
		h.log.Error("RabbitMQ health check failed")
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	return grpc_health_v1.HealthCheckResponse_SERVING
}
