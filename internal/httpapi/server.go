package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bookstore/services/items/internal/events"
	"github.com/bookstore/services/items/internal/metrics"
	"github.com/bookstore/services/items/internal/repo"
)

// eventTimeout bounds each asynchronous publish
const eventTimeout = 10 * time.Second

// Server exposes the inventory over HTTP
type Server struct {
	store     repo.ItemStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	mux       *http.ServeMux

	// tracks in-flight event publishes so shutdown can wait for them
	pending sync.WaitGroup
}

// NewServer wires the routes. publisher and m may be nil.
func NewServer(store repo.ItemStore, publisher events.Publisher, m *metrics.Metrics, log *zap.Logger) *Server {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	s := &Server{
		store:     store,
		publisher: publisher,
		metrics:   m,
		log:       log,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /about", s.handleAbout)
	s.mux.HandleFunc("GET /get-inventory", s.handleGetInventory)
	s.mux.HandleFunc("GET /get-item/{item_id}", s.handleGetItem)
	s.mux.HandleFunc("GET /get-item/{item_id}/{message}", s.handleGetItemWithMessage)
	s.mux.HandleFunc("GET /get-item-by-name", s.handleGetItemByName)
	s.mux.HandleFunc("GET /get-by-name/{message}", s.handleGetByNameWithMessage)
	s.mux.HandleFunc("POST /create-item/{item_id}", s.handleCreateItem)
	s.mux.HandleFunc("PUT /update-item/{item_id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /delete-item", s.handleDeleteItem)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}

	return s
}

// Handler returns the routes wrapped in request id, logging and metrics middleware
func (s *Server) Handler() http.Handler {
	return s.requestID(s.instrument(s.mux))
}

// Wait blocks until queued events are published or ctx is done
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishAsync runs publish in the background so a slow broker never fails a request
func (s *Server) publishAsync(r *http.Request, eventType string, id int, publish func(ctx context.Context) error) {
	correlationID := events.CorrelationID(r.Context())

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		ctx = events.WithCorrelationID(ctx, correlationID)

		if err := publish(ctx); err != nil {
			s.log.Error("Failed to publish event",
				zap.String("event_type", eventType),
				zap.Int("item_id", id),
				zap.Error(err),
			)
		}
	}()
}

func (s *Server) observeMutation(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(operation, outcome)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error("Store health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: store unavailable"))
		return
	}

	if !s.publisher.IsHealthy() {
		s.log.Error("RabbitMQ health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: rabbitmq connection failed"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}
