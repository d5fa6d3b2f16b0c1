// ABOUTME: Gateway wiring the store, tool catalog, orchestrator and HTTP API together
// ABOUTME: Owns server lifecycle: startup, event consumers, graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/candlewick/taskgate/internal/agent"
	"github.com/candlewick/taskgate/internal/auth"
	"github.com/candlewick/taskgate/internal/config"
	"github.com/candlewick/taskgate/internal/conversation"
	"github.com/candlewick/taskgate/internal/dedupe"
	"github.com/candlewick/taskgate/internal/events"
	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
	"github.com/candlewick/taskgate/internal/tools"
)

const defaultDedupeWindow = 5 * time.Minute

// Gateway coordinates the taskgate server components: the SQLite store, the
// tool registry, the turn orchestrator, the event bus and the HTTP API.
type Gateway struct {
	config       *config.Config
	store        store.Store
	orchestrator *agent.Orchestrator
	bus          *events.Bus
	dedupe       *dedupe.Cache
	verifier     *auth.JWTVerifier
	httpServer   *http.Server
	logger       *slog.Logger

	consumerCtx    context.Context
	consumerCancel context.CancelFunc
	consumerWG     sync.WaitGroup
}

// New creates a Gateway from configuration, wiring the real completion
// provider from the llm section.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return newWithClient(cfg, logger, client)
}

// newWithClient is the real constructor; tests inject a scripted client.
func newWithClient(cfg *config.Config, logger *slog.Logger, client llm.Client) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry, err := tools.NewRegistry(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	convService := conversation.New(s, logger)
	orchestrator := agent.New(convService, registry, tools.NewExecutor(registry), client, agent.Options{
		HistoryLimit: cfg.Agent.HistoryLimit,
		Logger:       logger,
	})

	window := cfg.Agent.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		orchestrator: orchestrator,
		bus:          events.NewBus(logger),
		dedupe:       dedupe.New(window, 100_000),
		verifier:     auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		logger:       logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/healthz", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	// API endpoints - bearer auth required
	authMiddleware := auth.Middleware(gw.verifier)
	mux.Handle("/api/chat", authMiddleware(http.HandlerFunc(gw.handleChat)))
	mux.Handle("/api/conversations/", authMiddleware(http.HandlerFunc(gw.handleConversationRoutes)))
	mux.Handle("/api/tasks", authMiddleware(http.HandlerFunc(gw.handleTasks)))
	mux.Handle("/api/tasks/", authMiddleware(http.HandlerFunc(gw.handleTaskRoutes)))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler exposes the HTTP handler, used by tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// startConsumers subscribes the built-in event consumers to the bus.
func (g *Gateway) startConsumers() {
	g.consumerCtx, g.consumerCancel = context.WithCancel(context.Background())

	auditCh, _ := g.bus.Subscribe()
	notifyCh, _ := g.bus.Subscribe()

	g.consumerWG.Add(2)
	go func() {
		defer g.consumerWG.Done()
		events.NewAuditRecorder(g.store, g.logger).Run(g.consumerCtx, auditCh)
	}()
	go func() {
		defer g.consumerWG.Done()
		events.NewNotifier(g.logger).Run(g.consumerCtx, notifyCh)
	}()
}

// publishMutations emits one task event per committed mutation.
func (g *Gateway) publishMutations(ownerID string, mutations []*tools.Mutation) {
	for _, m := range mutations {
		g.bus.Publish(&events.TaskEvent{
			OwnerID: ownerID,
			Action:  m.Action,
			TaskID:  m.TaskID,
			Details: m.Details,
		})
	}
}

// Run starts the HTTP server and event consumers, blocking until ctx is
// cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.startConsumers()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown requested")
		return g.Shutdown()
	case err := <-errCh:
		g.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown stops the HTTP server, drains the event consumers and closes the
// store. Safe to call after a failed Run.
func (g *Gateway) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// Closing the bus ends each consumer's channel; cancel is the backstop.
	g.bus.Close()
	g.consumerWG.Wait()
	if g.consumerCancel != nil {
		g.consumerCancel()
	}

	g.dedupe.Close()
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	g.logger.Info("shutdown complete")
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.ListTasks(r.Context(), "readiness-probe", ""); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
