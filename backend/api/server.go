package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/backend/event"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Runtime is the part of the agent runtime the web layer drives.
type Runtime interface {
	GenerateRoadmap(ctx context.Context, sessionID, goal string) (*agent.RoadmapResult, error)
	GenerateTasks(ctx context.Context, sessionID string) (*memory.State, error)
	ToggleTask(ctx context.Context, sessionID string, index int, done bool) (*memory.State, error)
	LogProgress(ctx context.Context, sessionID, update string, mood memory.Mood) (*memory.LogResult, error)
	Reflect(ctx context.Context, sessionID string) (string, error)
	State(ctx context.Context, sessionID string) (*memory.State, error)
	Reset(ctx context.Context, sessionID string) error
	SetAPIKey(ctx context.Context, sessionID, key string) error
	HasAPIKey(ctx context.Context, sessionID string) bool
	Cost(state *memory.State) decimal.Decimal
	Provider() model.ProviderKind
}

var _ Runtime = (*agent.Runtime)(nil)

type ServerOptions struct {
	Bus           *event.Bus
	Router        *event.EventRouter
	Gatherer      prometheus.Gatherer
	NoticeTTL     time.Duration
	SecureCookies bool
	Debug         bool
}

type ServerOption func(*ServerOptions)

func WithBus(bus *event.Bus) ServerOption {
	return func(o *ServerOptions) {
		o.Bus = bus
	}
}

func WithEventRouter(router *event.EventRouter) ServerOption {
	return func(o *ServerOptions) {
		o.Router = router
	}
}

func WithGatherer(gatherer prometheus.Gatherer) ServerOption {
	return func(o *ServerOptions) {
		o.Gatherer = gatherer
	}
}

func WithNoticeTTL(ttl time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.NoticeTTL = ttl
	}
}

func WithSecureCookies(secure bool) ServerOption {
	return func(o *ServerOptions) {
		o.SecureCookies = secure
	}
}

func WithDebug(debug bool) ServerOption {
	return func(o *ServerOptions) {
		o.Debug = debug
	}
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		Gatherer:  prometheus.DefaultGatherer,
		NoticeTTL: 10 * time.Minute,
	}
}

type Server struct {
	runtime       Runtime
	engine        *gin.Engine
	notices       *Notices
	router        *event.EventRouter
	secureCookies bool
	stopForward   func()
}

func NewServer(runtime Runtime, opts ...ServerOption) (*Server, error) {
	options := DefaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}

	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	notices, err := NewNotices(options.NoticeTTL)
	if err != nil {
		return nil, err
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		runtime:       runtime,
		engine:        gin.New(),
		notices:       notices,
		router:        options.Router,
		secureCookies: options.SecureCookies,
	}

	if options.Bus != nil {
		notices.Watch(options.Bus)
		if s.router != nil {
			s.stopForward = event.Forward(options.Bus, s.router)
		}
	}

	s.engine.Use(gin.Recovery(), requestLogger)
	s.engine.SetHTMLTemplate(templates)

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})))

	web := s.engine.Group("/", s.sessionMiddleware)
	{
		web.GET("/", s.handleIndex)
		web.POST("/plan", s.handlePlan)
		web.POST("/tasks", s.handleTasks)
		web.POST("/tasks/:index/toggle", s.handleToggle)
		web.POST("/log", s.handleLog)
		web.POST("/reflect", s.handleReflect)
		web.POST("/reset", s.handleReset)
		web.POST("/apikey", s.handleAPIKey)
	}

	api := s.engine.Group("/api/v1", s.sessionMiddleware)
	{
		api.GET("/state", s.handleAPIState)
		api.GET("/internals", s.handleAPIInternals)
		api.POST("/roadmap", s.handleAPIRoadmap)
		api.POST("/tasks", s.handleAPITasks)
		api.PUT("/tasks/:index", s.handleAPIToggle)
		api.POST("/logs", s.handleAPILog)
		api.POST("/reflect", s.handleAPIReflect)
		api.PUT("/apikey", s.handleAPISetKey)
		api.DELETE("/state", s.handleAPIReset)
		api.GET("/notices", s.handleAPINotices)
		api.GET("/events", s.handleAPIEvents)
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on listener until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server listening", "address", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if s.router != nil {
		s.router.Close()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown web server: %w", err)
	}
	return nil
}

func (s *Server) Close() {
	if s.stopForward != nil {
		s.stopForward()
	}
	s.notices.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	slog.DebugContext(c.Request.Context(), "http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
