// Package http serves the chatbot over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/logging"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/services"
)

// Chatbot is the set of operations the server exposes.
type Chatbot interface {
	Ask(ctx context.Context, sessionID, query string) (*services.ChatResult, error)
	ResetSession(id string) bool
	AddDocuments(ctx context.Context, texts []string, metadata map[string]string) ([]string, error)
	AddTopics(ctx context.Context, raw []string) ([]string, error)
	SimilarTopics(ctx context.Context, query string) ([]string, error)
	Stats(ctx context.Context) services.Stats
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// Server provides the chatbot HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	bot    Chatbot
	logger *logging.Logger
	config *Config
}

// NewServer creates a server. A nil cfg listens on localhost:8000.
func NewServer(bot Chatbot, logger *logging.Logger, cfg *Config) (*Server, error) {
	if bot == nil {
		return nil, fmt.Errorf("chatbot cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8000}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, bot: bot, logger: logger, config: cfg}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/chat", s.handleChat)
	s.echo.DELETE("/chat/:session_id", s.handleReset)
	s.echo.POST("/add-data", s.handleAddData)
	s.echo.POST("/add-topic", s.handleAddTopic)
	s.echo.POST("/similar-topics", s.handleSimilarTopics)
}

// requestLogger puts the request id into the request context and logs each
// request once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			// Resolve the status before logging it.
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "OK"})
}

func (s *Server) handleStatus(c echo.Context) error {
	st := s.bot.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "OK",
		Version: s.config.Version,
		Counts: StatusCounts{
			Documents:      st.Documents,
			TopicDocuments: st.TopicDocuments,
			Topics:         st.Topics,
			Sessions:       st.Sessions,
		},
	})
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	ctx := logging.WithSessionID(c.Request().Context(), req.SessionID)
	result, err := s.bot.Ask(ctx, req.SessionID, req.Query)
	if err != nil {
		return err
	}
	if result.Degraded {
		s.logger.Warn(logging.WithSessionID(ctx, result.SessionID), "answered without retrieved context")
	}

	related := result.Related
	if related == nil {
		related = []string{}
	}
	return c.JSON(http.StatusOK, ChatResponse{
		Answer:           result.Text,
		SimilarQuestions: strings.Join(related, "*"),
		Related:          related,
		SessionID:        result.SessionID,
		Degraded:         result.Degraded,
	})
}

func (s *Server) handleReset(c echo.Context) error {
	id := c.Param("session_id")
	if !s.bot.ResetSession(id) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	return c.JSON(http.StatusOK, ResetResponse{Message: "Session reset", SessionID: id})
}

func (s *Server) handleAddData(c echo.Context) error {
	var req AddDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ids, err := s.bot.AddDocuments(c.Request().Context(), req.Documents, req.Metadata)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AddDataResponse{Message: "Data added successfully", IDs: ids})
}

func (s *Server) handleAddTopic(c echo.Context) error {
	var req AddTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	corrected, err := s.bot.AddTopics(c.Request().Context(), req.Topics)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AddTopicResponse{Message: "Topics added successfully", Topics: corrected})
}

func (s *Server) handleSimilarTopics(c echo.Context) error {
	var req SimilarTopicsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	found, err := s.bot.SimilarTopics(c.Request().Context(), req.Query)
	if err != nil {
		return err
	}
	if found == nil {
		found = []string{}
	}
	return c.JSON(http.StatusOK, SimilarTopicsResponse{Topics: found})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
