// Package http exposes the engine over an Echo HTTP API: a
// JWT-authenticated query endpoint, schema registration, a login
// endpoint issuing tokens, and the health report. It also provides the
// key-value wire protocol the remote storage backend speaks.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"kotobadb.dev/kotobadb/auth"
	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/engine"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/monitoring"
	"kotobadb.dev/kotobadb/session"
)

// ServerConfig contains configuration for creating an Echo server
type ServerConfig struct {
	Port            int
	Debug           bool
	BodyLimit       string // e.g., "10M"
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // For CORS
	JWTSecret       string   // "" disables authentication on /query
}

// DefaultServerConfig returns a server config with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		Debug:           false,
		BodyLimit:       "10M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// NewEchoServer creates a new Echo server with standard middleware
func NewEchoServer(config ServerConfig) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug
	e.HTTPErrorHandler = CustomHTTPErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())

	if config.BodyLimit != "" {
		e.Use(middleware.BodyLimit(config.BodyLimit))
	}

	if len(config.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: config.AllowedOrigins,
			AllowMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderAuthorization,
			},
		}))
	}

	e.Use(middleware.RequestID())

	return e
}

// Server binds the engine, the auth service and the health aggregator
// to HTTP routes.
type Server struct {
	Engine *engine.Engine
	Auth   auth.AuthService
	Health *monitoring.Aggregator
	Config ServerConfig
	Logger *logrus.Logger

	echo *echo.Echo
}

// NewServer wires the API routes onto a fresh Echo instance.
func NewServer(eng *engine.Engine, authSvc auth.AuthService, health *monitoring.Aggregator, config ServerConfig, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{Engine: eng, Auth: authSvc, Health: health, Config: config, Logger: logger}
	s.echo = NewEchoServer(config)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/auth/login", s.handleLogin)

	api := s.echo.Group("")
	if s.Config.JWTSecret != "" {
		api.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(s.Config.JWTSecret),
			NewClaimsFunc: func(echo.Context) jwt.Claims {
				return &auth.Claims{}
			},
		}))
	}
	api.POST("/query", s.handleQuery)
	api.POST("/explain", s.handleExplain)
	api.POST("/schema", s.handleSchema)
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := s.Auth.Login(req.Username, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"expires_at":    result.ExpiresAt,
		"user":          result.User.ToResponse(),
	})
}

type queryRequest struct {
	Query      string                 `json:"query"`
	Database   string                 `json:"database"`
	TimeoutMS  int                    `json:"timeout_ms"`
	Parameters map[string]interface{} `json:"parameters"`
}

type queryResponse struct {
	Results []statementResponse `json:"results"`
}

type statementResponse struct {
	Columns      []string                 `json:"columns,omitempty"`
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	RowsAffected int                      `json:"rows_affected,omitempty"`
	CreatedIDs   []string                 `json:"created_ids,omitempty"`
	RowErrors    []string                 `json:"row_errors,omitempty"`
}

// queryContext builds the session context for a request, pulling the
// principal out of the JWT when authentication is enabled.
func (s *Server) queryContext(c echo.Context, req queryRequest) *session.QueryContext {
	database := req.Database
	if database == "" {
		database = "default"
	}
	qc := session.New(database)
	if req.TimeoutMS > 0 {
		qc.WithTimeout(time.Duration(req.TimeoutMS) * time.Millisecond)
	}
	for name, raw := range req.Parameters {
		qc.WithParameter(name, graph.FromInterface(raw))
	}
	if token, ok := c.Get("user").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			qc.WithPrincipal(claims.UserID)
		}
	}
	return qc
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	qc := s.queryContext(c, req)

	outcomes, err := s.Engine.Execute(c.Request().Context(), qc, req.Query)
	if err != nil {
		return queryHTTPError(err)
	}

	resp := queryResponse{}
	for _, outcome := range outcomes {
		var sr statementResponse
		if outcome.Result != nil {
			sr.Columns = outcome.Result.Columns
			for _, row := range outcome.Result.Rows {
				wire := make(map[string]interface{}, len(row))
				for k, v := range row {
					wire[k] = renderValue(v)
				}
				sr.Rows = append(sr.Rows, wire)
			}
		}
		if outcome.Statement != nil {
			sr.RowsAffected = outcome.Statement.RowsAffected
			sr.CreatedIDs = outcome.Statement.CreatedIDs
			sr.RowErrors = outcome.Statement.RowErrors
		}
		resp.Results = append(resp.Results, sr)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExplain(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	qc := s.queryContext(c, req)
	plan, err := s.Engine.Explain(c.Request().Context(), qc, req.Query)
	if err != nil {
		return queryHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"plan": plan})
}

type schemaRequest struct {
	Schema json.RawMessage `json:"schema"`
}

func (s *Server) handleSchema(c echo.Context) error {
	var req schemaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	gs, err := schema.DecodeSchema(req.Schema)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schema document")
	}
	result, err := s.Engine.Statements.RegisterSchema(c.Request().Context(), gs)
	if err != nil {
		return queryHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cid":   result.CreatedIDs[0],
		"tx_id": result.TxID,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.Health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	}
	report := s.Health.Last()
	code := http.StatusOK
	if report.Overall == monitoring.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	checks := map[string]string{}
	for name, result := range report.Checks {
		checks[name] = result.Status.String()
	}
	return c.JSON(code, map[string]interface{}{
		"status": report.Overall.String(),
		"checks": checks,
	})
}

// queryHTTPError maps engine error kinds onto HTTP status codes.
func queryHTTPError(err error) error {
	if errors.Is(err, engine.ErrDenied) {
		return echo.NewHTTPError(http.StatusForbidden, "authorization denied")
	}
	if kind, ok := common.KindOf(err); ok {
		switch kind {
		case common.KindQuery, common.KindSchema:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case common.KindAuthorization:
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case common.KindStorage:
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// renderValue converts an executor output value to a JSON-friendly
// form.
func renderValue(v interface{}) interface{} {
	switch t := v.(type) {
	case graph.Value:
		return t.Interface()
	case *graph.Vertex:
		return map[string]interface{}{"id": t.ID, "label": t.Label, "properties": renderProps(t.Properties)}
	case *graph.Edge:
		return map[string]interface{}{"id": t.ID, "label": t.Label, "from": t.From, "to": t.To}
	default:
		return t
	}
}

func renderProps(props map[string]graph.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v.Interface()
	}
	return out
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Config.Port),
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: s.Config.WriteTimeout,
	}
	s.Logger.WithField("port", s.Config.Port).Info("starting HTTP server")
	return s.echo.StartServer(srv)
}

// Shutdown performs a graceful shutdown of the Echo server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CustomHTTPErrorHandler provides a standard error handler for Echo
func CustomHTTPErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := err.Error()

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
		} else {
			_ = c.JSON(code, ErrorResponse{
				Error:   http.StatusText(code),
				Message: message,
			})
		}
	}
}
