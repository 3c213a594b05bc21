// Package admin exposes the operator HTTP surface: health, metrics, safety
// controls and bot lifecycle.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/safety"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const tokenHeader = "X-Admin-Token"

// SafetyController is the safety gate surface the server drives.
type SafetyController interface {
	Status() domain.SafetyStatus
	ActivateKillSwitch(ctx context.Context, reason string)
	ResetKillSwitch(ctx context.Context, adminOverride bool) error
	UpdateConfig(ctx context.Context, upd domain.SafetyConfigUpdate) (domain.SafetyConfig, error)
}

// BotController starts and stops bot loops.
type BotController interface {
	Activate(ctx context.Context, botID string) error
	Deactivate(ctx context.Context, botID string) error
}

// Config holds admin server settings.
type Config struct {
	Addr     string
	Token    string // When set, safety and bot routes require it in X-Admin-Token
	Gatherer prometheus.Gatherer
}

// Server is the echo-based admin API.
type Server struct {
	echo     *echo.Echo
	addr     string
	safety   SafetyController
	bots     BotController
	logger   ports.Logger
	validate *validator.Validate
}

type killSwitchRequest struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

type resetRequest struct {
	AdminOverride bool `json:"admin_override"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the server and registers its routes.
func NewServer(cfg Config, safetyCtl SafetyController, bots BotController, logger ports.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		addr:     cfg.Addr,
		safety:   safetyCtl,
		bots:     bots,
		logger:   logger,
		validate: validator.New(),
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	var guard []echo.MiddlewareFunc
	if cfg.Token != "" {
		guard = append(guard, middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + tokenHeader,
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.Token, nil
			},
		}))
	}
	e.GET("/safety/status", s.safetyStatus, guard...)
	e.POST("/safety/kill-switch", s.activateKillSwitch, guard...)
	e.POST("/safety/reset", s.resetKillSwitch, guard...)
	e.PATCH("/safety/config", s.updateConfig, guard...)
	e.POST("/bots/:id/activate", s.activateBot, guard...)
	e.POST("/bots/:id/deactivate", s.deactivateBot, guard...)

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Admin server listening", map[string]interface{}{"addr": s.addr})
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) safetyStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.safety.Status())
}

func (s *Server) activateKillSwitch(c echo.Context) error {
	req := &killSwitchRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	s.safety.ActivateKillSwitch(c.Request().Context(), "manual: "+req.Reason)
	return c.JSON(http.StatusOK, s.safety.Status())
}

func (s *Server) resetKillSwitch(c echo.Context) error {
	req := &resetRequest{}
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := s.safety.ResetKillSwitch(c.Request().Context(), req.AdminOverride); err != nil {
		if errors.Is(err, safety.ErrResetNotAllowed) {
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		}
		s.logger.Error(c.Request().Context(), err, "resetKillSwitch: failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "reset failed"})
	}
	return c.JSON(http.StatusOK, s.safety.Status())
}

func (s *Server) updateConfig(c echo.Context) error {
	upd := domain.SafetyConfigUpdate{}
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	cfg, err := s.safety.UpdateConfig(c.Request().Context(), upd)
	if err != nil {
		if errors.Is(err, safety.ErrInvalidConfig) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		s.logger.Error(c.Request().Context(), err, "updateConfig: failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "update failed"})
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) activateBot(c echo.Context) error {
	return s.botLifecycle(c, s.bots.Activate, domain.BotActive)
}

func (s *Server) deactivateBot(c echo.Context) error {
	return s.botLifecycle(c, s.bots.Deactivate, domain.BotStopped)
}

func (s *Server) botLifecycle(c echo.Context, fn func(context.Context, string) error, status domain.BotStatus) error {
	id := c.Param("id")
	if err := fn(c.Request().Context(), id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		}
		s.logger.Error(c.Request().Context(), err, "botLifecycle: failed", map[string]interface{}{"botID": id})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id, "status": string(status)})
}
