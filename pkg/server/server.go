// Package server is the HTTP shell around a skill catalog: one POST route per
// skill behind the payment gate, plus an ungated health endpoint. The shell
// never inspects skill semantics; a handler is an opaque function invoked
// with the decoded request body.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillmesh/skillmesh-sdk-go/pkg/config"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/gate"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/model"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/registry"
	"github.com/skillmesh/skillmesh-sdk-go/pkg/wallet"
)

// internalErrorMessage replaces handler error text outside development mode
// so that stack details never leak to paying callers.
const internalErrorMessage = "Internal server error"

// CallObserver is notified after each successfully completed paid call.
type CallObserver func(skill, payer string)

// ErrorObserver is notified when a skill handler returns an error.
type ErrorObserver func(skill string, err error)

// Server routes paid skill calls. Build it with New, then Run or mount
// Handler under an existing mux.
type Server struct {
	cfg    *config.Config
	skills model.Skills
	router *gin.Engine
	gate   *gate.Gate

	baseURL  string
	reg      *registry.Client
	onCall   CallObserver
	onError  ErrorObserver
	gateOpts []gate.Option
}

// Option customizes a Server during construction.
type Option func(*Server)

// OnCall registers an observer invoked after each settled, successful call.
// Observer panics are recovered and logged; they never affect the response.
func OnCall(fn CallObserver) Option {
	return func(s *Server) { s.onCall = fn }
}

// OnError registers an observer invoked when a handler fails.
func OnError(fn ErrorObserver) Option {
	return func(s *Server) { s.onError = fn }
}

// WithRegistry attaches a registry client for fire-and-forget usage
// reporting after settled calls.
func WithRegistry(c *registry.Client) Option {
	return func(s *Server) { s.reg = c }
}

// WithBaseURL sets the public base URL advertised in payment requirements.
func WithBaseURL(url string) Option {
	return func(s *Server) { s.baseURL = url }
}

// VerifyOnly configures the payment gate to verify without settling. Meant
// for local development against a facilitator sandbox.
func VerifyOnly() Option {
	return func(s *Server) { s.gateOpts = append(s.gateOpts, gate.VerifyOnly()) }
}

// New validates the config, derives per-skill payment requirements and wires
// the router. The config must carry a wallet source; skills must be non-empty.
func New(cfg *config.Config, skills model.Skills, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(skills) == 0 {
		return nil, errors.New("no skills defined")
	}

	s := &Server{cfg: cfg, skills: skills}
	for _, opt := range opts {
		opt(s)
	}

	payTo, err := receivingAddress(cfg)
	if err != nil {
		return nil, err
	}

	table, err := gate.BuildRouteTable(skills, payTo, cfg.Network, s.baseURL)
	if err != nil {
		return nil, err
	}
	facilitator := gate.NewFacilitator(cfg.FacilitatorURL, cfg.Timeouts.Facilitator)
	s.gate = gate.New(table, facilitator, s.gateOpts...)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), cors.New(corsConfig()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "skills": skills.Names()})
	})
	for name, skill := range skills {
		router.POST("/"+name, s.gate.Handler(name), s.invoke(skill))
	}
	s.router = router

	zap.L().Info("skill server configured",
		zap.Strings("skills", skills.Names()),
		zap.String("network", cfg.Network),
		zap.String("payTo", payTo.Hex()),
	)
	return s, nil
}

// receivingAddress resolves the creator's payout address from the config,
// preferring the explicit address over key derivation.
func receivingAddress(cfg *config.Config) (common.Address, error) {
	if cfg.WalletAddress != "" {
		return wallet.ResolveAddress(cfg.WalletAddress)
	}
	w, err := wallet.Resolve(cfg.PrivateKey)
	if err != nil {
		return common.Address{}, err
	}
	return w.Address(), nil
}

// invoke wraps a skill handler into the response envelope. A malformed or
// absent request body is treated as empty input, never as an error.
func (s *Server) invoke(skill *model.Skill) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := map[string]any{}
		if err := c.ShouldBindJSON(&input); err != nil {
			input = map[string]any{}
		}

		// TimeoutMs is advisory to the facilitator via maxTimeoutSeconds;
		// the shell imposes no execution deadline of its own.
		result, err := skill.Handler(c.Request.Context(), input)
		timestamp := time.Now().UTC().Format(time.RFC3339)
		if err != nil {
			zap.L().Error("skill handler failed", zap.String("skill", skill.Name), zap.Error(err))
			s.notifyError(skill.Name, err)

			message := internalErrorMessage
			if s.cfg.Development {
				message = err.Error()
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":   false,
				"error":     message,
				"timestamp": timestamp,
			})
			return
		}

		payer := c.GetString(gate.PayerKey)
		s.notifyCall(skill.Name, payer)
		s.reportUsage(skill.Name, c)

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"result":    result,
			"timestamp": timestamp,
		})
	}
}

func (s *Server) notifyCall(name, payer string) {
	if s.onCall == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("call observer panicked", zap.Any("panic", r))
		}
	}()
	s.onCall(name, payer)
}

func (s *Server) notifyError(name string, err error) {
	if s.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("error observer panicked", zap.Any("panic", r))
		}
	}()
	s.onError(name, err)
}

func (s *Server) reportUsage(name string, c *gin.Context) {
	if s.reg == nil {
		return
	}
	s.reg.ReportUsage(model.UsageEvent{
		SkillSlug:       name,
		ConsumerAddress: c.GetString(gate.PayerKey),
		PaymentTxHash:   c.GetString(gate.TransactionKey),
		Amount:          c.GetString(gate.AmountKey),
	})
}

// Handler exposes the router as a plain http.Handler for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	zap.L().Info("skill server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// requestLogger tags each request with an id and logs method, path, status
// and latency at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Header("X-Request-Id", requestID)

		c.Next()

		zap.L().Debug("request",
			zap.String("id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin", "X-Payment"},
		MaxAge:       12 * time.Hour,
	}
}
