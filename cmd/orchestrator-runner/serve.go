package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"orchestrator-runner/internal/api"
	"orchestrator-runner/internal/auth"
	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/mcp"
	"orchestrator-runner/internal/services"
	"orchestrator-runner/internal/telemetry"
	"orchestrator-runner/internal/tls"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, metrics and MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	factory, err := a.factory()
	if err != nil {
		return err
	}
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	e := newEcho(factory, authz, a.telemetry, logger)
	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.Issuer)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.Issuer, cfg.Auth.ClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(api.OAuth2RedirectHandler()))

	// No write timeout: runs block until the job is terminal and SSE streams stay open.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     e,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	tlsCfg := cfg.Server.TLS
	if tlsCfg.Enable && tlsCfg.SelfSigned {
		generated, err := tls.EnsureCertificate(tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.Hostnames)
		if err != nil {
			return err
		}
		if generated {
			logger.Warn("generated self-signed certificate", "cert_file", tlsCfg.CertFile)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", server.Addr, "tls", tlsCfg.Enable)
		if tlsCfg.Enable {
			serverErrors <- server.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logging.KeyError, err)
		return server.Close()
	}
	logger.Info("server stopped gracefully")
	return nil
}

// newEcho assembles the router: public health and metrics, the authenticated
// REST API under /api/v1 and the MCP SSE transport under /mcp.
func newEcho(factory *services.Factory, authz *auth.Auth, tel *telemetry.Service, logger logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("orchestrator-runner"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				logging.KeyMethod, v.Method,
				logging.KeyPath, v.URI,
				logging.KeyStatus, v.Status,
				logging.KeyElapsed, v.Latency,
			)
			return nil
		},
	}))

	e.GET("/health", api.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(tel.Handler()))

	requireAuth := echo.WrapMiddleware(authz.RequireAuth)
	apiGroup := e.Group("/api/v1", requireAuth)
	api.RegisterHandlers(apiGroup, api.NewServer(factory))

	mcpServer := mcp.NewServer(factory, version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers), requireAuth)
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers), requireAuth)

	return e
}
