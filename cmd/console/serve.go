package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/dashboard"
	"iprescribe-console/internal/hub"
	"iprescribe-console/internal/logger"
	"iprescribe-console/internal/metrics"
	"iprescribe-console/internal/query"
	"iprescribe-console/internal/server"
	"iprescribe-console/internal/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadCfg()
	if err != nil {
		return err
	}

	log := logger.Init(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	metrics.Register()

	st := opts.openStore(cfg)
	client, err := apiclient.New(st, apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		LoginPath: cfg.LoginPath,
		Timeout:   cfg.RequestTimeout,
		UserAgent: "iprescribe-console/" + version,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	queryOpts := query.DefaultOptions()
	queryOpts.Logger = log
	cache := query.New(queryOpts)
	defer cache.Close()

	navHub := hub.New(log)
	mgr := session.New(st, navHub,
		session.WithAuthenticator(client),
		session.WithCache(cache),
		session.WithLogger(log),
	)
	mgr.Attach(client)
	mgr.Init()
	defer mgr.Dispose()

	router, err := server.NewRouter(server.Deps{
		Session: mgr,
		Queries: dashboard.New(client, cache, mgr),
		Hub:     navHub,
		Themes:  st,
		Logger:  log,
		Version: version,
	})
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting console", "api", cfg.APIBaseURL, "persisted", !opts.ephemeral)
	return server.Run(ctx, cfg, router)
}
