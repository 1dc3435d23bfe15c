// Command gateway runs the marketplace session gateway: it terminates the
// OIDC login flow, keeps browser sessions fresh, and fronts the marketplace
// API with bearer-token authorization.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/quadmarket/gateway/internal/config"
	"github.com/quadmarket/gateway/internal/market"
	"github.com/quadmarket/gateway/internal/oidc"
	"github.com/quadmarket/gateway/internal/session"
	"github.com/quadmarket/gateway/internal/web"
	"github.com/quadmarket/gateway/logging"
)

func main() {
	configPath := flag.String("config", "", "path to quadmarket.yaml (searched for if empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logger logging.Logger
	if cfg.Production() {
		logger = logging.NewProdLogger()
	} else {
		logger = logging.NewDevLogger()
	}
	ctx := logging.With(context.Background(), logger)

	jarOpts := session.JarOptions{
		Secure:             cfg.Production(),
		RefreshTokenMaxAge: cfg.Session.RefreshTokenMaxAge,
	}

	oidcClient := oidc.New(cfg.OIDC)
	marketClient := market.NewClient(cfg.API, cfg.Production())
	guard := session.NewGuard(
		oidcClient,
		session.NewPathMatcher(cfg.Session.ProtectedPaths),
		cfg.Session.SkewBuffer,
		jarOpts,
	)

	handlers := web.NewHandlers(oidcClient, marketClient, jarOpts)
	router := web.NewRouter(handlers, guard, logger, cfg.Production())

	server := web.NewServer(ctx, cfg.Address(), cfg.Server.ShutdownTimeout, router)
	logging.Infow(ctx, "starting gateway", "env", cfg.Env, "api", cfg.API.BaseURL)
	if err := server.Start(); err != nil {
		logging.Fatalw(ctx, "server exited", "error", err)
	}
}
