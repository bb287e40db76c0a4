package main

import (
	"context"
	"fmt"
	"log"

	"ledger-backend/internal/api"
	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/config"
	"ledger-backend/internal/features"
	"ledger-backend/internal/importer"
	"ledger-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := apperr.Validate(); err != nil {
		log.Fatalf("error registry: %v", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	// every feature is built and its table ensured before the server
	// accepts traffic; misconfiguration aborts startup
	reg, err := features.Build(ctx, st)
	if err != nil {
		log.Fatalf("build features: %v", err)
	}

	authHandler := auth.NewHandler(st, reg, cfg.JWTSecret)
	if err := authHandler.EnsureTable(ctx); err != nil {
		log.Fatalf("auth tables: %v", err)
	}

	im, err := importer.New(st, reg, cfg.Import)
	if err != nil {
		log.Fatalf("build importer: %v", err)
	}

	app := api.NewApp(reg, authHandler, api.NewImportHandler(im, cfg.Import), cfg.JWTSecret)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("listening on %s (driver=%s, features=%v)", addr, cfg.Database.Driver, reg.Names())
	if err := app.Listen(addr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
