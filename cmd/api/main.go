package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"classgate.org/internal/audit"
	"classgate.org/internal/auth"
	"classgate.org/internal/httpapi"
	"classgate.org/internal/identity"
	"classgate.org/internal/obs"
	"classgate.org/internal/ratelimit"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Observability first: metric registration, build info.
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("CLASSGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	identityURL := os.Getenv("CLASSGATE_IDENTITY_URL")
	if identityURL == "" {
		log.Fatal("CLASSGATE_IDENTITY_URL is required")
	}

	// Optional Postgres: durable audit trail plus a /readyz ping target.
	var db *sql.DB
	auditOpts := []audit.StoreOption{}
	if dsn := os.Getenv("CLASSGATE_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		sink := audit.NewPGSink(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sink.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("audit schema: %v", err)
		}
		cancel()
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}

	auditStore := audit.NewStore(auditOpts...)
	limits := ratelimit.NewStore()
	provider := identity.NewClient(identityURL)

	svc := auth.NewService(provider, limits, auditStore,
		auth.WithSecureCookies(os.Getenv("CLASSGATE_ENV") == "prod"),
	)

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting classgate-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	auditStore.Close()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
