package main

import (
	"context"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/lighthouse-health/exposure-relay/internal/api"
	"github.com/lighthouse-health/exposure-relay/internal/config"
	"github.com/lighthouse-health/exposure-relay/internal/push"
	"github.com/lighthouse-health/exposure-relay/internal/ratelimit"
	"github.com/lighthouse-health/exposure-relay/internal/report"
	"github.com/lighthouse-health/exposure-relay/internal/retention"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/internal/trigger"
)

func main() {
	log.Println("Starting exposure notification propagation engine...")

	cfg := config.Load()
	ctx := context.Background()

	dbStore, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to Postgres: %v", err)
	}
	defer dbStore.Close()
	if err := dbStore.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
	if err != nil {
		log.Fatalf("FATAL: failed to initialize Firebase app: %v", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize Firebase Auth client: %v", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize Firebase Messaging client: %v", err)
	}

	dispatcher := push.NewDispatcher(messagingClient)
	limiter := ratelimit.New(dbStore)
	processor := report.New(dbStore, dispatcher)
	sweeper := retention.New(dbStore)
	adapter := trigger.New(dbStore, processor, sweeper)

	triggerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go adapter.RunReportTrigger(triggerCtx)

	retentionInterval, err := time.ParseDuration(cfg.RetentionPollInterval)
	if err != nil {
		log.Printf("Warning: invalid RETENTION_POLL_INTERVAL %q, defaulting to 1h: %v", cfg.RetentionPollInterval, err)
		retentionInterval = time.Hour
	}
	go adapter.RunRetentionSchedule(triggerCtx, retentionInterval)

	r := api.SetupRouter(processor, limiter, authClient)
	log.Printf("Engine listening on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}
