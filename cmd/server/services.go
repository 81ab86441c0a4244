package main

import (
	"context"
	"fmt"
	"log/slog"

	"infinitiflow/cmd/server/handlers"
	"infinitiflow/internal/clients/mongo"
	"infinitiflow/internal/config"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/content"
	"infinitiflow/internal/services/email"
	"infinitiflow/internal/services/events"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/templates"
	"infinitiflow/internal/services/tokens"
	"infinitiflow/internal/services/usage"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

// services is everything the router wires into handlers.
type services struct {
	auth          *auth.Service
	subscriptions *subscription.Service
	usage         *usage.Service
	content       *content.Service
	templates     *templates.Service
	issuer        *tokens.Issuer
	hub           *events.Hub
	ping          handlers.Pinger
}

// newServices opens the repositories on db and builds the service graph.
func newServices(ctx context.Context, cfg config.Config, db *mongodriver.Database, log *slog.Logger) (*services, error) {
	usersRepo, err := mongo.NewUsersRepo(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("users repository: %w", err)
	}
	subsRepo, err := mongo.NewSubscriptionsRepo(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("subscriptions repository: %w", err)
	}
	contentStore, err := mongo.NewContentStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("content store: %w", err)
	}
	templatesStore, err := mongo.NewTemplatesStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("templates store: %w", err)
	}

	hub := events.NewHub(cfg.WSOutboxBuffer, log)
	issuer := tokens.NewIssuer(cfg)

	subSvc := subscription.NewService(subsRepo, usersRepo, hub, log)
	usageSvc := usage.NewService(usersRepo, subSvc, hub, log)
	authSvc := auth.NewService(usersRepo, subSvc, issuer, email.NewSender(cfg, log), cfg, log)

	return &services{
		auth:          authSvc,
		subscriptions: subSvc,
		usage:         usageSvc,
		content:       content.NewService(contentStore, usageSvc, log),
		templates:     templates.NewService(templatesStore, usageSvc, log),
		issuer:        issuer,
		hub:           hub,
		ping:          mongo.Ping,
	}, nil
}
