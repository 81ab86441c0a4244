// Package docs InfinitiFlow API
//
// @title  InfinitiFlow API
// @version 1.0.0
// @description Accounts, subscriptions and usage-limited content generation.
// @host      localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package docs

import (
	_ "infinitiflow/cmd/server/handlers/httperr"
	_ "infinitiflow/internal/services/auth"
	_ "infinitiflow/internal/services/content"
	_ "infinitiflow/internal/services/subscription"
	_ "infinitiflow/internal/services/templates"
)
