package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"infinitiflow/cmd/server/ctxkeys"
	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/config"
	"infinitiflow/internal/logger"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/subscription"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TestConfig returns a valid config for handler tests.
func TestConfig() config.Config {
	return config.Config{
		AppPort:                8080,
		NodeEnv:                "test",
		LogLevel:               "debug",
		LogFormat:              "text",
		JWTSecret:              "test-access-secret-with-32-plus-characters",
		JWTAlgorithm:           "HS256",
		JWTExpire:              15 * time.Minute,
		JWTRefreshSecret:       "test-refresh-secret-with-32-plus-characters",
		JWTRefreshExpire:       720 * time.Hour,
		JWTCookieExpiresIn:     7,
		BcryptCost:             10,
		ClientURL:              "http://localhost:3000",
		SignInRatePerMin:       20,
		UserRateLimitMax:       100,
		UserRateLimitWindow:    15 * time.Minute,
		UserRateLimitCacheSize: 100,
		EmailTimeout:           time.Second,
		WSMaxSessionSec:        900,
		WSOutboxBuffer:         8,
	}
}

// CreateTestApp creates a basic Fiber app for testing with common configuration
func CreateTestApp(t *testing.T) *fiber.App {
	_, err := logger.Init(TestConfig())
	require.NoError(t, err)

	return fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler,
		JSONDecoder:  handlerutil.StrictJSONDecoder,
	})
}

// CreateTestValidator creates the validator the server uses
func CreateTestValidator(t *testing.T) *validator.Validate {
	v, err := handlerutil.NewValidator()
	require.NoError(t, err)
	return v
}

// NewUser returns an active, verified user on plan.
func NewUser(plan subscription.Plan) *auth.User {
	now := time.Now().UTC()
	return &auth.User{
		ID:              bson.NewObjectID(),
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Role:            auth.RoleUser,
		IsEmailVerified: true,
		Active:          true,
		Subscription: subscription.Summary{
			Plan:      plan,
			IsActive:  true,
			StartDate: now,
		},
		UsageStats: auth.UsageStats{LastResetDate: now},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AsUser stores user where Protect would, for handler tests that skip authentication.
func AsUser(user *auth.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user != nil {
			c.Locals(ctxkeys.UserKey, user)
		}
		return c.Next()
	}
}

// CreateRateLimiter creates a rate limiter for testing
func CreateRateLimiter(maxRequests int, duration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: duration,
		LimitReached: func(c *fiber.Ctx) error {
			return httperr.Fail(httperr.ErrTooManyRequests)
		},
	})
}

// CreateJSONRequest creates an HTTP request with JSON body
func CreateJSONRequest(method, url string, body any) *http.Request {
	var reqBody []byte
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = []byte(b)
	default:
		reqBody, _ = json.Marshal(b)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateAuthenticatedRequest creates an HTTP request with Authorization header
func CreateAuthenticatedRequest(method, url string, body any, token string) *http.Request {
	req := CreateJSONRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// CreateWebSocketRequest creates an HTTP request with WebSocket upgrade headers
func CreateWebSocketRequest(url string, token *string) *http.Request {
	requestURL := url
	if token != nil {
		requestURL += "?token=" + *token
	}

	req := httptest.NewRequest("GET", requestURL, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "test-key")
	return req
}

// DecodeJSON reads the response body into a map.
func DecodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
