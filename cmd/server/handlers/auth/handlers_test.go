package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"infinitiflow/cmd/server/testutil"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	registerEndpoint = "/api/auth/register"
	loginEndpoint    = "/api/auth/login"
	refreshEndpoint  = "/api/auth/refresh-token"
	rateLimitIP      = "192.168.1.1"
	testEmail        = "ada@example.com"
	testPassword     = "Passw0rd1"
)

// MockAuthService mocks the auth service
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) session(args mock.Arguments) (*auth.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error) {
	return m.session(m.Called(ctx, req))
}

func (m *MockAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error) {
	return m.session(m.Called(ctx, req))
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID bson.ObjectID, req auth.ChangePasswordRequest) (*auth.Session, error) {
	return m.session(m.Called(ctx, userID, req))
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, req auth.EmailRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token string, req auth.ResetPasswordRequest) (*auth.Session, error) {
	return m.session(m.Called(ctx, token, req))
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) (*auth.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, req auth.EmailRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockAuthService) RefreshSession(ctx context.Context, raw string) (*auth.Session, error) {
	return m.session(m.Called(ctx, raw))
}

func (m *MockAuthService) Me(ctx context.Context, userID bson.ObjectID) (*auth.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Profile), args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID bson.ObjectID, req auth.UpdateProfileRequest) (*auth.User, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockAuthService) Deactivate(ctx context.Context, userID bson.ObjectID) error {
	return m.Called(ctx, userID).Error(0)
}

type usageStub struct{}

func (usageStub) Snapshot(user *auth.User) usage.Snapshot {
	return usage.NewSnapshot(user, time.Now())
}

type eventSpy struct {
	events []string
}

func (s *eventSpy) AuthEvent(event, outcome string) {
	s.events = append(s.events, event+":"+outcome)
}

// AuthTestSetup contains common test setup data
type AuthTestSetup struct {
	MockService *MockAuthService
	Events      *eventSpy
	App         *fiber.App
	TestUser    *auth.User
	Session     *auth.Session
}

// SetupAuthTest mounts the auth handlers; protected routes run as TestUser.
func SetupAuthTest(t *testing.T) *AuthTestSetup {
	t.Helper()

	mockService := &MockAuthService{}
	events := &eventSpy{}
	app := testutil.CreateTestApp(t)
	validator := testutil.CreateTestValidator(t)

	h := NewHandlers(mockService, usageStub{}, events, validator, testutil.TestConfig())

	testUser := testutil.NewUser(subscription.PlanFree)
	testUser.Email = testEmail
	asUser := testutil.AsUser(testUser)

	authGrp := app.Group("/api/auth")

	// Add rate limiter for login (for testing)
	rateLimiter := testutil.CreateRateLimiter(2, 1*time.Minute)

	authGrp.Post("/register", h.Register)
	authGrp.Post("/login", rateLimiter, h.Login)
	authGrp.Post("/logout", h.Logout)
	authGrp.Post("/forgot-password", h.ForgotPassword)
	authGrp.Patch("/reset-password/:token", h.ResetPassword)
	authGrp.Patch("/verify-email/:token", h.VerifyEmail)
	authGrp.Post("/resend-verification", h.ResendVerification)
	authGrp.Post("/refresh-token", h.RefreshToken)
	authGrp.Get("/me", asUser, h.Me)
	authGrp.Patch("/change-password", asUser, h.ChangePassword)
	authGrp.Patch("/update-me", asUser, h.UpdateMe)
	authGrp.Delete("/delete-me", asUser, h.DeleteMe)
	authGrp.Get("/usage", asUser, h.Usage)

	return &AuthTestSetup{
		MockService: mockService,
		Events:      events,
		App:         app,
		TestUser:    testUser,
		Session:     &auth.Session{User: testUser, AccessToken: "access-token", RefreshToken: "refresh-token"},
	}
}

func cookieValue(resp *http.Response, name string) (string, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestAuthHandlersTableDriven(t *testing.T) {
	register := auth.RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: testEmail, Password: testPassword}
	login := auth.LoginRequest{Email: testEmail, Password: testPassword}

	testCases := []struct {
		name           string
		endpoint       string
		method         string
		body           any
		setupMock      func(*MockAuthService, *auth.Session)
		expectedStatus int
		expectedEvent  string
	}{
		{
			name:     "Register_Success",
			endpoint: registerEndpoint,
			method:   "POST",
			body:     register,
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("Register", mock.Anything, register).Return(s, nil).Once()
			},
			expectedStatus: 201,
			expectedEvent:  "register:success",
		},
		{
			name:     "Register_DuplicateEmail",
			endpoint: registerEndpoint,
			method:   "POST",
			body:     register,
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("Register", mock.Anything, register).Return(nil, auth.ErrDuplicate).Once()
			},
			expectedStatus: 409,
			expectedEvent:  "register:conflict",
		},
		{
			name:           "Register_WeakPassword",
			endpoint:       registerEndpoint,
			method:         "POST",
			body:           auth.RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: testEmail, Password: "password"},
			setupMock:      func(*MockAuthService, *auth.Session) {},
			expectedStatus: 400,
		},
		{
			name:           "Register_UnknownField",
			endpoint:       registerEndpoint,
			method:         "POST",
			body:           `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"Passw0rd1","role":"admin"}`,
			setupMock:      func(*MockAuthService, *auth.Session) {},
			expectedStatus: 400,
		},
		{
			name:     "Login_Success",
			endpoint: loginEndpoint,
			method:   "POST",
			body:     login,
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("Login", mock.Anything, login).Return(s, nil).Once()
			},
			expectedStatus: 200,
			expectedEvent:  "login:success",
		},
		{
			name:     "Login_BadCredentials",
			endpoint: loginEndpoint,
			method:   "POST",
			body:     login,
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("Login", mock.Anything, login).Return(nil, auth.ErrInvalidCredentials).Once()
			},
			expectedStatus: 401,
			expectedEvent:  "login:unauthorized",
		},
		{
			name:     "Login_Locked",
			endpoint: loginEndpoint,
			method:   "POST",
			body:     login,
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("Login", mock.Anything, login).Return(nil, auth.ErrAccountLocked).Once()
			},
			expectedStatus: 423,
			expectedEvent:  "login:locked",
		},
		{
			name:     "ResetPassword_BadToken",
			endpoint: "/api/auth/reset-password/abc",
			method:   "PATCH",
			body:     auth.ResetPasswordRequest{Password: testPassword},
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("ResetPassword", mock.Anything, "abc", auth.ResetPasswordRequest{Password: testPassword}).
					Return(nil, auth.ErrInvalidOrExpiredToken).Once()
			},
			expectedStatus: 400,
			expectedEvent:  "reset_password:error",
		},
		{
			name:     "ResetPassword_Success",
			endpoint: "/api/auth/reset-password/abc",
			method:   "PATCH",
			body:     auth.ResetPasswordRequest{Password: testPassword},
			setupMock: func(m *MockAuthService, s *auth.Session) {
				m.On("ResetPassword", mock.Anything, "abc", auth.ResetPasswordRequest{Password: testPassword}).
					Return(s, nil).Once()
			},
			expectedStatus: 200,
			expectedEvent:  "reset_password:success",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setup := SetupAuthTest(t)
			tc.setupMock(setup.MockService, setup.Session)

			req := testutil.CreateJSONRequest(tc.method, tc.endpoint, tc.body)
			resp, err := setup.App.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)

			if tc.expectedStatus < 400 {
				var got SessionResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
				assert.Equal(t, "success", got.Status)
				assert.Equal(t, testEmail, got.Data.User.Email)
				assert.Equal(t, "access-token", got.Token)
				assert.Equal(t, "refresh-token", got.RefreshToken)

				jwtCookie, ok := cookieValue(resp, "jwt")
				assert.True(t, ok, "session endpoints set the jwt cookie")
				assert.Equal(t, "access-token", jwtCookie)
			} else {
				assert.Equal(t, "fail", testutil.DecodeJSON(t, resp)["status"])
			}

			if tc.expectedEvent != "" {
				assert.Equal(t, []string{tc.expectedEvent}, setup.Events.events)
			} else {
				assert.Empty(t, setup.Events.events)
			}
			setup.MockService.AssertExpectations(t)
		})
	}
}

func TestSessionCookies(t *testing.T) {
	setup := SetupAuthTest(t)
	login := auth.LoginRequest{Email: testEmail, Password: testPassword}
	setup.MockService.On("Login", mock.Anything, login).Return(setup.Session, nil).Once()

	resp, err := setup.App.Test(testutil.CreateJSONRequest("POST", loginEndpoint, login), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	for _, c := range resp.Cookies() {
		assert.True(t, c.HttpOnly, "%s should be HttpOnly", c.Name)
		assert.False(t, c.Secure, "%s is not Secure outside production", c.Name)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), c.Expires, time.Minute)
	}
	_, ok := cookieValue(resp, "refreshToken")
	assert.True(t, ok)
}

func TestLogout(t *testing.T) {
	setup := SetupAuthTest(t)

	resp, err := setup.App.Test(testutil.CreateJSONRequest("POST", "/api/auth/logout", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Logged out successfully.", testutil.DecodeJSON(t, resp)["message"])

	value, ok := cookieValue(resp, "jwt")
	require.True(t, ok)
	assert.Equal(t, "loggedout", value)
}

func TestForgotPasswordAnswersGenerically(t *testing.T) {
	setup := SetupAuthTest(t)
	req := auth.EmailRequest{Email: "nobody@example.com"}
	setup.MockService.On("ForgotPassword", mock.Anything, req).Return(nil).Once()

	resp, err := setup.App.Test(testutil.CreateJSONRequest("POST", "/api/auth/forgot-password", req), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, msgResetSent, testutil.DecodeJSON(t, resp)["message"])

	setup.MockService.On("ForgotPassword", mock.Anything, req).Return(auth.ErrEmailDelivery).Once()
	resp, err = setup.App.Test(testutil.CreateJSONRequest("POST", "/api/auth/forgot-password", req), -1)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "error", testutil.DecodeJSON(t, resp)["status"])
}

func TestVerifyEmail(t *testing.T) {
	setup := SetupAuthTest(t)
	setup.MockService.On("VerifyEmail", mock.Anything, "tok").Return(setup.TestUser, nil).Once()

	resp, err := setup.App.Test(testutil.CreateJSONRequest("PATCH", "/api/auth/verify-email/tok", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Email verified successfully.", testutil.DecodeJSON(t, resp)["message"])
	setup.MockService.AssertExpectations(t)
}

func TestRefreshToken(t *testing.T) {
	t.Run("from body", func(t *testing.T) {
		setup := SetupAuthTest(t)
		setup.MockService.On("RefreshSession", mock.Anything, "from-body").Return(setup.Session, nil).Once()

		resp, err := setup.App.Test(testutil.CreateJSONRequest("POST", refreshEndpoint, auth.RefreshRequest{RefreshToken: "from-body"}), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		setup.MockService.AssertExpectations(t)
	})

	t.Run("from cookie", func(t *testing.T) {
		setup := SetupAuthTest(t)
		setup.MockService.On("RefreshSession", mock.Anything, "from-cookie").Return(setup.Session, nil).Once()

		req := testutil.CreateJSONRequest("POST", refreshEndpoint, nil)
		req.Header.Set("Cookie", "refreshToken=from-cookie")
		resp, err := setup.App.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		setup.MockService.AssertExpectations(t)
	})

	t.Run("missing", func(t *testing.T) {
		setup := SetupAuthTest(t)

		resp, err := setup.App.Test(testutil.CreateJSONRequest("POST", refreshEndpoint, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
		assert.Equal(t, "Refresh token is required.", testutil.DecodeJSON(t, resp)["message"])
	})
}

func TestProtectedAuthEndpoints(t *testing.T) {
	t.Run("me returns profile with subscription", func(t *testing.T) {
		setup := SetupAuthTest(t)
		sub := &subscription.Subscription{ID: bson.NewObjectID(), UserID: setup.TestUser.ID, Plan: subscription.PlanFree}
		setup.MockService.On("Me", mock.Anything, setup.TestUser.ID).
			Return(&auth.Profile{User: setup.TestUser, Subscription: sub}, nil).Once()

		resp, err := setup.App.Test(testutil.CreateJSONRequest("GET", "/api/auth/me", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		body := testutil.DecodeJSON(t, resp)
		data := body["data"].(map[string]any)
		assert.Equal(t, testEmail, data["user"].(map[string]any)["email"])
		assert.NotContains(t, data["user"], "password", "password hash never leaves the server")
		assert.Equal(t, "free", data["subscription"].(map[string]any)["plan"])
	})

	t.Run("change password with wrong current", func(t *testing.T) {
		setup := SetupAuthTest(t)
		req := auth.ChangePasswordRequest{CurrentPassword: "Wr0ngPass", NewPassword: "N3wPassword"}
		setup.MockService.On("ChangePassword", mock.Anything, setup.TestUser.ID, req).
			Return(nil, auth.ErrIncorrectPassword).Once()

		resp, err := setup.App.Test(testutil.CreateJSONRequest("PATCH", "/api/auth/change-password", req), -1)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
		assert.Equal(t, []string{"change_password:unauthorized"}, setup.Events.events)
	})

	t.Run("change password to the same value", func(t *testing.T) {
		setup := SetupAuthTest(t)
		req := auth.ChangePasswordRequest{CurrentPassword: "Passw0rd1", NewPassword: "Passw0rd1"}

		resp, err := setup.App.Test(testutil.CreateJSONRequest("PATCH", "/api/auth/change-password", req), -1)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Empty(t, setup.MockService.Calls)
	})

	t.Run("update me", func(t *testing.T) {
		setup := SetupAuthTest(t)
		company := "Engines Inc"
		req := auth.UpdateProfileRequest{Company: &company}
		updated := *setup.TestUser
		updated.Company = company
		setup.MockService.On("UpdateProfile", mock.Anything, setup.TestUser.ID, req).Return(&updated, nil).Once()

		resp, err := setup.App.Test(testutil.CreateJSONRequest("PATCH", "/api/auth/update-me", req), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		user := testutil.DecodeJSON(t, resp)["data"].(map[string]any)["user"].(map[string]any)
		assert.Equal(t, company, user["company"])
	})

	t.Run("update me rejects email changes", func(t *testing.T) {
		setup := SetupAuthTest(t)

		resp, err := setup.App.Test(testutil.CreateJSONRequest("PATCH", "/api/auth/update-me", `{"email":"new@example.com"}`), -1)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("delete me", func(t *testing.T) {
		setup := SetupAuthTest(t)
		setup.MockService.On("Deactivate", mock.Anything, setup.TestUser.ID).Return(nil).Once()

		resp, err := setup.App.Test(testutil.CreateJSONRequest("DELETE", "/api/auth/delete-me", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
		setup.MockService.AssertExpectations(t)
	})

	t.Run("usage", func(t *testing.T) {
		setup := SetupAuthTest(t)

		resp, err := setup.App.Test(testutil.CreateJSONRequest("GET", "/api/auth/usage", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		data := testutil.DecodeJSON(t, resp)["data"].(map[string]any)
		assert.Equal(t, "free", data["plan"])
	})
}

func makeTestRequestForRateLimit(setup *AuthTestSetup, body any) (resp *http.Response, err error) {
	req := testutil.CreateJSONRequest("POST", loginEndpoint, body)
	req.Header.Set("X-Forwarded-For", rateLimitIP) // fixed IP for rate limiter
	resp, err = setup.App.Test(req, -1)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func TestLoginRateLimit(t *testing.T) {
	setup := SetupAuthTest(t)

	login := auth.LoginRequest{Email: testEmail, Password: testPassword}
	setup.MockService.On("Login", mock.Anything, login).Return(setup.Session, nil).Times(2)

	// First request should succeed
	resp1, err := makeTestRequestForRateLimit(setup, login)
	require.NoError(t, err)
	assert.Equal(t, 200, resp1.StatusCode)

	// Second request should succeed
	resp2, err := makeTestRequestForRateLimit(setup, login)
	require.NoError(t, err)
	assert.Equal(t, 200, resp2.StatusCode)

	// Third request should be rate limited
	resp3, err := makeTestRequestForRateLimit(setup, login)
	require.NoError(t, err)
	assert.Equal(t, 429, resp3.StatusCode)

	setup.MockService.AssertExpectations(t)
}
