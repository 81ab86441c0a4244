package handlerutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"infinitiflow/cmd/server/handlers/httperr"
	"infinitiflow/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictJSONDecoder(t *testing.T) {
	var req auth.EmailRequest

	require.NoError(t, StrictJSONDecoder([]byte(`{"email":"ada@example.com"}`), &req))
	assert.Equal(t, "ada@example.com", req.Email)

	assert.Error(t, StrictJSONDecoder([]byte(`{"email":"a@b.c","role":"admin"}`), &req), "unknown field")
	assert.Error(t, StrictJSONDecoder([]byte(`{"email":"a@b.c"}{"email":"d@e.f"}`), &req), "trailing object")
	assert.Error(t, StrictJSONDecoder([]byte(`{"email":`), &req), "truncated")
}

func TestParseAndValidateBody(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler,
		JSONDecoder:  StrictJSONDecoder,
	})
	app.Post("/register", func(c *fiber.Ctx) error {
		var req auth.RegisterRequest
		if err := ParseAndValidateBody(c, &req, v, "Register"); err != nil {
			return err
		}
		return c.SendStatus(201)
	})

	send := func(body string) (int, httperr.Body) {
		req := httptest.NewRequest("POST", "/register", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		var out httperr.Body
		if resp.StatusCode != 201 {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		}
		return resp.StatusCode, out
	}

	status, _ := send(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"Passw0rd"}`)
	assert.Equal(t, 201, status)

	status, body := send(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"Passw0rd","role":"admin"}`)
	assert.Equal(t, 400, status, "unknown fields are rejected")
	assert.Equal(t, "Bad Request", body.Message)

	status, body = send(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"weak"}`)
	assert.Equal(t, 400, status)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "password", body.Errors[0].Field, "errors use JSON field names")
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"domain error", auth.ErrDuplicate, 409},
		{"unknown error", errors.New("socket closed"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler})
			app.Get("/", func(c *fiber.Ctx) error {
				return HandleServiceError(c, tt.err, "Test")
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestObjectIDParam(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler})
	app.Get("/:id", func(c *fiber.Ctx) error {
		id, err := ObjectIDParam(c, "id")
		if err != nil {
			return err
		}
		return c.SendString(id.Hex())
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/64b7f0c2a1b2c3d4e5f60718", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/xyz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
