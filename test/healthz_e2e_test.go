//go:build e2e

package test

import (
	"encoding/json"
	"net/http"
	"testing"

	"infinitiflow/internal/services/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzE2E(t *testing.T) {
	env := SetupTestEnvironment(t)

	t.Run("reports_database_up", func(t *testing.T) {
		resp, err := env.Client.Get(env.BaseURL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

		var payload map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, map[string]any{"status": "ok"}, payload, "a healthy server carries no error detail")
	})

	t.Run("serves_public_plan_catalog", func(t *testing.T) {
		resp, err := env.Client.Get(env.BaseURL + "/api/subscription/plans")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload struct {
			Status string                  `json:"status"`
			Data   []subscription.PlanInfo `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, "success", payload.Status)
		require.Len(t, payload.Data, len(subscription.AllPlans))
		for i, info := range payload.Data {
			assert.Equal(t, subscription.AllPlans[i], info.Plan)
			assert.Equal(t, subscription.FeaturesFor(info.Plan).ContentLimit, info.Features.ContentLimit)
		}
	})

	t.Run("unknown_route_uses_error_envelope", func(t *testing.T) {
		resp, err := env.Client.Get(env.BaseURL + "/api/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "fail", body["status"])
		assert.NotEmpty(t, body["message"])
	})
}
