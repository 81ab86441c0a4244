//go:build e2e

package test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPJSONStep is one request in a scripted flow.
type HTTPJSONStep struct {
	Name           string
	Method         string
	URL            string
	Body           any
	Headers        map[string]string
	ExpectedStatus int
	Validator      func(*testing.T, map[string]any)
}

// ExecuteHTTPJSONStep runs step and returns the decoded body.
// 204 responses decode to nil.
func ExecuteHTTPJSONStep(t *testing.T, step HTTPJSONStep, baseURL string) map[string]any {
	t.Helper()
	t.Logf("step: %s", step.Name)

	resp, err := httpJSON(step.Method, baseURL+step.URL, step.Body, step.Headers)
	require.NoError(t, err)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf(msgFailedToCloseResponseBody, err)
		}
	}()

	require.Equal(t, step.ExpectedStatus, resp.StatusCode, step.Name)

	var respData map[string]any
	if resp.StatusCode != 204 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&respData))
	}

	if step.Validator != nil {
		step.Validator(t, respData)
	}

	return respData
}

// ExecuteHTTPJSONSteps runs steps in order.
func ExecuteHTTPJSONSteps(t *testing.T, steps []HTTPJSONStep, baseURL string) []map[string]any {
	t.Helper()
	results := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		results = append(results, ExecuteHTTPJSONStep(t, step, baseURL))
	}
	return results
}

// FieldsPresent checks that every field is set in the response.
func FieldsPresent(fields ...string) func(*testing.T, map[string]any) {
	return func(t *testing.T, respData map[string]any) {
		t.Helper()
		for _, field := range fields {
			value, exists := respData[field]
			require.True(t, exists, "Expected field %s to exist in response", field)
			require.NotEmpty(t, value, "Expected field %s to not be empty", field)
		}
	}
}

// FailMessage checks a {status:"fail", message} error body.
func FailMessage(expected string) func(*testing.T, map[string]any) {
	return func(t *testing.T, respData map[string]any) {
		t.Helper()
		assert.Equal(t, "fail", respData["status"])
		assert.Equal(t, expected, respData["message"])
	}
}

// Data returns the "data" object of a success body.
func Data(t *testing.T, respData map[string]any) map[string]any {
	t.Helper()
	data, ok := respData["data"].(map[string]any)
	require.True(t, ok, "Expected data object in response")
	return data
}

// GetTokenFromResponse extracts a non-empty string field.
func GetTokenFromResponse(t *testing.T, respData map[string]any, fieldName string) string {
	t.Helper()
	token, exists := respData[fieldName]
	require.True(t, exists, "Expected %s field to exist in response", fieldName)
	tokenStr, ok := token.(string)
	require.True(t, ok, "Expected %s to be a string", fieldName)
	require.NotEmpty(t, tokenStr, "Expected %s to not be empty", fieldName)
	return tokenStr
}
