//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := ParseResponse(t, resp)
	assert.Equal(t, "healthy", result["status"])
	assert.Equal(t, "healthy", result["database"])
	assert.Equal(t, "healthy", result["redis"])
	assert.Equal(t, "not configured", result["nats"])
}

func TestRegister(t *testing.T) {
	env := SetupTestEnv(t)

	t.Run("successful registration", func(t *testing.T) {
		result := RegisterUser(t, env, uniqueEmail("reg"), "password123")

		assert.NotEmpty(t, result["access_token"])
		assert.NotEmpty(t, result["refresh_token"])
		assert.NotZero(t, result["expires_in"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		email := uniqueEmail("dupe")
		RegisterUser(t, env, email, "password123")

		body := map[string]string{"email": email, "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("invalid email", func(t *testing.T) {
		body := map[string]string{"email": "not-an-email", "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("short password", func(t *testing.T) {
		body := map[string]string{"email": uniqueEmail("short"), "password": "short"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	env := SetupTestEnv(t)

	email := uniqueEmail("login")
	RegisterUser(t, env, email, "password123")

	t.Run("successful login", func(t *testing.T) {
		body := map[string]string{"email": email, "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.NotEmpty(t, result["access_token"])
		assert.NotEmpty(t, result["refresh_token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{"email": email, "password": "wrongpass"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-existent user", func(t *testing.T) {
		body := map[string]string{"email": "nobody@test.com", "password": "password123"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRefreshToken(t *testing.T) {
	env := SetupTestEnv(t)

	result := RegisterUser(t, env, uniqueEmail("refresh"), "password123")

	t.Run("valid refresh", func(t *testing.T) {
		body := map[string]string{"refresh_token": result["refresh_token"].(string)}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/refresh", body, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		refreshed := ParseResponse(t, resp)
		assert.NotEmpty(t, refreshed["access_token"])
	})

	t.Run("garbage token", func(t *testing.T) {
		body := map[string]string{"refresh_token": "not-a-jwt"}
		resp := DoRequest(t, env, "POST", "/api/v1/auth/refresh", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	env := SetupTestEnv(t)

	email := uniqueEmail("logout")
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "POST", "/api/v1/auth/logout", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
