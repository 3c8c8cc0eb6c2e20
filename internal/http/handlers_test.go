package http_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepulse/internal/testsupport"
)

func TestHealthEndpoint(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	req := httptest.NewRequest("GET", "/_health", nil)
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "ok", status["db_status"])
}

func TestAdminRoutesRequireSession(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	paths := []string{
		"/admin/dashboard",
		"/admin/clients",
		"/admin/stores",
		"/admin/settings",
		"/admin/logs",
		"/admin/reports",
	}
	for _, path := range paths {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
		req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equalf(t, fiber.StatusFound, resp.StatusCode, "expected redirect for %s", path)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	}
}
