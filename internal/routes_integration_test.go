package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
)

func TestLoginRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	var loginRoute *fiber.Route
	for idx := range routes {
		route := routes[idx]
		if route.Method == fiber.MethodPost && route.Path == "/login" {
			loginRoute = &routes[idx]
			break
		}
	}

	require.NotNil(t, loginRoute, "expected login route to be registered")

	// The rate limiter is wrapped in a conditional function that only applies
	// in production. In test environment, it passes through but the wrapper
	// still exists. Check for the conditional wrapper (defined in
	// MountAppRoutesWithoutSession).
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range loginRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		// Check for either the raw limiter or our conditional wrapper
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for login route, handlers: %v", handlerNames)
}

func TestAdminRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	registered := make(map[string]bool)
	for _, route := range routes {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"GET /_health",
		"HEAD /_health",
		"GET /login",
		"POST /login",
		"POST /logout",
		"GET /admin/dashboard",
		"GET /admin/clients",
		"POST /admin/clients",
		"DELETE /admin/clients/:id",
		"GET /admin/stores",
		"POST /admin/stores/sync",
		"POST /admin/devices/:id",
		"GET /admin/users",
		"POST /admin/users/:id/permissions",
		"GET /admin/settings",
		"POST /admin/settings/api-config",
		"GET /admin/logs",
		"GET /admin/reports",
		"GET /admin/reports/download",
		"GET /admin/api/system/export-database",
	}
	for _, want := range expected {
		require.Truef(t, registered[want], "expected route %s to be registered", want)
	}
}

func TestProviderProxyRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	var hasGet, hasPost bool
	for _, route := range routes {
		if route.Path == "/api-proxy/*" {
			switch route.Method {
			case fiber.MethodGet:
				hasGet = true
			case fiber.MethodPost:
				hasPost = true
			}
		}
	}

	require.True(t, hasGet, "expected GET proxy route to be registered")
	require.True(t, hasPost, "expected POST proxy route to be registered")
}
