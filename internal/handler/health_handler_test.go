package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/handler"
)

func TestHealthCheck_ReportsStore(t *testing.T) {
	p := newPortal(t, portalOptions{})

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/v1/health", "", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "portal-test", resp.Header.Get("X-Application"))

	var health envelope[handler.HealthResponse]
	decodeResponse(t, resp, &health)
	require.True(t, health.Success)
	require.Equal(t, "ok", health.Data.Status)
	require.Equal(t, "redis", health.Data.Store)
}

func TestHealthCheck_DegradedWhenStoreFails(t *testing.T) {
	p := newPortal(t, portalOptions{storeProbe: func(context.Context) error { return errStoreDown }})

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/v1/health", "", nil))
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var health envelope[handler.HealthResponse]
	decodeResponse(t, resp, &health)
	require.False(t, health.Success)
	require.Equal(t, "degraded", health.Data.Status)
}
