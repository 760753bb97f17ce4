// Package api wires the HTTP surface of the server.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/samtale/samtale/internal/websocket"
)

// HealthResponse is the payload served by the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, staticDir string, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		status := "ok"
		code := http.StatusOK
		if !hub.Ready() {
			status = "starting"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, HealthResponse{
			Status:  status,
			Service: "samtale-server",
			Clients: hub.ClientCount(),
		})
	})

	if staticDir != "" {
		e.File("/", staticDir+"/index.html")
		e.Static("/static", staticDir)
	}

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}
