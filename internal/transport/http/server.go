// Package http provides the HTTP server of the desktop runner.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/deskrunner/internal/hub"
	"github.com/xiaot623/gogo/deskrunner/internal/service"
	v1 "github.com/xiaot623/gogo/deskrunner/internal/transport/http/v1"
)

// NewServer creates the operator-facing HTTP server. mcp, when non-nil, is
// mounted on /mcp.
func NewServer(svc *service.Service, streams *hub.Hub, mcp http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	// Handlers
	v1Handler := v1.NewHandler(svc, streams)
	v1Handler.RegisterRoutes(e)

	if mcp != nil {
		e.Any("/mcp", echo.WrapHandler(mcp))
	}

	return e
}
