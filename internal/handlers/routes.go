package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Register mounts the routes on e. ph and metrics may be nil.
func Register(e *echo.Echo, h *Handler, ph *PipelineHandler, metrics http.Handler) {
	e.GET("/health", h.Health)
	e.GET("/data/:table", h.Data)

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	if ph != nil {
		admin := e.Group("/admin")
		admin.GET("/pipeline/status", ph.Status)
		admin.POST("/pipeline/load", ph.Load)
		admin.POST("/pipeline/prep", ph.Prep)
		admin.POST("/pipeline/run", ph.Run)
	}
}
