package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/mauv0809/co-econ-etl/internal/config"
	"github.com/mauv0809/co-econ-etl/internal/storage"
)

type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, logger: logger}
}

// Health returns application health status
// @Summary Health check
// @Description Returns the health status of the application
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Data serves the saved primary artifact of a table.
// @Summary Download table
// @Description Returns business_entities, business_statistics or main_graph_data as parquet or csv
// @Tags data
// @Param table path string true "table name"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /data/{table} [get]
func (h *Handler) Data(c echo.Context) error {
	table := c.Param("table")

	path, ok := h.cfg.TablePath(table)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown table: " + table,
		})
	}

	format, err := storage.FormatFromPath(path)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": table + " has not been generated yet",
			})
		}
		h.logger.Error("Could not stat artifact", slog.String("path", path), slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "artifact unavailable",
		})
	}

	c.Response().Header().Set(echo.HeaderContentType, format.ContentType())
	return c.File(path)
}
