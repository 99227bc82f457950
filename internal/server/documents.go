package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docuery/docuery/internal/ingest"
	"github.com/docuery/docuery/internal/registry"
)

// DocumentsHandler exposes document upload, listing and deletion.
type DocumentsHandler struct {
	Pipeline *ingest.Pipeline
	Registry *registry.Registry
}

func (h *DocumentsHandler) Register(g *echo.Group) {
	g.POST("/upload", h.upload)
	g.GET("", h.list)
	g.DELETE("/:id", h.remove)
	g.DELETE("", h.clear)
}

func (h *DocumentsHandler) upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No files received")
	}

	uploaded := make([]registry.DocumentMetadata, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open upload %s: %v", fh.Filename, err))
		}
		raw, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}

		meta, err := h.Pipeline.Ingest(c.Request().Context(), raw, fh.Filename)
		if err != nil {
			return httpError(err)
		}
		documentsIngestedTotal.Inc()
		uploaded = append(uploaded, meta)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": uploaded})
}

func (h *DocumentsHandler) list(c echo.Context) error {
	docs, err := h.Registry.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentsHandler) remove(c echo.Context) error {
	id := c.Param("id")
	found, err := h.Pipeline.Delete(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	documentsDeletedTotal.Inc()
	return c.JSON(http.StatusOK, map[string]string{"deleted_document_id": id})
}

func (h *DocumentsHandler) clear(c echo.Context) error {
	count, err := h.Pipeline.ClearAll(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	documentsDeletedTotal.Add(float64(count))
	return c.JSON(http.StatusOK, map[string]int{"deleted_count": count})
}
