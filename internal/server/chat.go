package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docuery/docuery/internal/rag"
	"github.com/docuery/docuery/internal/session"
	"github.com/docuery/docuery/provider"
)

// ChatHandler answers questions over the indexed documents.
type ChatHandler struct {
	Engine   *rag.Engine
	Sessions session.Store
}

type chatRequest struct {
	Message     string            `json:"message"`
	DocumentIDs []string          `json:"document_ids"`
	History     []rag.HistoryItem `json:"history"`
	SessionID   string            `json:"session_id"`
}

type chatResponse struct {
	rag.Response
	SessionID string `json:"session_id,omitempty"`
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	chatRequestsTotal.Inc()

	// Request-carried history wins; a session id is only consulted
	// when the client sends none.
	history := req.History
	if len(history) == 0 && req.SessionID != "" {
		stored, err := h.Sessions.History(ctx, req.SessionID)
		if err != nil {
			return err
		}
		history = stored
	}

	resp, err := h.Engine.Answer(ctx, req.Message, req.DocumentIDs, history)
	if err != nil {
		return httpError(err)
	}

	if req.SessionID != "" {
		if err := h.Sessions.Append(ctx, req.SessionID,
			rag.HistoryItem{Role: provider.RoleUser, Text: req.Message},
			rag.HistoryItem{Role: provider.RoleAssistant, Text: resp.Answer},
		); err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, chatResponse{Response: resp, SessionID: req.SessionID})
}
