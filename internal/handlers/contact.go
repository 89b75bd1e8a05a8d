package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/mlegall/assohub/internal/httpx"
	"github.com/mlegall/assohub/internal/services"
	"github.com/rs/zerolog"
)

// ContactHandler serves the public contact page and relays submissions by mail.
type ContactHandler struct {
	Mailer *services.Mailer
	Log    zerolog.Logger
}

func NewContactHandler(mailer *services.Mailer, log zerolog.Logger) *ContactHandler {
	return &ContactHandler{Mailer: mailer, Log: log}
}

func (h *ContactHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /contact", h.page)
	mux.HandleFunc("POST /contact/send", h.send)
}

func (h *ContactHandler) page(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "contact", nil)
}

func (h *ContactHandler) send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid_json"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Email == "" || req.Message == "" {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing_fields"})
		return
	}

	body := fmt.Sprintf("<p><strong>De&nbsp;:</strong> %s</p><p>%s</p>",
		html.EscapeString(req.Email), html.EscapeString(req.Message))
	if err := h.Mailer.SendContact(req.Email, body); err != nil {
		h.Log.Error().Err(err).Str("from", req.Email).Msg("contact form relay failed")
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "send_failed"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
