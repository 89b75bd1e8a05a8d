package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mlegall/assohub/internal/httpx"
	"github.com/mlegall/assohub/internal/i18n"
	"github.com/mlegall/assohub/internal/messaging"
	"github.com/mlegall/assohub/internal/middleware"
	"gorm.io/gorm"
)

// MessagingHandler serves the discussions page and the polled JSON endpoints.
type MessagingHandler struct {
	DB  *gorm.DB
	Svc *messaging.Service
}

func NewMessagingHandler(db *gorm.DB, svc *messaging.Service) *MessagingHandler {
	return &MessagingHandler{DB: db, Svc: svc}
}

func (h *MessagingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /messages", h.messagesPage)
	mux.HandleFunc("POST /create-discussion", h.createDiscussion)
	mux.HandleFunc("GET /get-messages/{discussion}", h.getMessages)
	mux.HandleFunc("POST /send-message", h.sendMessage)
}

func (h *MessagingHandler) messagesPage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	discussions, err := h.Svc.ListFor(user)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	groups, err := h.Svc.MessengerGroups(user.ID)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	recipients, err := h.Svc.RecipientChoices(user)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	renderTemplate(w, r, "dashboard/messages", map[string]any{
		"Discussions":     discussions,
		"MessengerGroups": groups,
		"Recipients":      recipients,
		"CanCreate":       len(groups) > 0,
	})
}

func (h *MessagingHandler) createDiscussion(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "form_invalid")
		return
	}
	groupID, _ := strconv.Atoi(r.FormValue("group_id"))
	recipientID, _ := strconv.Atoi(r.FormValue("recipient_id"))
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" || groupID <= 0 || recipientID <= 0 {
		middleware.Flash(w, r, "danger", "form_invalid")
		http.Redirect(w, r, "/messages", statusSeeOther)
		return
	}

	_, err := h.Svc.CreateDiscussion(user, uint(groupID), uint(recipientID), title)
	switch {
	case errors.Is(err, messaging.ErrNotMessenger):
		middleware.Flash(w, r, "danger", "not_messager")
	case errors.Is(err, messaging.ErrInvalidRecipient):
		middleware.Flash(w, r, "danger", "recipient_invalid")
	case err != nil:
		middleware.Flash(w, r, "danger", "server_error")
	default:
		middleware.Flash(w, r, "success", "discussion_created")
	}
	http.Redirect(w, r, "/messages", statusSeeOther)
}

// getMessages is the polling endpoint. ?after_id= is an exclusive cursor: only
// messages with a strictly greater id come back.
func (h *MessagingHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	afterID, _ := strconv.Atoi(r.URL.Query().Get("after_id"))
	if afterID < 0 {
		afterID = 0
	}

	thread, err := h.Svc.Poll(user.ID, pathUint(r, "discussion"), uint(afterID))
	if err != nil {
		h.jsonServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, thread)
}

func (h *MessagingHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		DiscussionID uint   `json:"discussion_id"`
		Content      string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	msg, err := h.Svc.Send(user, req.DiscussionID, strings.TrimSpace(req.Content))
	if err != nil {
		h.jsonServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msg)
}

func (h *MessagingHandler) jsonServiceError(w http.ResponseWriter, r *http.Request, err error) {
	lang := middleware.LangFrom(r)
	switch {
	case errors.Is(err, messaging.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, i18n.T(lang, "not_found"), nil)
	case errors.Is(err, messaging.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, i18n.T(lang, "access_denied"), nil)
	case errors.Is(err, messaging.ErrEmptyMessage):
		httpx.JSONError(w, http.StatusBadRequest, i18n.T(lang, "form_invalid"), nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, i18n.T(lang, "server_error"), nil)
	}
}
