package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/mlegall/assohub/internal/httpx"
	"github.com/mlegall/assohub/internal/i18n"
	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/mindmap"
	"github.com/mlegall/assohub/internal/policy"
	"gorm.io/gorm"
)

// maxMindMapBody caps the saved document at 1 MiB.
const maxMindMapBody = 1 << 20

// MindMapHandler serves the per-project mind-map page and its save endpoint.
type MindMapHandler struct {
	DB   *gorm.DB
	Gate *policy.Gate
	Svc  *mindmap.Service
}

func NewMindMapHandler(db *gorm.DB, gate *policy.Gate, svc *mindmap.Service) *MindMapHandler {
	return &MindMapHandler{DB: db, Gate: gate, Svc: svc}
}

func (h *MindMapHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /project/{id}/mind-map", h.page)
	mux.HandleFunc("POST /project/{id}/mind-map/save", h.save)
}

func (h *MindMapHandler) page(w http.ResponseWriter, r *http.Request) {
	groupID := pathUint(r, "id")
	user := currentUser(h.DB, r)
	if user == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	if _, member := h.Gate.RoleInGroup(user.ID, groupID); !member && !h.Gate.IsGlobalAdmin(user) {
		middleware.Flash(w, r, "danger", "access_denied")
		http.Redirect(w, r, "/projects", statusSeeOther)
		return
	}

	m, err := h.Svc.GetOrCreate(groupID)
	if err != nil {
		if errors.Is(err, mindmap.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "not_found")
			return
		}
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	renderTemplate(w, r, "dashboard/mind_map", map[string]any{
		"GroupID": groupID,
		"Map":     m,
		"CanEdit": h.Gate.CanEditMindMap(user.ID, groupID),
	})
}

func (h *MindMapHandler) save(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMindMapBody))
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	lang := middleware.LangFrom(r)
	switch err := h.Svc.Save(user.ID, pathUint(r, "id"), raw); {
	case errors.Is(err, mindmap.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, i18n.T(lang, "access_denied"), nil)
	case errors.Is(err, mindmap.ErrInvalidJSON):
		httpx.JSONError(w, http.StatusBadRequest, i18n.T(lang, "form_invalid"), nil)
	case errors.Is(err, mindmap.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, i18n.T(lang, "not_found"), nil)
	case err != nil:
		httpx.JSONError(w, http.StatusInternalServerError, i18n.T(lang, "server_error"), nil)
	default:
		httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
