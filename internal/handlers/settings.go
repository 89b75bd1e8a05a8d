package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SettingsHandler serves the self-service account page: base info, password,
// preferences and account deletion, four forms distinguished by submit name.
type SettingsHandler struct {
	DB        *gorm.DB
	UploadDir string
}

func NewSettingsHandler(db *gorm.DB, uploadDir string) *SettingsHandler {
	return &SettingsHandler{DB: db, UploadDir: uploadDir}
}

func (h *SettingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /settings", h.page)
	mux.HandleFunc("POST /settings", h.update)
}

func (h *SettingsHandler) page(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	renderTemplate(w, r, "dashboard/settings", map[string]any{"User": user})
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.DB, r)
	if user == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		if err := r.ParseForm(); err != nil {
			renderError(w, r, http.StatusBadRequest, "form_invalid")
			return
		}
	}

	switch {
	case r.Form.Has("save_base"):
		h.saveBase(w, r, user)
	case r.Form.Has("change_password"):
		h.changePassword(w, r, user)
	case r.Form.Has("save_preferences"):
		h.savePreferences(w, r, user)
	case r.Form.Has("delete_account"):
		if err := deleteAccount(h.DB, user.ID); err != nil {
			renderError(w, r, http.StatusInternalServerError, "server_error")
			return
		}
		http.Redirect(w, r, "/logout", statusSeeOther)
	default:
		renderError(w, r, http.StatusBadRequest, "form_invalid")
	}
}

func (h *SettingsHandler) saveBase(w http.ResponseWriter, r *http.Request, user *models.User) {
	firstName := strings.TrimSpace(r.FormValue("first_name"))
	lastName := strings.TrimSpace(r.FormValue("last_name"))
	email := strings.TrimSpace(r.FormValue("email"))
	phone := strings.TrimSpace(r.FormValue("phone"))
	age, _ := strconv.Atoi(r.FormValue("age"))

	errs := validation.Violations{}
	validation.Required("first_name", firstName, errs)
	validation.Required("last_name", lastName, errs)
	validation.IntRange("age", age, 10, 100, errs)
	validation.Email("email", email, errs)
	validation.Phone("phone", phone, errs)
	if !errs.Empty() {
		renderTemplate(w, r, "dashboard/settings", map[string]any{"User": user, "Errors": errs})
		return
	}

	updates := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"age":        age,
		"phone":      phone,
	}
	if email != "" {
		updates["email"] = email
	}
	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	middleware.Flash(w, r, "success", "settings_saved")
	http.Redirect(w, r, "/settings", statusSeeOther)
}

func (h *SettingsHandler) changePassword(w http.ResponseWriter, r *http.Request, user *models.User) {
	current := r.FormValue("current_password")
	newPass := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		middleware.Flash(w, r, "danger", "password_wrong")
		http.Redirect(w, r, "/settings", statusSeeOther)
		return
	}
	if len(newPass) < 6 || newPass != confirm {
		middleware.Flash(w, r, "danger", "passwords_mismatch")
		http.Redirect(w, r, "/settings", statusSeeOther)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPass), bcrypt.DefaultCost)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	if err := h.DB.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	middleware.Flash(w, r, "success", "password_changed")
	http.Redirect(w, r, "/settings", statusSeeOther)
}

func (h *SettingsHandler) savePreferences(w http.ResponseWriter, r *http.Request, user *models.User) {
	theme := r.FormValue("theme")
	lang := r.FormValue("language")

	errs := validation.Violations{}
	validation.OneOf("theme", theme, []string{"light", "dark"}, errs)
	validation.OneOf("language", lang, []string{"fr", "en"}, errs)
	if !errs.Empty() {
		renderTemplate(w, r, "dashboard/settings", map[string]any{"User": user, "Errors": errs})
		return
	}

	updates := map[string]any{"theme": theme, "language": lang}
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		if url, err := saveAvatar(h.UploadDir, user.ID, file, header); err == nil {
			updates["profile_picture_url"] = url
		} else {
			middleware.Flash(w, r, "warning", "form_invalid")
		}
	}
	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}

	// Mirror the stored preference into the cookies the middleware reads.
	http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", MaxAge: 86400 * 30})
	http.SetCookie(w, &http.Cookie{Name: "theme", Value: theme, Path: "/", MaxAge: 86400 * 30})
	middleware.Flash(w, r, "success", "preferences_saved")
	http.Redirect(w, r, "/settings", statusSeeOther)
}
