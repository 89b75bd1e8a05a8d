package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mlegall/assohub/internal/auth"
	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/sessions"
	"github.com/mlegall/assohub/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	DB       *gorm.DB
	Sessions *sessions.Service
}

func NewAuthHandler(db *gorm.DB, sess *sessions.Service) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sess}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /register", h.registerPage)
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("GET /login", h.loginPage)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /logout", h.logout)
	mux.HandleFunc("POST /logout", h.logout)
}

func (h *AuthHandler) registerPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "auth", map[string]any{"Mode": "register"})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "form_invalid")
		return
	}
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	confirm := r.FormValue("password_confirm")
	firstName := strings.TrimSpace(r.FormValue("first_name"))
	lastName := strings.TrimSpace(r.FormValue("last_name"))
	age, _ := strconv.Atoi(r.FormValue("age"))

	errs := validation.Violations{}
	validation.Required("username", username, errs)
	validation.Length("username", username, 3, 50, errs)
	validation.Required("first_name", firstName, errs)
	validation.Required("last_name", lastName, errs)
	validation.IntRange("age", age, 10, 100, errs)
	if len(password) < 6 {
		errs["password"] = "length_invalid"
	}
	if password != confirm {
		errs["password_confirm"] = "passwords_mismatch"
	}
	if errs.Empty() {
		var count int64
		h.DB.Model(&models.User{}).Where("username = ?", username).Count(&count)
		if count > 0 {
			errs["username"] = "username_taken"
		}
	}
	if !errs.Empty() {
		renderTemplate(w, r, "auth", map[string]any{
			"Mode":   "register",
			"Errors": errs,
			"Values": r.Form,
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Age:          age,
	}
	var memberRank models.Rank
	if err := h.DB.Where("name = ?", models.RankMember).First(&memberRank).Error; err == nil {
		user.RankID = &memberRank.ID
	}
	if err := h.DB.Create(&user).Error; err != nil {
		renderTemplate(w, r, "auth", map[string]any{
			"Mode":   "register",
			"Errors": validation.Violations{"username": "username_taken"},
			"Values": r.Form,
		})
		return
	}
	middleware.Flash(w, r, "success", "register_success")
	http.Redirect(w, r, "/login", statusSeeOther)
}

func (h *AuthHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok && uid != 0 {
		var count int64
		if err := h.DB.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err == nil && count > 0 {
			http.Redirect(w, r, "/projects", http.StatusSeeOther)
			return
		}
		// Stale session: clear and continue to render login.
		auth.ClearSession(w)
	}
	renderTemplate(w, r, "auth", map[string]any{"Mode": "login", "Next": r.URL.Query().Get("next")})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "form_invalid")
		return
	}
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	var user models.User
	err := h.DB.Where("username = ?", username).First(&user).Error
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		middleware.Flash(w, r, "danger", "login_failed")
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}

	auth.CreateSession(w, user.ID)
	if _, err := h.Sessions.Issue(user.ID, clientIP(r)); err != nil {
		// Bookkeeping only; the signed cookie is already set.
		_ = err
	}
	now := time.Now().UTC()
	h.DB.Model(&user).Update("last_login_at", &now)

	middleware.Flash(w, r, "success", "login_success")
	http.Redirect(w, r, safeNext(r.FormValue("next")), statusSeeOther)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok && uid != 0 {
		if err := h.Sessions.RevokeAll(uid); err != nil {
			_ = err
		}
	}
	auth.ClearSession(w)
	middleware.Flash(w, r, "success", "logout_success")
	http.Redirect(w, r, "/login", statusSeeOther)
}
