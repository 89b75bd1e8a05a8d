package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"github.com/mlegall/assohub/internal/validation"
	"gorm.io/gorm"
)

// maxAvatarMemory bounds multipart parsing for avatar uploads (8 MiB).
const maxAvatarMemory = 8 << 20

// MembersHandler serves the admin member directory and the per-member editor.
type MembersHandler struct {
	DB        *gorm.DB
	Gate      *policy.Gate
	UploadDir string
}

func NewMembersHandler(db *gorm.DB, gate *policy.Gate, uploadDir string) *MembersHandler {
	return &MembersHandler{DB: db, Gate: gate, UploadDir: uploadDir}
}

func (h *MembersHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /members", h.list)
	mux.HandleFunc("POST /members", h.list)
	mux.HandleFunc("GET /edit-member/{id}", h.editPage)
	mux.HandleFunc("POST /edit-member/{id}", h.edit)
}

func (h *MembersHandler) requireAdmin(w http.ResponseWriter, r *http.Request) *models.User {
	actor := currentUser(h.DB, r)
	if !h.Gate.IsGlobalAdmin(actor) {
		middleware.Flash(w, r, "danger", "admin_only")
		http.Redirect(w, r, "/projects", statusSeeOther)
		return nil
	}
	return actor
}

func (h *MembersHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	search := strings.TrimSpace(r.FormValue("search"))
	q := h.DB.Preload("Rank").Order("first_name")
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("lower(username) LIKE ? OR lower(first_name) LIKE ?", like, like)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	renderTemplate(w, r, "dashboard/members", map[string]any{
		"Members": users,
		"Search":  search,
	})
}

func (h *MembersHandler) editPage(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	var target models.User
	if err := h.DB.Preload("Rank").First(&target, pathUint(r, "id")).Error; err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	var ranks []models.Rank
	h.DB.Order("level DESC").Find(&ranks)
	renderTemplate(w, r, "dashboard/edit_member", map[string]any{
		"Member":        target,
		"Ranks":         ranks,
		"CurrentRankID": rankIDOf(&target),
	})
}

func rankIDOf(u *models.User) uint {
	if u.RankID == nil {
		return 0
	}
	return *u.RankID
}

func (h *MembersHandler) edit(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	var target models.User
	if err := h.DB.Preload("Rank").First(&target, pathUint(r, "id")).Error; err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		if err := r.ParseForm(); err != nil {
			renderError(w, r, http.StatusBadRequest, "form_invalid")
			return
		}
	}

	if r.FormValue("delete_account") != "" {
		if err := deleteAccount(h.DB, target.ID); err != nil {
			renderError(w, r, http.StatusInternalServerError, "server_error")
			return
		}
		middleware.Flash(w, r, "success", "account_deleted")
		http.Redirect(w, r, "/members", statusSeeOther)
		return
	}

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
		var ranks []models.Rank
		h.DB.Order("level DESC").Find(&ranks)
		renderTemplate(w, r, "dashboard/edit_member", map[string]any{
			"Member":        target,
			"Ranks":         ranks,
			"CurrentRankID": rankIDOf(&target),
			"Errors":        errs,
		})
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
	if rankID, err := strconv.Atoi(r.FormValue("rank_id")); err == nil && rankID > 0 {
		updates["rank_id"] = uint(rankID)
	}
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		if url, err := saveAvatar(h.UploadDir, target.ID, file, header); err == nil {
			updates["profile_picture_url"] = url
		} else {
			middleware.Flash(w, r, "warning", "form_invalid")
		}
	}
	if err := h.DB.Model(&target).Updates(updates).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	middleware.Flash(w, r, "success", "member_updated")
	http.Redirect(w, r, "/edit-member/"+r.PathValue("id"), statusSeeOther)
}

// deleteAccount removes the user and everything hanging off them: memberships
// and session rows go in the same transaction. Messages stay behind, orphaned.
func deleteAccount(db *gorm.DB, userID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserSession{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}
