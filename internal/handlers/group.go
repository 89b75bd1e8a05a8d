package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mlegall/assohub/internal/middleware"
	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"github.com/mlegall/assohub/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// GroupHandler serves project pages and membership mutations.
type GroupHandler struct {
	DB   *gorm.DB
	Gate *policy.Gate
}

func NewGroupHandler(db *gorm.DB, gate *policy.Gate) *GroupHandler {
	return &GroupHandler{DB: db, Gate: gate}
}

func (h *GroupHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /create", h.createPage)
	mux.HandleFunc("POST /create", h.create)
	mux.HandleFunc("POST /add-user-to-group", h.addMember)
	mux.HandleFunc("POST /remove-user-from-group/{group}/{user}", h.removeMember)
	mux.HandleFunc("GET /projects", h.projects)
	mux.HandleFunc("GET /project/{id}", h.projectView)
}

// createPage shows the admin page carrying both the new-project form and the
// new-user form.
func (h *GroupHandler) createPage(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(h.DB, r)
	if !h.Gate.IsGlobalAdmin(actor) {
		middleware.Flash(w, r, "danger", "admin_only")
		http.Redirect(w, r, "/projects", statusSeeOther)
		return
	}
	h.renderCreate(w, r, nil, nil)
}

func (h *GroupHandler) renderCreate(w http.ResponseWriter, r *http.Request, errs validation.Violations, values map[string][]string) {
	var users []models.User
	h.DB.Order("username").Find(&users)
	renderTemplate(w, r, "dashboard/create", map[string]any{
		"Users":  users,
		"Errors": errs,
		"Values": values,
	})
}

// create dispatches on the submit button name: one page, two forms.
func (h *GroupHandler) create(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(h.DB, r)
	if !h.Gate.IsGlobalAdmin(actor) {
		middleware.Flash(w, r, "danger", "admin_only")
		http.Redirect(w, r, "/projects", statusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "form_invalid")
		return
	}
	switch {
	case r.Form.Has("create_group"):
		h.createGroup(w, r, actor)
	case r.Form.Has("create_user"):
		h.createUser(w, r)
	default:
		renderError(w, r, http.StatusBadRequest, "form_invalid")
	}
}

func (h *GroupHandler) createGroup(w http.ResponseWriter, r *http.Request, actor *models.User) {
	name := strings.TrimSpace(r.FormValue("name"))
	description := strings.TrimSpace(r.FormValue("description"))
	chefID, _ := strconv.Atoi(r.FormValue("chef_id"))

	errs := validation.Violations{}
	validation.Required("name", name, errs)
	validation.Length("name", name, 1, 100, errs)
	validation.Required("description", description, errs)
	if chefID <= 0 {
		errs["chef_id"] = "required"
	} else {
		var count int64
		h.DB.Model(&models.User{}).Where("id = ?", chefID).Count(&count)
		if count == 0 {
			errs["chef_id"] = "invalid_choice"
		}
	}
	if errs.Empty() {
		var count int64
		h.DB.Model(&models.Group{}).Where("lower(name) = lower(?)", name).Count(&count)
		if count > 0 {
			errs["name"] = "group_name_taken"
		}
	}
	if !errs.Empty() {
		h.renderCreate(w, r, errs, r.Form)
		return
	}

	var group models.Group
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		group = models.Group{Name: name, Description: description, CreatedBy: actor.ID, CreatedAt: time.Now().UTC()}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		m := models.GroupMembership{
			UserID:      uint(chefID),
			GroupID:     group.ID,
			RoleInGroup: string(models.RoleChef),
			JoinedAt:    time.Now().UTC(),
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	middleware.Flash(w, r, "success", "group_created")
	http.Redirect(w, r, fmt.Sprintf("/project/%d", group.ID), statusSeeOther)
}

func (h *GroupHandler) createUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	firstName := strings.TrimSpace(r.FormValue("first_name"))
	lastName := strings.TrimSpace(r.FormValue("last_name"))
	email := strings.TrimSpace(r.FormValue("email"))
	phone := strings.TrimSpace(r.FormValue("phone"))
	rankName := r.FormValue("rank")
	age, _ := strconv.Atoi(r.FormValue("age"))

	errs := validation.Violations{}
	validation.Required("username", username, errs)
	validation.Length("username", username, 3, 50, errs)
	validation.Required("first_name", firstName, errs)
	validation.Required("last_name", lastName, errs)
	validation.IntRange("age", age, 10, 100, errs)
	validation.Email("email", email, errs)
	validation.Phone("phone", phone, errs)
	validation.OneOf("rank", rankName, []string{models.RankAdmin, models.RankMember}, errs)
	if len(password) < 6 {
		errs["password"] = "length_invalid"
	}
	if errs.Empty() {
		var count int64
		h.DB.Model(&models.User{}).Where("username = ?", username).Count(&count)
		if count > 0 {
			errs["username"] = "username_taken"
		}
	}
	if !errs.Empty() {
		h.renderCreate(w, r, errs, r.Form)
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
		Phone:        phone,
	}
	if email != "" {
		user.Email = &email
	}
	var rank models.Rank
	if err := h.DB.Where("name = ?", rankName).First(&rank).Error; err == nil {
		user.RankID = &rank.ID
	}
	if err := h.DB.Create(&user).Error; err != nil {
		h.renderCreate(w, r, validation.Violations{"username": "username_taken"}, r.Form)
		return
	}
	middleware.Flash(w, r, "success", "user_created")
	http.Redirect(w, r, "/create", statusSeeOther)
}

func (h *GroupHandler) addMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, "form_invalid")
		return
	}
	groupID, _ := strconv.Atoi(r.FormValue("group_id"))
	userID, _ := strconv.Atoi(r.FormValue("user_id"))
	back := fmt.Sprintf("/project/%d", groupID)

	var group models.Group
	if err := h.DB.First(&group, groupID).Error; err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	actor := currentUser(h.DB, r)
	if !h.Gate.CanAddMember(actor, &group) {
		middleware.Flash(w, r, "danger", "forbidden")
		http.Redirect(w, r, back, statusSeeOther)
		return
	}
	role, err := models.ParseRole(r.FormValue("role"))
	if err != nil {
		middleware.Flash(w, r, "danger", "role_invalid")
		http.Redirect(w, r, back, statusSeeOther)
		return
	}
	var target models.User
	if err := h.DB.First(&target, userID).Error; err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	var count int64
	h.DB.Model(&models.GroupMembership{}).
		Where("user_id = ? AND group_id = ?", userID, group.ID).Count(&count)
	if count > 0 {
		middleware.Flash(w, r, "warning", "member_exists")
		http.Redirect(w, r, back, statusSeeOther)
		return
	}
	m := models.GroupMembership{
		UserID:      uint(userID),
		GroupID:     group.ID,
		RoleInGroup: string(role),
		JoinedAt:    time.Now().UTC(),
	}
	if err := h.DB.Create(&m).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	middleware.Flash(w, r, "success", "member_added")
	http.Redirect(w, r, back, statusSeeOther)
}

// removeMember resolves a removal request against the target's membership
// role: trésorier and messager fall back to plain membre, a plain membre
// leaves the project, and a chef is protected from everyone but an admin.
func (h *GroupHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	groupID := pathUint(r, "group")
	userID := pathUint(r, "user")
	back := fmt.Sprintf("/project/%d", groupID)

	var group models.Group
	if err := h.DB.First(&group, groupID).Error; err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	actor := currentUser(h.DB, r)
	if !h.Gate.CanRemoveMember(actor, userID, &group) {
		middleware.Flash(w, r, "danger", "forbidden")
		http.Redirect(w, r, back, statusSeeOther)
		return
	}
	var m models.GroupMembership
	if err := h.DB.Where("user_id = ? AND group_id = ?", userID, group.ID).First(&m).Error; err != nil {
		middleware.Flash(w, r, "warning", "member_missing")
		http.Redirect(w, r, back, statusSeeOther)
		return
	}

	switch policy.RemovalOutcome(h.Gate.IsGlobalAdmin(actor), m.Role()) {
	case policy.OutcomeDemote:
		if err := h.DB.Model(&m).Update("role_in_group", string(models.RoleMember)).Error; err != nil {
			renderError(w, r, http.StatusInternalServerError, "server_error")
			return
		}
		middleware.Flash(w, r, "success", "member_demoted")
	case policy.OutcomeDelete:
		if err := h.DB.Delete(&m).Error; err != nil {
			renderError(w, r, http.StatusInternalServerError, "server_error")
			return
		}
		middleware.Flash(w, r, "success", "member_removed")
	default:
		middleware.Flash(w, r, "danger", "chef_protected")
	}
	http.Redirect(w, r, back, statusSeeOther)
}

// projects lists the groups the user may see: everything for an admin, their
// created-or-joined groups otherwise. ?search= filters by name.
func (h *GroupHandler) projects(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(h.DB, r)
	if actor == nil {
		http.Redirect(w, r, "/login", statusSeeOther)
		return
	}
	q := h.DB.Preload("Creator").Order("created_at DESC")
	if !h.Gate.IsGlobalAdmin(actor) {
		var memberOf []uint
		h.DB.Model(&models.GroupMembership{}).
			Where("user_id = ?", actor.ID).Pluck("group_id", &memberOf)
		if len(memberOf) > 0 {
			q = q.Where("created_by = ? OR id IN ?", actor.ID, memberOf)
		} else {
			q = q.Where("created_by = ?", actor.ID)
		}
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	if search != "" {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	var groups []models.Group
	if err := q.Find(&groups).Error; err != nil {
		renderError(w, r, http.StatusInternalServerError, "server_error")
		return
	}
	renderTemplate(w, r, "dashboard/projects", map[string]any{
		"Groups": groups,
		"Search": search,
	})
}

// memberEntry pairs a member with their normalized role for the template.
type memberEntry struct {
	User models.User
	Role models.Role
}

func (h *GroupHandler) projectView(w http.ResponseWriter, r *http.Request) {
	var group models.Group
	err := h.DB.Preload("Creator").Preload("Memberships.User").First(&group, pathUint(r, "id")).Error
	if err != nil {
		renderError(w, r, http.StatusNotFound, "not_found")
		return
	}
	actor := currentUser(h.DB, r)

	buckets := map[models.Role][]memberEntry{}
	memberIDs := make([]uint, 0, len(group.Memberships))
	var treasurer *models.User
	for _, m := range group.Memberships {
		if m.User == nil {
			continue
		}
		role := m.Role()
		buckets[role] = append(buckets[role], memberEntry{User: *m.User, Role: role})
		memberIDs = append(memberIDs, m.UserID)
		if role == models.RoleTreasurer && treasurer == nil {
			u := *m.User
			treasurer = &u
		}
	}

	var nonMembers []models.User
	q := h.DB.Order("username")
	if len(memberIDs) > 0 {
		q = q.Where("id NOT IN ?", memberIDs)
	}
	q.Find(&nonMembers)

	renderTemplate(w, r, "dashboard/project-view", map[string]any{
		"Group":      group,
		"Chefs":      buckets[models.RoleChef],
		"Treasurers": buckets[models.RoleTreasurer],
		"Messengers": buckets[models.RoleMessenger],
		"Members":    buckets[models.RoleMember],
		"Treasurer":  treasurer,
		"NonMembers": nonMembers,
		"CanManage":  h.Gate.CanAddMember(actor, &group),
		"CanRemove":  h.Gate.CanRemoveMember(actor, 0, &group),
		"Roles":      []models.Role{models.RoleChef, models.RoleTreasurer, models.RoleMessenger, models.RoleMember},
	})
}
