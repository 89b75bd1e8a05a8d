// Package policy is the authorization gate: predicate functions deciding
// whether a (user, action, resource) triple is permitted. Predicates have no
// side effects; handlers call them before every mutation or sensitive read.
package policy

import (
	"errors"

	"github.com/mlegall/assohub/internal/models"
	"gorm.io/gorm"
)

// Gate evaluates authorization rules against membership and rank data.
type Gate struct {
	db *gorm.DB
}

// NewGate creates a gate bound to a database handle.
func NewGate(db *gorm.DB) *Gate { return &Gate{db: db} }

// IsGlobalAdmin reports whether the user holds the global admin rank.
func (g *Gate) IsGlobalAdmin(user *models.User) bool {
	return user != nil && user.IsAdmin()
}

// RoleInGroup looks up the user's single membership row in a group.
// The second return value is false when no membership exists.
func (g *Gate) RoleInGroup(userID, groupID uint) (models.Role, bool) {
	var m models.GroupMembership
	err := g.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&m).Error
	if err != nil {
		return "", false
	}
	return m.Role(), true
}

// CanManageGroup allows admins and the group creator.
func (g *Gate) CanManageGroup(user *models.User, group *models.Group) bool {
	if g.IsGlobalAdmin(user) {
		return true
	}
	return user != nil && group != nil && user.ID == group.CreatedBy
}

// CanAddMember allows admins and the group's chef.
func (g *Gate) CanAddMember(user *models.User, group *models.Group) bool {
	if g.IsGlobalAdmin(user) {
		return true
	}
	if user == nil || group == nil {
		return false
	}
	role, ok := g.RoleInGroup(user.ID, group.ID)
	return ok && role == models.RoleChef
}

// CanRemoveMember decides whether the actor may act on the target's
// membership at all. What happens to the membership is a separate decision,
// see RemovalOutcome.
func (g *Gate) CanRemoveMember(actor *models.User, targetID uint, group *models.Group) bool {
	if g.IsGlobalAdmin(actor) {
		return true
	}
	if actor == nil || group == nil {
		return false
	}
	return actor.ID == group.CreatedBy && targetID != group.CreatedBy
}

// Outcome is what a removal request does to a membership row.
type Outcome int

const (
	// OutcomeRefuse leaves the membership untouched.
	OutcomeRefuse Outcome = iota
	// OutcomeDemote rewrites the role to membre, keeping the row.
	OutcomeDemote
	// OutcomeDelete removes the membership row.
	OutcomeDelete
)

// RemovalOutcome maps the target's membership role to the action taken when a
// removal is requested. Treasurers and messengers are demoted instead of
// removed; plain members are removed; a chef can only be removed by an admin.
func RemovalOutcome(actorIsAdmin bool, role models.Role) Outcome {
	switch role {
	case models.RoleTreasurer, models.RoleMessenger:
		return OutcomeDemote
	case models.RoleMember:
		return OutcomeDelete
	case models.RoleChef:
		if actorIsAdmin {
			return OutcomeDelete
		}
		return OutcomeRefuse
	}
	return OutcomeRefuse
}

// CanCreateDiscussion requires the messager role in the target group.
func (g *Gate) CanCreateDiscussion(userID, groupID uint) bool {
	role, ok := g.RoleInGroup(userID, groupID)
	return ok && role == models.RoleMessenger
}

// CanEditMindMap requires the chef or trésorier role in the group.
func (g *Gate) CanEditMindMap(userID, groupID uint) bool {
	role, ok := g.RoleInGroup(userID, groupID)
	return ok && (role == models.RoleChef || role == models.RoleTreasurer)
}

// CanAccessDiscussion gates message reads: the discussion's creator, its
// designated admin, or any member of its group.
func (g *Gate) CanAccessDiscussion(userID uint, d *models.Discussion) bool {
	if d == nil {
		return false
	}
	if userID == d.CreatedBy || userID == d.AdminID {
		return true
	}
	_, member := g.RoleInGroup(userID, d.GroupID)
	return member
}

// CanSendMessage gates message writes: only the discussion's creator or its
// designated admin. Deliberately narrower than CanAccessDiscussion; other
// group members read the thread but do not take part in it.
func (g *Gate) CanSendMessage(userID uint, d *models.Discussion) bool {
	return d != nil && (userID == d.CreatedBy || userID == d.AdminID)
}

// CanAddressRecipient validates the recipient of a new discussion: a global
// admin always qualifies; when the creator is itself an admin, any user
// holding the messager role in some group also qualifies.
func (g *Gate) CanAddressRecipient(creator *models.User, recipient *models.User) bool {
	if recipient == nil {
		return false
	}
	if recipient.IsAdmin() {
		return true
	}
	if !g.IsGlobalAdmin(creator) {
		return false
	}
	var count int64
	err := g.db.Model(&models.GroupMembership{}).
		Where("user_id = ? AND role_in_group = ?", recipient.ID, string(models.RoleMessenger)).
		Count(&count).Error
	return err == nil && count > 0
}

// LoadUser fetches a user with their rank preloaded, for use as the explicit
// identity passed into the predicates above.
func (g *Gate) LoadUser(userID uint) (*models.User, error) {
	var u models.User
	if err := g.db.Preload("Rank").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
