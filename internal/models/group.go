package models

import "time"

// Group is a project of the association. The creator normally holds the "chef"
// membership, but the data layer does not enforce that invariant.
type Group struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	CreatedBy   uint
	CreatedAt   time.Time

	Creator     *User             `gorm:"foreignKey:CreatedBy"`
	Memberships []GroupMembership `gorm:"foreignKey:GroupID"`
}

// GroupMembership joins a user to a group with a role. At most one row per
// (user, group) pair; enforced by the handlers, not by a unique constraint.
type GroupMembership struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"not null;index"`
	GroupID     uint `gorm:"not null;index"`
	JoinedAt    time.Time
	RoleInGroup string `gorm:"size:20;default:membre"`

	User  *User  `gorm:"foreignKey:UserID"`
	Group *Group `gorm:"foreignKey:GroupID"`
}

// Role returns the membership role mapped onto the closed role set.
func (m *GroupMembership) Role() Role {
	return NormalizeRole(m.RoleInGroup)
}

func (GroupMembership) TableName() string { return "group_memberships" }
