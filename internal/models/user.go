package models

import "time"

// Rank is a global privilege level. Static reference data, seeded once.
type Rank struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:50;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	Level       int    `gorm:"not null;default:0"`
}

// User represents an account in the association.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	FirstName string `gorm:"size:50"`
	LastName  string `gorm:"size:50"`
	Age       int

	Email    *string `gorm:"size:120;uniqueIndex"`
	Phone    string  `gorm:"size:20"`
	Language string  `gorm:"size:5;default:fr"`
	Theme    string  `gorm:"size:10;default:light"`

	ProfilePictureURL string `gorm:"size:255"`

	RankID *uint
	Rank   *Rank `gorm:"foreignKey:RankID"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// FullName renders "First Last" for member lists and message payloads.
func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether the user holds the global admin rank.
// Rank must be preloaded; a user without a rank is never an admin.
func (u User) IsAdmin() bool {
	return u.Rank != nil && u.Rank.Name == RankAdmin
}
