package models

import "time"

// UserSession is advisory bookkeeping of logged-in sessions. Authentication
// itself rides on the signed cookie; these rows only exist so an operator can
// see (and the sweeper can expire) concurrent logins.
type UserSession struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"not null;index"`
	SessionToken string `gorm:"size:255;uniqueIndex;not null"`
	IPAddress    string `gorm:"size:45"`
	CreatedAt    time.Time
	ExpiresAt    time.Time

	User *User `gorm:"foreignKey:UserID"`
}

func (UserSession) TableName() string { return "user_sessions" }

// AuditLog is an append-only action record. The table is part of the schema
// for operator tooling; no application code path writes to it yet.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    *uint  `gorm:"index"`
	Action    string `gorm:"size:255;not null"`
	Details   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (AuditLog) TableName() string { return "audit_logs" }
