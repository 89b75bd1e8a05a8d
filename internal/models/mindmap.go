package models

import "time"

// MindMap holds one JSON document per group, created lazily on first visit.
// The document is opaque to the server: it is checked for JSON validity on
// save and otherwise stored as-is (last writer wins).
type MindMap struct {
	ID        uint   `gorm:"primaryKey"`
	GroupID   uint   `gorm:"not null;uniqueIndex"`
	Title     string `gorm:"size:255;default:Carte Mentale"`
	Data      string `gorm:"type:text;default:{}"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Group *Group `gorm:"foreignKey:GroupID"`
}

func (MindMap) TableName() string { return "mind_maps" }
