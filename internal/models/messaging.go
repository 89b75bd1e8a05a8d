package models

import "time"

// Discussion is a one-off thread opened by a group's messenger towards a
// chosen admin. Recipient rank is validated at creation time only.
type Discussion struct {
	ID        uint   `gorm:"primaryKey"`
	GroupID   uint   `gorm:"not null;index"`
	Title     string `gorm:"size:255;not null"`
	CreatedBy uint   `gorm:"not null"`
	AdminID   uint   `gorm:"not null"`
	CreatedAt time.Time

	Group   *Group `gorm:"foreignKey:GroupID"`
	Creator *User  `gorm:"foreignKey:CreatedBy"`
	Admin   *User  `gorm:"foreignKey:AdminID"`
}

// Message belongs to a discussion, and redundantly to the discussion's group.
type Message struct {
	ID           uint   `gorm:"primaryKey"`
	SenderID     uint   `gorm:"not null;index"`
	GroupID      uint   `gorm:"not null;index"`
	DiscussionID uint   `gorm:"not null;index"`
	Content      string `gorm:"type:text;not null"`
	SentAt       time.Time
	EditedAt     *time.Time

	Sender    *User             `gorm:"foreignKey:SenderID"`
	Files     []MessageFile     `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// MessageFile is an attachment reference stored next to a message.
type MessageFile struct {
	ID         uint   `gorm:"primaryKey"`
	MessageID  uint   `gorm:"not null;index"`
	FileURL    string `gorm:"type:text;not null"`
	UploadedAt time.Time
}

// MessageReaction is an emoji reaction from one user on one message.
type MessageReaction struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null"`
	MessageID uint   `gorm:"not null;index"`
	Emoji     string `gorm:"size:10;not null"`
	ReactedAt time.Time
}
