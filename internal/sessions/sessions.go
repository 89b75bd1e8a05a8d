// Package sessions tracks logged-in sessions as database rows. These rows are
// advisory: the auth cookie authenticates requests on its own, the table only
// records concurrent logins so they can be inspected and expired.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mlegall/assohub/internal/models"
	"gorm.io/gorm"
)

// Service issues, revokes and sweeps session rows.
type Service struct {
	db       *gorm.DB
	lifetime time.Duration
}

// NewService creates a session service; lifetimeDays drives row expiry.
func NewService(db *gorm.DB, lifetimeDays int) *Service {
	if lifetimeDays <= 0 {
		lifetimeDays = 30
	}
	return &Service{db: db, lifetime: time.Duration(lifetimeDays) * 24 * time.Hour}
}

// Issue records a new login with a random 256-bit token and the client address.
func (s *Service) Issue(userID uint, ip string) (*models.UserSession, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	now := time.Now().UTC()
	row := models.UserSession{
		UserID:       userID,
		SessionToken: base64.RawURLEncoding.EncodeToString(buf),
		IPAddress:    ip,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.lifetime),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// RevokeAll deletes every session row for a user (logout, account deletion).
func (s *Service) RevokeAll(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.UserSession{}).Error
}

// SweepExpired deletes rows past their expiry and returns how many went.
func (s *Service) SweepExpired() (int64, error) {
	res := s.db.Where("expires_at < ?", time.Now().UTC()).Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}
