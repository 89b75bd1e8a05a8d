package db

import (
	"errors"

	"github.com/mlegall/assohub/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// rank seed rows. chef_de_groupe, trésorier and messager are legacy global
// ranks kept for rows imported from the previous system; the application only
// assigns admin and membre.
var defaultRanks = []models.Rank{
	{Name: "admin", Description: "Administrateur de l'association", Level: 100},
	{Name: "chef_de_groupe", Description: "Chef de groupe (legacy)", Level: 50},
	{Name: "trésorier", Description: "Trésorier (legacy)", Level: 30},
	{Name: "messager", Description: "Messager (legacy)", Level: 20},
	{Name: "membre", Description: "Membre", Level: 0},
}

// Seed inserts the rank reference data and a bootstrap admin account.
// Idempotent: running it twice adds nothing.
func Seed(conn *gorm.DB) error {
	for _, r := range defaultRanks {
		var existing models.Rank
		err := conn.Where("name = ?", r.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := conn.Create(&r).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return seedAdmin(conn)
}

// seedAdmin creates the initial admin user if no user named "admin" exists.
func seedAdmin(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var adminRank models.Rank
	if err := conn.Where("name = ?", models.RankAdmin).First(&adminRank).Error; err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Username:     "admin",
		PasswordHash: string(hashed),
		FirstName:    "Super",
		LastName:     "Admin",
		Age:          30,
		RankID:       &adminRank.ID,
	}
	return conn.Create(&admin).Error
}
