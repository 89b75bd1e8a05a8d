// Package mindmap stores one collaborative mind-map document per group.
package mindmap

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"gorm.io/gorm"
)

var (
	ErrForbidden   = errors.New("access denied")
	ErrInvalidJSON = errors.New("invalid mind map document")
	ErrNotFound    = errors.New("group not found")
)

const defaultTitle = "Carte Mentale"

// Service reads and writes the per-group mind-map documents.
type Service struct {
	db   *gorm.DB
	gate *policy.Gate
}

func NewService(db *gorm.DB, gate *policy.Gate) *Service {
	return &Service{db: db, gate: gate}
}

// seedDoc builds the initial document for a group: a single root node carrying
// the group's name, in the shape the frontend editor loads directly.
func seedDoc(groupName string) (string, error) {
	doc := map[string]any{
		"nodeData": map[string]any{
			"id":       "root",
			"topic":    groupName,
			"children": []any{},
			"root":     true,
		},
		"linkData": map[string]any{},
		"noteData": map[string]any{},
		"expand":   map[string]any{},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("seed document: %w", err)
	}
	return string(raw), nil
}

// GetOrCreate returns the group's mind map, creating the seed document on
// first access. The unique index on group_id makes the loser of two
// concurrent first visits fail its insert instead of double-seeding.
func (s *Service) GetOrCreate(groupID uint) (*models.MindMap, error) {
	var m models.MindMap
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).First(&m).Error; err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var grp models.Group
		if err := tx.First(&grp, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		data, err := seedDoc(grp.Name)
		if err != nil {
			return err
		}
		m = models.MindMap{GroupID: groupID, Title: defaultTitle, Data: data}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Save replaces the group's document wholesale, last writer wins. The caller
// must hold the chef or trésorier role in the group; the payload must be
// valid JSON but is otherwise opaque.
func (s *Service) Save(userID, groupID uint, raw []byte) error {
	if !s.gate.CanEditMindMap(userID, groupID) {
		return ErrForbidden
	}
	if !json.Valid(raw) {
		return ErrInvalidJSON
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var m models.MindMap
		if err := tx.Where("group_id = ?", groupID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Model(&m).Update("data", string(raw)).Error
	})
}
