package mindmap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := d.AutoMigrate(&models.Rank{}, &models.User{}, &models.Group{}, &models.GroupMembership{}, &models.MindMap{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func seedGroup(t *testing.T, d *gorm.DB, name string) *models.Group {
	t.Helper()
	grp := models.Group{Name: name, CreatedBy: 1}
	if err := d.Create(&grp).Error; err != nil {
		t.Fatalf("group: %v", err)
	}
	return &grp
}

func addMember(t *testing.T, d *gorm.DB, userID, groupID uint, role string) {
	t.Helper()
	if err := d.Create(&models.GroupMembership{UserID: userID, GroupID: groupID, RoleInGroup: role}).Error; err != nil {
		t.Fatalf("membership: %v", err)
	}
}

func TestGetOrCreateSeedsOnce(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	grp := seedGroup(t, d, "Troupe Scoute")

	first, err := svc.GetOrCreate(grp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.Title != "Carte Mentale" {
		t.Fatalf("unexpected title %q", first.Title)
	}

	var doc struct {
		NodeData struct {
			ID    string `json:"id"`
			Topic string `json:"topic"`
			Root  bool   `json:"root"`
		} `json:"nodeData"`
	}
	if err := json.Unmarshal([]byte(first.Data), &doc); err != nil {
		t.Fatalf("seed doc not valid JSON: %v", err)
	}
	if doc.NodeData.ID != "root" || doc.NodeData.Topic != "Troupe Scoute" || !doc.NodeData.Root {
		t.Fatalf("unexpected seed root node: %+v", doc.NodeData)
	}

	second, err := svc.GetOrCreate(grp.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("lazy create must be idempotent: %d vs %d", second.ID, first.ID)
	}
	var count int64
	d.Model(&models.MindMap{}).Where("group_id = ?", grp.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected one document, got %d", count)
	}
}

func TestOneDocumentPerGroupEnforced(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	grp := seedGroup(t, d, "Alpha")

	if _, err := svc.GetOrCreate(grp.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	dup := models.MindMap{GroupID: grp.ID, Title: "Carte Mentale", Data: "{}"}
	if err := d.Create(&dup).Error; err == nil {
		t.Fatal("a second document for the same group must violate the unique index")
	}
}

func TestGetOrCreateMissingGroup(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	if _, err := svc.GetOrCreate(404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveGatedByRole(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	grp := seedGroup(t, d, "Alpha")
	addMember(t, d, 1, grp.ID, "chef")
	addMember(t, d, 2, grp.ID, "trésorier")
	addMember(t, d, 3, grp.ID, "membre")

	original, err := svc.GetOrCreate(grp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	payload := []byte(`{"nodeData":{"id":"root","topic":"Alpha","children":[{"id":"n1","topic":"budget"}],"root":true},"linkData":{},"noteData":{},"expand":{}}`)

	if err := svc.Save(3, grp.ID, payload); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain member save should be forbidden, got %v", err)
	}
	if err := svc.Save(9, grp.ID, payload); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider save should be forbidden, got %v", err)
	}

	var after models.MindMap
	d.Where("group_id = ?", grp.ID).First(&after)
	if after.Data != original.Data {
		t.Fatal("forbidden save must leave the document unchanged")
	}

	for _, editor := range []uint{1, 2} {
		if err := svc.Save(editor, grp.ID, payload); err != nil {
			t.Fatalf("editor %d save: %v", editor, err)
		}
	}
	d.Where("group_id = ?", grp.ID).First(&after)
	if after.Data != string(payload) {
		t.Fatalf("document not replaced: %q", after.Data)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	grp := seedGroup(t, d, "Alpha")
	addMember(t, d, 1, grp.ID, "chef")
	if _, err := svc.GetOrCreate(grp.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := svc.Save(1, grp.ID, []byte(`{"nodeData":`)); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
}
