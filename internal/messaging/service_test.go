package messaging

import (
	"errors"
	"testing"
	"time"

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
	if err := d.AutoMigrate(&models.Rank{}, &models.User{}, &models.Group{}, &models.GroupMembership{}, &models.Discussion{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func seedUser(t *testing.T, d *gorm.DB, username, rank string) *models.User {
	t.Helper()
	var r models.Rank
	if err := d.Where("name = ?", rank).First(&r).Error; err != nil {
		r = models.Rank{Name: rank}
		if err := d.Create(&r).Error; err != nil {
			t.Fatalf("rank: %v", err)
		}
	}
	u := models.User{Username: username, FirstName: username, LastName: "Test", PasswordHash: "x", RankID: &r.ID, Rank: &r}
	if err := d.Create(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return &u
}

func seedGroupWithMessenger(t *testing.T, d *gorm.DB, creator, messenger *models.User) *models.Group {
	t.Helper()
	grp := models.Group{Name: "Alpha-" + t.Name(), CreatedBy: creator.ID}
	if err := d.Create(&grp).Error; err != nil {
		t.Fatalf("group: %v", err)
	}
	d.Create(&models.GroupMembership{UserID: creator.ID, GroupID: grp.ID, RoleInGroup: "chef"})
	d.Create(&models.GroupMembership{UserID: messenger.ID, GroupID: grp.ID, RoleInGroup: "messager"})
	return &grp
}

func TestCreateDiscussionRules(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	admin := seedUser(t, d, "alice", "admin")
	messenger := seedUser(t, d, "bob", "membre")
	plain := seedUser(t, d, "carol", "membre")
	grp := seedGroupWithMessenger(t, d, admin, messenger)
	d.Create(&models.GroupMembership{UserID: plain.ID, GroupID: grp.ID, RoleInGroup: "membre"})

	if _, err := svc.CreateDiscussion(plain, grp.ID, admin.ID, "nope"); !errors.Is(err, ErrNotMessenger) {
		t.Fatalf("plain member should not create discussions, got %v", err)
	}
	if _, err := svc.CreateDiscussion(messenger, grp.ID, plain.ID, "nope"); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("non-admin recipient should be rejected, got %v", err)
	}
	disc, err := svc.CreateDiscussion(messenger, grp.ID, admin.ID, "budget 2026")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if disc.CreatedBy != messenger.ID || disc.AdminID != admin.ID {
		t.Fatalf("unexpected discussion endpoints: %+v", disc)
	}
}

func TestPollCursorAndOrdering(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	admin := seedUser(t, d, "alice", "admin")
	messenger := seedUser(t, d, "bob", "membre")
	grp := seedGroupWithMessenger(t, d, admin, messenger)

	disc, err := svc.CreateDiscussion(messenger, grp.ID, admin.ID, "planning")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base := time.Now().UTC().Add(-time.Hour)
	for i, content := range []string{"one", "two", "three"} {
		d.Create(&models.Message{
			SenderID: messenger.ID, GroupID: grp.ID, DiscussionID: disc.ID,
			Content: content, SentAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	full, err := svc.Poll(admin.ID, disc.ID, 0)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if full.DiscussionTitle != "planning" || len(full.Messages) != 3 {
		t.Fatalf("expected full thread, got %+v", full)
	}
	for i := 1; i < len(full.Messages); i++ {
		if full.Messages[i].ID <= full.Messages[i-1].ID {
			t.Fatalf("messages out of order: %+v", full.Messages)
		}
	}

	cursor := full.Messages[1].ID
	tail, err := svc.Poll(admin.ID, disc.ID, cursor)
	if err != nil {
		t.Fatalf("poll after: %v", err)
	}
	if len(tail.Messages) != 1 || tail.Messages[0].Content != "three" {
		t.Fatalf("cursor poll should return only newer messages, got %+v", tail.Messages)
	}
	for _, m := range tail.Messages {
		if m.ID <= cursor {
			t.Fatalf("poll returned id %d <= cursor %d", m.ID, cursor)
		}
	}
}

func TestPollAccessAndSendAsymmetry(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	admin := seedUser(t, d, "alice", "admin")
	messenger := seedUser(t, d, "bob", "membre")
	bystander := seedUser(t, d, "carol", "membre")
	outsider := seedUser(t, d, "dave", "membre")
	grp := seedGroupWithMessenger(t, d, admin, messenger)
	d.Create(&models.GroupMembership{UserID: bystander.ID, GroupID: grp.ID, RoleInGroup: "membre"})

	disc, _ := svc.CreateDiscussion(messenger, grp.ID, admin.ID, "asym")

	if _, err := svc.Poll(bystander.ID, disc.ID, 0); err != nil {
		t.Fatalf("group member should read the thread: %v", err)
	}
	if _, err := svc.Poll(outsider.ID, disc.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider poll should be forbidden, got %v", err)
	}
	if _, err := svc.Send(bystander, disc.ID, "hi"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("bystander send should be forbidden, got %v", err)
	}
	if _, err := svc.Send(messenger, disc.ID, ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty message should be rejected, got %v", err)
	}
	if _, err := svc.Poll(admin.ID, 9999, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing discussion should be not found, got %v", err)
	}
}

// End-to-end: admin creates a group, a messenger is added, opens a
// discussion towards the admin and says hello; the admin polls it.
func TestHelloScenario(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	admin := seedUser(t, d, "alice", "admin")
	messenger := seedUser(t, d, "bob", "membre")
	grp := seedGroupWithMessenger(t, d, admin, messenger)

	disc, err := svc.CreateDiscussion(messenger, grp.ID, admin.ID, "hello thread")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sent, err := svc.Send(messenger, disc.ID, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !sent.FromCurrentUser {
		t.Fatal("sender's own view should be from_current_user")
	}

	thread, err := svc.Poll(admin.ID, disc.ID, 0)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(thread.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(thread.Messages))
	}
	got := thread.Messages[0]
	if got.Content != "hello" || got.FromCurrentUser {
		t.Fatalf("unexpected message view: %+v", got)
	}
	if got.SenderName != "bob Test" {
		t.Fatalf("unexpected sender name %q", got.SenderName)
	}
}

func TestRecipientChoices(t *testing.T) {
	d := setupDB(t)
	svc := NewService(d, policy.NewGate(d))
	admin := seedUser(t, d, "alice", "admin")
	messenger := seedUser(t, d, "bob", "membre")
	seedUser(t, d, "carol", "membre")
	seedGroupWithMessenger(t, d, admin, messenger)

	// Non-admin creator sees only admins.
	choices, err := svc.RecipientChoices(messenger)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if len(choices) != 1 || choices[0].ID != admin.ID {
		t.Fatalf("messenger should see admins only, got %+v", choices)
	}

	// Admin creator additionally sees every messager.
	choices, err = svc.RecipientChoices(admin)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	ids := map[uint]bool{}
	for _, c := range choices {
		if ids[c.ID] {
			t.Fatalf("duplicate recipient %d", c.ID)
		}
		ids[c.ID] = true
	}
	if !ids[admin.ID] || !ids[messenger.ID] || len(ids) != 2 {
		t.Fatalf("admin should see admins plus messagers, got %+v", choices)
	}
}
