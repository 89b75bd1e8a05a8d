package policy

import (
	"testing"

	"github.com/mlegall/assohub/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupGateDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := d.AutoMigrate(&models.Rank{}, &models.User{}, &models.Group{}, &models.GroupMembership{}, &models.Discussion{}); err != nil {
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
	u := models.User{Username: username, PasswordHash: "x", RankID: &r.ID, Rank: &r}
	if err := d.Create(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return &u
}

func addMembership(t *testing.T, d *gorm.DB, user *models.User, group *models.Group, role string) {
	t.Helper()
	m := models.GroupMembership{UserID: user.ID, GroupID: group.ID, RoleInGroup: role}
	if err := d.Create(&m).Error; err != nil {
		t.Fatalf("membership: %v", err)
	}
}

func TestCanCreateDiscussionRequiresMessagerRow(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	chef := seedUser(t, d, "chef", "membre")
	grp := models.Group{Name: "Alpha", CreatedBy: chef.ID}
	d.Create(&grp)

	cases := []struct {
		role string
		want bool
	}{
		{"chef", false},
		{"trésorier", false},
		{"messager", true},
		{"membre", false},
	}
	for _, tc := range cases {
		u := seedUser(t, d, "user-"+tc.role, "membre")
		addMembership(t, d, u, &grp, tc.role)
		if got := g.CanCreateDiscussion(u.ID, grp.ID); got != tc.want {
			t.Errorf("role %s: CanCreateDiscussion = %v, want %v", tc.role, got, tc.want)
		}
	}

	outsider := seedUser(t, d, "outsider", "membre")
	if g.CanCreateDiscussion(outsider.ID, grp.ID) {
		t.Error("user without membership must not create discussions")
	}
}

func TestCanEditMindMap(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	creator := seedUser(t, d, "creator", "membre")
	grp := models.Group{Name: "Beta", CreatedBy: creator.ID}
	d.Create(&grp)

	cases := []struct {
		role string
		want bool
	}{
		{"chef", true},
		{"trésorier", true},
		{"messager", false},
		{"membre", false},
	}
	for _, tc := range cases {
		u := seedUser(t, d, "mm-"+tc.role, "membre")
		addMembership(t, d, u, &grp, tc.role)
		if got := g.CanEditMindMap(u.ID, grp.ID); got != tc.want {
			t.Errorf("role %s: CanEditMindMap = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestRemovalOutcome(t *testing.T) {
	cases := []struct {
		name    string
		isAdmin bool
		role    models.Role
		want    Outcome
	}{
		{"treasurer demoted", false, models.RoleTreasurer, OutcomeDemote},
		{"messenger demoted", false, models.RoleMessenger, OutcomeDemote},
		{"member deleted", false, models.RoleMember, OutcomeDelete},
		{"chef refused for non-admin", false, models.RoleChef, OutcomeRefuse},
		{"chef deleted by admin", true, models.RoleChef, OutcomeDelete},
		{"treasurer demoted even by admin", true, models.RoleTreasurer, OutcomeDemote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RemovalOutcome(tc.isAdmin, tc.role); got != tc.want {
				t.Fatalf("RemovalOutcome(%v, %s) = %v, want %v", tc.isAdmin, tc.role, got, tc.want)
			}
		})
	}
}

func TestCanRemoveMember(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	admin := seedUser(t, d, "root", "admin")
	creator := seedUser(t, d, "creator", "membre")
	member := seedUser(t, d, "member", "membre")
	grp := models.Group{Name: "Gamma", CreatedBy: creator.ID}
	d.Create(&grp)

	if !g.CanRemoveMember(admin, creator.ID, &grp) {
		t.Error("admin may remove anyone, including the creator")
	}
	if !g.CanRemoveMember(creator, member.ID, &grp) {
		t.Error("creator may remove a regular member")
	}
	if g.CanRemoveMember(creator, creator.ID, &grp) {
		t.Error("creator may not remove themselves without admin rank")
	}
	if g.CanRemoveMember(member, creator.ID, &grp) {
		t.Error("regular member may not remove anyone")
	}
}

func TestCanAccessVsCanSend(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	admin := seedUser(t, d, "root", "admin")
	messenger := seedUser(t, d, "msg", "membre")
	bystander := seedUser(t, d, "bystander", "membre")
	outsider := seedUser(t, d, "outsider", "membre")

	grp := models.Group{Name: "Delta", CreatedBy: admin.ID}
	d.Create(&grp)
	addMembership(t, d, messenger, &grp, "messager")
	addMembership(t, d, bystander, &grp, "membre")

	disc := models.Discussion{GroupID: grp.ID, Title: "budget", CreatedBy: messenger.ID, AdminID: admin.ID}
	d.Create(&disc)

	// Read access: creator, admin, any group member. Not outsiders.
	for _, u := range []*models.User{messenger, admin, bystander} {
		if !g.CanAccessDiscussion(u.ID, &disc) {
			t.Errorf("%s should read the discussion", u.Username)
		}
	}
	if g.CanAccessDiscussion(outsider.ID, &disc) {
		t.Error("outsider must not read the discussion")
	}

	// Send access is narrower: creator and designated admin only.
	if !g.CanSendMessage(messenger.ID, &disc) || !g.CanSendMessage(admin.ID, &disc) {
		t.Error("creator and designated admin should send")
	}
	if g.CanSendMessage(bystander.ID, &disc) {
		t.Error("group member outside the pair must not send")
	}
}

func TestCanAddressRecipient(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	admin := seedUser(t, d, "root", "admin")
	otherAdmin := seedUser(t, d, "root2", "admin")
	messenger := seedUser(t, d, "msg", "membre")
	plain := seedUser(t, d, "plain", "membre")

	grp := models.Group{Name: "Epsilon", CreatedBy: admin.ID}
	d.Create(&grp)
	addMembership(t, d, messenger, &grp, "messager")

	// Any creator may address an admin.
	if !g.CanAddressRecipient(messenger, otherAdmin) {
		t.Error("admin recipient should always be allowed")
	}
	// Non-admin creators may address only admins.
	if g.CanAddressRecipient(messenger, plain) || g.CanAddressRecipient(messenger, messenger) {
		t.Error("non-admin creator is limited to admin recipients")
	}
	// Admin creators may additionally address any messager.
	if !g.CanAddressRecipient(admin, messenger) {
		t.Error("admin creator may address a messager")
	}
	if g.CanAddressRecipient(admin, plain) {
		t.Error("plain member is never a valid recipient")
	}
}

func TestRoleInGroupNormalizesUnknownValues(t *testing.T) {
	d := setupGateDB(t)
	g := NewGate(d)
	u := seedUser(t, d, "legacy", "membre")
	grp := models.Group{Name: "Zeta", CreatedBy: u.ID}
	d.Create(&grp)
	d.Create(&models.GroupMembership{UserID: u.ID, GroupID: grp.ID, RoleInGroup: "secrétaire"})

	role, ok := g.RoleInGroup(u.ID, grp.ID)
	if !ok || role != models.RoleMember {
		t.Fatalf("unknown stored role should read as membre, got %q ok=%v", role, ok)
	}
}
