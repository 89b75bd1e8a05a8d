// Package messaging implements discussions and their polled message threads.
//
// Access is asymmetric on purpose: any member of the discussion's group may
// read the thread, but only the discussion's creator and its designated admin
// may write to it.
package messaging

import (
	"errors"
	"time"

	"github.com/mlegall/assohub/internal/models"
	"github.com/mlegall/assohub/internal/policy"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("discussion not found")
	ErrForbidden        = errors.New("access denied")
	ErrNotMessenger     = errors.New("not a messenger in this group")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrEmptyMessage     = errors.New("empty message")
)

// sentAtLayout matches what the polling frontend renders verbatim.
const sentAtLayout = "02/01/2006 15:04"

// Service handles discussion and message operations.
type Service struct {
	db   *gorm.DB
	gate *policy.Gate
}

func NewService(db *gorm.DB, gate *policy.Gate) *Service {
	return &Service{db: db, gate: gate}
}

// MessageView is the wire shape of one message in a poll response.
type MessageView struct {
	ID              uint   `json:"id"`
	Content         string `json:"content"`
	SentAt          string `json:"sent_at"`
	FromCurrentUser bool   `json:"from_current_user"`
	SenderName      string `json:"sender_name"`
}

// Thread is the poll response: the discussion title plus messages after the cursor.
type Thread struct {
	DiscussionTitle string        `json:"discussion_title"`
	Messages        []MessageView `json:"messages"`
}

// CreateDiscussion opens a thread from a group messenger towards a recipient.
// The creator must hold the messager role in the group; the recipient must be
// a global admin, widened to any messager when the creator is an admin.
func (s *Service) CreateDiscussion(creator *models.User, groupID, recipientID uint, title string) (*models.Discussion, error) {
	if !s.gate.CanCreateDiscussion(creator.ID, groupID) {
		return nil, ErrNotMessenger
	}
	var recipient models.User
	if err := s.db.Preload("Rank").First(&recipient, recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRecipient
		}
		return nil, err
	}
	if !s.gate.CanAddressRecipient(creator, &recipient) {
		return nil, ErrInvalidRecipient
	}

	d := models.Discussion{
		GroupID:   groupID,
		Title:     title,
		CreatedBy: creator.ID,
		AdminID:   recipient.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListFor returns the discussions visible to a user, newest first: threads
// they created, threads addressed to them, and threads of groups where they
// hold the messager role.
func (s *Service) ListFor(user *models.User) ([]models.Discussion, error) {
	groupIDs, err := s.messengerGroupIDs(user.ID)
	if err != nil {
		return nil, err
	}

	q := s.db.Preload("Group").Preload("Creator").Preload("Admin").
		Order("created_at DESC")
	if len(groupIDs) > 0 {
		q = q.Where("created_by = ? OR admin_id = ? OR group_id IN ?", user.ID, user.ID, groupIDs)
	} else {
		q = q.Where("created_by = ? OR admin_id = ?", user.ID, user.ID)
	}

	var out []models.Discussion
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MessengerGroups returns the groups where the user holds the messager role,
// i.e. the groups they may open discussions for.
func (s *Service) MessengerGroups(userID uint) ([]models.Group, error) {
	ids, err := s.messengerGroupIDs(userID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	var groups []models.Group
	if err := s.db.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Service) messengerGroupIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.GroupMembership{}).
		Where("user_id = ? AND role_in_group = ?", userID, string(models.RoleMessenger)).
		Pluck("group_id", &ids).Error
	return ids, err
}

// RecipientChoices lists the users a creator may address: all admins, plus
// every messager of any group when the creator is an admin. Deduplicated.
func (s *Service) RecipientChoices(creator *models.User) ([]models.User, error) {
	var adminRank models.Rank
	if err := s.db.Where("name = ?", models.RankAdmin).First(&adminRank).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var admins []models.User
	if err := s.db.Where("rank_id = ?", adminRank.ID).Find(&admins).Error; err != nil {
		return nil, err
	}
	if !s.gate.IsGlobalAdmin(creator) {
		return admins, nil
	}

	var messengerIDs []uint
	if err := s.db.Model(&models.GroupMembership{}).
		Where("role_in_group = ?", string(models.RoleMessenger)).
		Distinct().Pluck("user_id", &messengerIDs).Error; err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(admins))
	for _, a := range admins {
		seen[a.ID] = true
	}
	if len(messengerIDs) > 0 {
		var messengers []models.User
		if err := s.db.Where("id IN ?", messengerIDs).Find(&messengers).Error; err != nil {
			return nil, err
		}
		for _, m := range messengers {
			if !seen[m.ID] {
				seen[m.ID] = true
				admins = append(admins, m)
			}
		}
	}
	return admins, nil
}

// Poll returns the discussion title and every message with an id strictly
// greater than afterID, ordered by send time ascending. afterID zero means
// the full thread.
func (s *Service) Poll(userID, discussionID, afterID uint) (*Thread, error) {
	var d models.Discussion
	if err := s.db.First(&d, discussionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.gate.CanAccessDiscussion(userID, &d) {
		return nil, ErrForbidden
	}

	q := s.db.Preload("Sender").Where("discussion_id = ?", d.ID)
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	var msgs []models.Message
	if err := q.Order("sent_at ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}

	thread := &Thread{DiscussionTitle: d.Title, Messages: make([]MessageView, 0, len(msgs))}
	for _, m := range msgs {
		thread.Messages = append(thread.Messages, viewOf(&m, userID))
	}
	return thread, nil
}

// Send appends a message to a discussion. Only the discussion's creator or
// its designated admin may send; see the package comment.
func (s *Service) Send(sender *models.User, discussionID uint, content string) (*MessageView, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	var d models.Discussion
	if err := s.db.First(&d, discussionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.gate.CanSendMessage(sender.ID, &d) {
		return nil, ErrForbidden
	}

	msg := models.Message{
		SenderID:     sender.ID,
		GroupID:      d.GroupID,
		DiscussionID: d.ID,
		Content:      content,
		SentAt:       time.Now().UTC(),
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	msg.Sender = sender
	v := viewOf(&msg, sender.ID)
	return &v, nil
}

func viewOf(m *models.Message, currentUserID uint) MessageView {
	name := ""
	if m.Sender != nil {
		name = m.Sender.FullName()
	}
	return MessageView{
		ID:              m.ID,
		Content:         m.Content,
		SentAt:          m.SentAt.Format(sentAtLayout),
		FromCurrentUser: m.SenderID == currentUserID,
		SenderName:      name,
	}
}
