package entity

import (
	"time"

	"github.com/google/uuid"
)

// conversationNamespace seeds the deterministic conversation ids.
var conversationNamespace = uuid.MustParse("6f1c3d2e-8b7a-4c59-9e21-5a0d4b3c2f10")

// ConversationID derives the id of the conversation between a and b. Both
// orders yield the same id so the store can key the rollup by pair.
func ConversationID(a, b string) string {
	return uuid.NewSHA1(conversationNamespace, []byte(PairKey(a, b))).String()
}

// Conversation is the per-pair rollup. It is derived from messages and never
// the source of truth for content.
type Conversation struct {
	ID               string    `json:"id" firestore:"id" bson:"_id"`
	Participants     []string  `json:"participants" firestore:"participants" bson:"participants"`
	ParticipantRoles []Role    `json:"participant_roles" firestore:"participantRoles" bson:"participantRoles"`
	LastMessage      string    `json:"last_message" firestore:"lastMessage" bson:"lastMessage"`
	LastMessageID    string    `json:"last_message_id" firestore:"lastMessageId" bson:"lastMessageId"`
	LastSenderID     string    `json:"last_sender_id" firestore:"lastSenderId" bson:"lastSenderId"`
	LastMessageAt    time.Time `json:"last_message_at" firestore:"lastMessageAt" bson:"lastMessageAt"`
	UnreadCount      int       `json:"unread_count" firestore:"unreadCount" bson:"unreadCount"`
	UnreadFor        string    `json:"unread_for,omitempty" firestore:"unreadFor" bson:"unreadFor"`
	CreatedAt        time.Time `json:"created_at" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updated_at" firestore:"updatedAt" bson:"updatedAt"`
}

// NewConversation starts the rollup for the pair of msg with msg as its
// first entry.
func NewConversation(msg *Message, now time.Time) *Conversation {
	pair := SortedPair(msg.SenderID, msg.RecipientID)
	roles := []Role{msg.SenderRole, msg.RecipientRole}
	if pair[0] != msg.SenderID {
		roles = []Role{msg.RecipientRole, msg.SenderRole}
	}

	conv := &Conversation{
		ID:               ConversationID(msg.SenderID, msg.RecipientID),
		Participants:     []string{pair[0], pair[1]},
		ParticipantRoles: roles,
		CreatedAt:        now,
	}
	conv.Apply(msg, now)
	return conv
}

// Apply folds msg into the rollup: the recipient owns the unread balance,
// which grows while it keeps receiving and restarts at one when the
// direction flips. A message older than the current preview only counts
// toward the balance.
func (c *Conversation) Apply(msg *Message, now time.Time) {
	if !msg.CreatedAt.Before(c.LastMessageAt) {
		c.LastMessage = msg.Preview()
		c.LastMessageID = msg.ID
		c.LastSenderID = msg.SenderID
		c.LastMessageAt = msg.CreatedAt
	}
	c.UpdatedAt = now

	if c.UnreadFor == msg.RecipientID {
		c.UnreadCount++
	} else {
		c.UnreadCount = 1
		c.UnreadFor = msg.RecipientID
	}
}

// ResetUnread clears the balance when readerID owns it.
func (c *Conversation) ResetUnread(readerID string, now time.Time) bool {
	if c.UnreadFor != readerID {
		return false
	}
	c.UnreadCount = 0
	c.UnreadFor = ""
	c.UpdatedAt = now
	return true
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// RoleOf returns the stored role of participant userID.
func (c *Conversation) RoleOf(userID string) Role {
	for i, p := range c.Participants {
		if p == userID && i < len(c.ParticipantRoles) {
			return c.ParticipantRoles[i]
		}
	}
	return ""
}

// UnreadCountFor returns the unread count as seen by userID.
func (c *Conversation) UnreadCountFor(userID string) int {
	if c.UnreadFor == userID {
		return c.UnreadCount
	}
	return 0
}
