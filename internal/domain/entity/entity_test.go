package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"student", RoleStudent, true},
		{"alumni", RoleAlumni, true},
		{"admin", RoleAdmin, true},
		{"empty", Role(""), false},
		{"unknown", Role("faculty"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.IsValid())
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("alumnus")
	assert.True(t, ok)
	assert.Equal(t, RoleAlumni, r)

	_, ok = ParseRole("faculty")
	assert.False(t, ok)
}

func TestPairKey_DirectionAgnostic(t *testing.T) {
	assert.Equal(t, PairKey("b", "a"), PairKey("a", "b"))
	assert.Equal(t, ConversationID("u2", "u1"), ConversationID("u1", "u2"))
	assert.NotEqual(t, ConversationID("u1", "u2"), ConversationID("u1", "u3"))
}

func TestConnection_Transition(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	conn := &Connection{Status: ConnectionPending}

	require.True(t, conn.Transition(ConnectionAccepted, at))
	assert.Equal(t, ConnectionAccepted, conn.Status)
	require.NotNil(t, conn.AcceptedAt)
	assert.Nil(t, conn.RejectedAt)

	assert.False(t, conn.Transition(ConnectionRejected, at.Add(time.Hour)))
	assert.Equal(t, ConnectionAccepted, conn.Status)
	assert.Equal(t, at, *conn.AcceptedAt)
}

func TestStatusOf_Nil(t *testing.T) {
	assert.Equal(t, ConnectionNone, StatusOf(nil))
}

func msg(id, from, to string, at time.Time) *Message {
	return &Message{
		ID:            id,
		SenderID:      from,
		RecipientID:   to,
		SenderRole:    RoleAlumni,
		RecipientRole: RoleStudent,
		Content:       "hello " + id,
		MessageType:   MessageTypeText,
		CreatedAt:     at,
	}
}

func TestConversation_UnreadAccounting(t *testing.T) {
	now := time.Now()

	conv := NewConversation(msg("1", "A", "B", now), now)
	assert.Equal(t, "B", conv.UnreadFor)
	assert.Equal(t, 1, conv.UnreadCount)

	conv.Apply(msg("2", "B", "A", now), now)
	assert.Equal(t, "A", conv.UnreadFor)
	assert.Equal(t, 1, conv.UnreadCount)

	conv.Apply(msg("3", "A", "B", now), now)
	assert.Equal(t, "B", conv.UnreadFor)
	assert.Equal(t, 1, conv.UnreadCount)

	conv.Apply(msg("4", "A", "B", now), now)
	assert.Equal(t, 2, conv.UnreadCount)
	assert.Equal(t, "hello 4", conv.LastMessage)
	assert.Equal(t, "A", conv.LastSenderID)
}

func TestConversation_ApplyOutOfOrderKeepsNewestPreview(t *testing.T) {
	now := time.Now()
	conv := NewConversation(msg("2", "A", "B", now), now)

	conv.Apply(msg("1", "A", "B", now.Add(-time.Minute)), now)
	assert.Equal(t, "hello 2", conv.LastMessage)
	assert.Equal(t, "2", conv.LastMessageID)
	assert.True(t, conv.LastMessageAt.Equal(now))
	assert.Equal(t, 2, conv.UnreadCount)

	conv.Apply(msg("3", "B", "A", now), now)
	assert.Equal(t, "3", conv.LastMessageID, "same timestamp still replaces")
	assert.Equal(t, "A", conv.UnreadFor)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestConversation_ResetUnreadOnlyForOwner(t *testing.T) {
	now := time.Now()
	conv := NewConversation(msg("1", "A", "B", now), now)

	assert.False(t, conv.ResetUnread("A", now))
	assert.Equal(t, 1, conv.UnreadCount)

	assert.True(t, conv.ResetUnread("B", now))
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Empty(t, conv.UnreadFor)

	conv.Apply(msg("2", "A", "B", now), now)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, 1, conv.UnreadCountFor("B"))
	assert.Equal(t, 0, conv.UnreadCountFor("A"))
}

func TestNewConversation_RolesFollowSortedParticipants(t *testing.T) {
	now := time.Now()
	conv := NewConversation(msg("1", "zed", "amy", now), now)

	assert.Equal(t, []string{"amy", "zed"}, conv.Participants)
	assert.Equal(t, RoleStudent, conv.RoleOf("amy"))
	assert.Equal(t, RoleAlumni, conv.RoleOf("zed"))
	assert.Equal(t, "amy", conv.OtherParticipant("zed"))
}

func TestCursor_RoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 3, 2, 1, 123456789, time.UTC)
	c := Cursor{CreatedAt: at, ID: "msg-7"}

	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(at))
	assert.Equal(t, "msg-7", decoded.ID)

	_, err = DecodeCursor("!!not-base64")
	assert.Error(t, err)
}

func TestCursor_Ordering(t *testing.T) {
	at := time.Now()
	c := Cursor{CreatedAt: at, ID: "m"}

	assert.True(t, c.Before(msg("a", "A", "B", at)))
	assert.True(t, c.After(msg("z", "A", "B", at)))
	assert.True(t, c.Before(msg("z", "A", "B", at.Add(-time.Second))))
	assert.False(t, c.After(msg("m", "A", "B", at)))
}

func TestMessage_Preview(t *testing.T) {
	m := &Message{Attachment: &Attachment{URL: "https://cdn/x.pdf", Name: "resume.pdf"}}
	assert.Equal(t, "resume.pdf", m.Preview())
	assert.True(t, MessageTypeFile.IsUserSendable())
	assert.False(t, MessageTypeSystem.IsUserSendable())
}
