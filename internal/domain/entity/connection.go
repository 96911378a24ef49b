package entity

import (
	"sort"
	"time"
)

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"

	// ConnectionNone is never stored; it stands for "no record" in policy checks.
	ConnectionNone ConnectionStatus = "none"
)

func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionPending, ConnectionAccepted, ConnectionRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the status can no longer change.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionAccepted || s == ConnectionRejected
}

type Connection struct {
	ID             string           `json:"id" firestore:"id" bson:"_id"`
	PairKey        string           `json:"-" firestore:"pairKey" bson:"pairKey"`
	RequesterID    string           `json:"requester_id" firestore:"requesterId" bson:"requesterId"`
	RecipientID    string           `json:"recipient_id" firestore:"recipientId" bson:"recipientId"`
	RequesterRole  Role             `json:"requester_role" firestore:"requesterRole" bson:"requesterRole"`
	RecipientRole  Role             `json:"recipient_role" firestore:"recipientRole" bson:"recipientRole"`
	Status         ConnectionStatus `json:"status" firestore:"status" bson:"status"`
	InitialMessage string           `json:"initial_message,omitempty" firestore:"initialMessage,omitempty" bson:"initialMessage,omitempty"`
	CreatedAt      time.Time        `json:"created_at" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time        `json:"updated_at" firestore:"updatedAt" bson:"updatedAt"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty" firestore:"acceptedAt,omitempty" bson:"acceptedAt,omitempty"`
	RejectedAt     *time.Time       `json:"rejected_at,omitempty" firestore:"rejectedAt,omitempty" bson:"rejectedAt,omitempty"`
}

// Involves reports whether userID is either party of the connection.
func (c *Connection) Involves(userID string) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

// Transition moves a pending connection into a terminal status and stamps
// the matching timestamp. It returns false, leaving c untouched, when the
// connection is already terminal.
func (c *Connection) Transition(status ConnectionStatus, at time.Time) bool {
	if c.Status.IsTerminal() {
		return false
	}
	c.Status = status
	c.UpdatedAt = at
	switch status {
	case ConnectionAccepted:
		c.AcceptedAt = &at
	case ConnectionRejected:
		c.RejectedAt = &at
	}
	return true
}

// StatusOf returns the status of c, or ConnectionNone for a nil record.
func StatusOf(c *Connection) ConnectionStatus {
	if c == nil {
		return ConnectionNone
	}
	return c.Status
}

// SortedPair returns the two ids in ascending order.
func SortedPair(a, b string) [2]string {
	pair := []string{a, b}
	sort.Strings(pair)
	return [2]string{pair[0], pair[1]}
}

// PairKey is the direction-agnostic key of an unordered user pair.
func PairKey(a, b string) string {
	p := SortedPair(a, b)
	return p[0] + "|" + p[1]
}
