package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campuslink/internal/domain/entity"
	"campuslink/pkg/errors"
)

var allStatuses = []entity.ConnectionStatus{
	entity.ConnectionNone,
	entity.ConnectionPending,
	entity.ConnectionAccepted,
	entity.ConnectionRejected,
}

func TestCanSend_StudentToStudentAlwaysDenied(t *testing.T) {
	for _, status := range allStatuses {
		d := CanSend(entity.RoleStudent, entity.RoleStudent, status)
		assert.False(t, d.Allowed, "status %s", status)
		assert.Equal(t, ReasonPeerMessagingDisallowed, d.Reason)
		assert.True(t, errors.Is(d.Err(), errors.CodePeerMessagingDisallowed))
	}
}

func TestCanSend_StudentToAlumniNeedsAcceptedConnection(t *testing.T) {
	for _, status := range allStatuses {
		d := CanSend(entity.RoleStudent, entity.RoleAlumni, status)
		if status == entity.ConnectionAccepted {
			assert.True(t, d.Allowed)
			assert.NoError(t, d.Err())
			continue
		}
		assert.False(t, d.Allowed, "status %s", status)
		assert.Equal(t, ReasonConnectionRequired, d.Reason)
		assert.True(t, errors.Is(d.Err(), errors.CodeConnectionRequired))
	}
}

func TestCanSend_UngatedPairs(t *testing.T) {
	tests := []struct {
		name      string
		sender    entity.Role
		recipient entity.Role
	}{
		{"alumni to alumni", entity.RoleAlumni, entity.RoleAlumni},
		{"alumni to student", entity.RoleAlumni, entity.RoleStudent},
		{"alumni to admin", entity.RoleAlumni, entity.RoleAdmin},
		{"admin to student", entity.RoleAdmin, entity.RoleStudent},
		{"admin to alumni", entity.RoleAdmin, entity.RoleAlumni},
		{"admin to admin", entity.RoleAdmin, entity.RoleAdmin},
		{"student to admin", entity.RoleStudent, entity.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, status := range allStatuses {
				assert.True(t, CanSend(tt.sender, tt.recipient, status).Allowed, "status %s", status)
			}
			assert.False(t, NeedsConnection(tt.sender, tt.recipient))
		})
	}
}

func TestCanSend_UnknownRole(t *testing.T) {
	d := CanSend(entity.Role("faculty"), entity.RoleAdmin, entity.ConnectionNone)
	assert.False(t, d.Allowed)
	assert.True(t, errors.Is(d.Err(), errors.CodeForbidden))
}

func TestNeedsConnection(t *testing.T) {
	assert.True(t, NeedsConnection(entity.RoleStudent, entity.RoleAlumni))
	assert.False(t, NeedsConnection(entity.RoleStudent, entity.RoleStudent))
}

func TestCanView(t *testing.T) {
	pendingByStudent := &entity.Connection{RequesterID: "s1", RecipientID: "a1", Status: entity.ConnectionPending}
	pendingByAlumni := &entity.Connection{RequesterID: "a1", RecipientID: "s1", Status: entity.ConnectionPending}
	accepted := &entity.Connection{RequesterID: "a1", RecipientID: "s1", Status: entity.ConnectionAccepted}
	rejected := &entity.Connection{RequesterID: "s1", RecipientID: "a1", Status: entity.ConnectionRejected}

	tests := []struct {
		name       string
		viewerRole entity.Role
		otherRole  entity.Role
		conn       *entity.Connection
		expected   bool
	}{
		{"student sees accepted alumni", entity.RoleStudent, entity.RoleAlumni, accepted, true},
		{"student sees own pending request", entity.RoleStudent, entity.RoleAlumni, pendingByStudent, true},
		{"student hides pending request from alumni", entity.RoleStudent, entity.RoleAlumni, pendingByAlumni, false},
		{"student hides rejected", entity.RoleStudent, entity.RoleAlumni, rejected, false},
		{"student hides unconnected alumni", entity.RoleStudent, entity.RoleAlumni, nil, false},
		{"student hides student", entity.RoleStudent, entity.RoleStudent, nil, false},
		{"student sees admin", entity.RoleStudent, entity.RoleAdmin, nil, true},
		{"alumni sees student", entity.RoleAlumni, entity.RoleStudent, nil, true},
		{"alumni sees alumni", entity.RoleAlumni, entity.RoleAlumni, nil, true},
		{"admin sees all", entity.RoleAdmin, entity.RoleStudent, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanView("s1", tt.viewerRole, tt.otherRole, tt.conn))
		})
	}
}
