package service

import (
	"campuslink/internal/domain/entity"
	"campuslink/pkg/errors"
)

type DenyReason string

const (
	ReasonPeerMessagingDisallowed DenyReason = errors.CodePeerMessagingDisallowed
	ReasonConnectionRequired      DenyReason = errors.CodeConnectionRequired
	ReasonUnknownRole             DenyReason = "UNKNOWN_ROLE"
)

// Decision is the outcome of a send check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the matching AppError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonPeerMessagingDisallowed:
		return errors.PeerMessagingDisallowed()
	case ReasonConnectionRequired:
		return errors.ConnectionRequired()
	default:
		return errors.Forbidden("Messaging is not permitted for this role", nil)
	}
}

// CanSend decides whether a sender may message a recipient. Students are
// gated: never to other students, and to alumni only over an accepted
// connection. Alumni and admins are never gated, and anyone may write to
// an admin.
func CanSend(senderRole, recipientRole entity.Role, status entity.ConnectionStatus) Decision {
	if !senderRole.IsValid() || !recipientRole.IsValid() {
		return deny(ReasonUnknownRole)
	}

	if senderRole == entity.RoleAdmin || recipientRole == entity.RoleAdmin {
		return allow()
	}

	if senderRole == entity.RoleAlumni {
		return allow()
	}

	// student sender from here on
	if recipientRole == entity.RoleStudent {
		return deny(ReasonPeerMessagingDisallowed)
	}
	if status == entity.ConnectionAccepted {
		return allow()
	}
	return deny(ReasonConnectionRequired)
}

// NeedsConnection reports whether CanSend depends on the connection status
// for this role pair, so callers can skip the connection lookup otherwise.
func NeedsConnection(senderRole, recipientRole entity.Role) bool {
	return senderRole == entity.RoleStudent && recipientRole == entity.RoleAlumni
}

// CanView is the read-side twin of CanSend used to filter conversation
// lists. A student sees alumni conversations only over an accepted
// connection or a pending one the student requested, so their own outbound
// note stays visible. Student-to-student threads are hidden. Alumni and
// admins see everything.
func CanView(viewerID string, viewerRole, otherRole entity.Role, conn *entity.Connection) bool {
	switch viewerRole {
	case entity.RoleAlumni, entity.RoleAdmin:
		return true
	case entity.RoleStudent:
	default:
		return false
	}

	switch otherRole {
	case entity.RoleAdmin:
		return true
	case entity.RoleAlumni:
		if conn == nil {
			return false
		}
		if conn.Status == entity.ConnectionAccepted {
			return true
		}
		return conn.Status == entity.ConnectionPending && conn.RequesterID == viewerID
	}
	return false
}
