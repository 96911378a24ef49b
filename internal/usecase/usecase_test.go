package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	memrepo "campuslink/internal/adapter/repository"
	"campuslink/internal/domain/entity"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/pkg/errors"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(userID, event string, payload interface{}) {
	m.Called(userID, event, payload)
}

// sent counts the events of one name delivered to userID.
func (m *mockNotifier) sent(userID, event string) int {
	n := 0
	for _, call := range m.Calls {
		if call.Arguments.String(0) == userID && call.Arguments.String(1) == event {
			n++
		}
	}
	return n
}

var (
	student  = entity.Identity{UserID: "stu-1", Role: entity.RoleStudent}
	student2 = entity.Identity{UserID: "stu-2", Role: entity.RoleStudent}
	alumni   = entity.Identity{UserID: "alu-1", Role: entity.RoleAlumni}
	alumni2  = entity.Identity{UserID: "alu-2", Role: entity.RoleAlumni}
	admin    = entity.Identity{UserID: "adm-1", Role: entity.RoleAdmin}
)

type fixture struct {
	notifier      *mockNotifier
	connections   *ConnectionUseCase
	messages      *MessageUseCase
	conversations *ConversationUseCase
}

func newFixture(t *testing.T, limiter Limiter) *fixture {
	t.Helper()

	users := memrepo.NewMemoryUserRepository()
	for _, id := range []entity.Identity{student, student2, alumni, alumni2, admin} {
		users.Put(id.UserID, id.Role)
	}

	connRepo := memrepo.NewMemoryConnectionRepository()
	msgRepo := memrepo.NewMemoryMessageRepository()
	convRepo := memrepo.NewMemoryConversationRepository()

	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return()

	conversations := NewConversationUseCase(convRepo, connRepo, users)
	messages := NewMessageUseCase(msgRepo, connRepo, users, conversations, notifier, limiter, 50, 200)
	connections := NewConnectionUseCase(connRepo, users, messages, notifier, limiter)

	return &fixture{
		notifier:      notifier,
		connections:   connections,
		messages:      messages,
		conversations: conversations,
	}
}

func text(to, content string) SendMessageInput {
	return SendMessageInput{RecipientID: to, Content: content}
}

func TestStudentAlumniConnectAcceptSend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.messages.Send(ctx, student, text(alumni.UserID, "hi"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConnectionRequired))
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, true, appErr.Details["suggestConnectionRequest"])

	conn, err := f.connections.CreateRequest(ctx, student, CreateConnectionInput{
		RecipientID: alumni.UserID,
		Message:     "hi, can we talk about internships?",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ConnectionPending, conn.Status)
	assert.Equal(t, 1, f.notifier.sent(alumni.UserID, entity.EventConnectionRequest))

	// still gated while pending
	_, err = f.messages.Send(ctx, student, text(alumni.UserID, "hello?"))
	assert.True(t, errors.Is(err, errors.CodeConnectionRequired))

	// the note is visible to both parties
	page, err := f.messages.History(ctx, alumni.UserID, HistoryInput{OtherUserID: student.UserID})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, entity.MessageTypeConnectionRequest, page.Messages[0].MessageType)
	assert.Equal(t, conn.ID, page.Messages[0].ConnectionID)

	accepted, err := f.connections.Respond(ctx, alumni, RespondConnectionInput{
		ConnectionID: conn.ID,
		Status:       entity.ConnectionAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ConnectionAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	assert.Equal(t, 1, f.notifier.sent(student.UserID, entity.EventConnectionResponse))

	msg, err := f.messages.Send(ctx, student, text(alumni.UserID, "thanks for accepting"))
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAlumni, msg.RecipientRole)
	assert.Equal(t, 1, f.notifier.sent(alumni.UserID, entity.EventNewMessage))

	page, err = f.messages.History(ctx, student.UserID, HistoryInput{OtherUserID: alumni.UserID})
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, entity.MessageTypeSystem, page.Messages[1].MessageType)
	assert.Equal(t, msg.ID, page.Messages[2].ID)
}

func TestRespondIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	conn, err := f.connections.CreateRequest(ctx, student, CreateConnectionInput{RecipientID: alumni.UserID})
	require.NoError(t, err)

	_, err = f.connections.Respond(ctx, student, RespondConnectionInput{ConnectionID: conn.ID, Status: entity.ConnectionAccepted})
	assert.True(t, errors.Is(err, errors.CodeForbidden), "requester cannot answer own request")

	_, err = f.connections.Respond(ctx, alumni, RespondConnectionInput{ConnectionID: conn.ID, Status: entity.ConnectionPending})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	first, err := f.connections.Respond(ctx, alumni, RespondConnectionInput{ConnectionID: conn.ID, Status: entity.ConnectionRejected})
	require.NoError(t, err)
	require.NotNil(t, first.RejectedAt)

	second, err := f.connections.Respond(ctx, alumni, RespondConnectionInput{ConnectionID: conn.ID, Status: entity.ConnectionAccepted})
	require.NoError(t, err)
	assert.Equal(t, entity.ConnectionRejected, second.Status)
	assert.True(t, first.RejectedAt.Equal(*second.RejectedAt))
	assert.Nil(t, second.AcceptedAt)

	assert.Equal(t, 1, f.notifier.sent(student.UserID, entity.EventConnectionResponse))

	_, err = f.connections.Respond(ctx, alumni, RespondConnectionInput{ConnectionID: "missing", Status: entity.ConnectionAccepted})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestCreateRequestErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.connections.CreateRequest(ctx, student, CreateConnectionInput{RecipientID: student.UserID})
	assert.True(t, errors.Is(err, errors.CodeSelfConnection))

	_, err = f.connections.CreateRequest(ctx, student, CreateConnectionInput{RecipientID: "ghost"})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = f.connections.CreateRequest(ctx, student, CreateConnectionInput{RecipientID: alumni.UserID})
	require.NoError(t, err)

	_, err = f.connections.CreateRequest(ctx, alumni, CreateConnectionInput{RecipientID: student.UserID})
	assert.True(t, errors.Is(err, errors.CodeDuplicateConnection))

	status, err := f.connections.StatusBetween(ctx, alumni.UserID, student.UserID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, student.UserID, status.RequesterID)

	pending, err := f.connections.ListPending(ctx, alumni.UserID, true)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	accepted, err := f.connections.ListAccepted(ctx, alumni.UserID)
	require.NoError(t, err)
	assert.Empty(t, accepted)

	// no note, no message
	page, err := f.messages.History(ctx, student.UserID, HistoryInput{OtherUserID: alumni.UserID})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}

func TestSendPolicy(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    entity.Identity
		to      entity.Identity
		errCode string
	}{
		{"student to student", student, student2, errors.CodePeerMessagingDisallowed},
		{"student to alumni without connection", student, alumni, errors.CodeConnectionRequired},
		{"student to admin", student, admin, ""},
		{"alumni to alumni", alumni, alumni2, ""},
		{"alumni to student", alumni, student, ""},
		{"admin to student", admin, student, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			msg, err := f.messages.Send(ctx, tt.from, text(tt.to.UserID, "hello"))
			if tt.errCode != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.errCode), "got %v", err)
				assert.Nil(t, msg)
				assert.Equal(t, 0, f.notifier.sent(tt.to.UserID, entity.EventNewMessage))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, 1, f.notifier.sent(tt.to.UserID, entity.EventNewMessage))
		})
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		input SendMessageInput
	}{
		{"blank content", SendMessageInput{RecipientID: student.UserID, Content: "   "}},
		{"no recipient", SendMessageInput{Content: "hi"}},
		{"self", SendMessageInput{RecipientID: alumni.UserID, Content: "hi"}},
		{"system type", SendMessageInput{RecipientID: student.UserID, Content: "hi", MessageType: entity.MessageTypeSystem}},
		{"unknown type", SendMessageInput{RecipientID: student.UserID, Content: "hi", MessageType: "sticker"}},
		{"file without attachment", SendMessageInput{RecipientID: student.UserID, Content: "cv", MessageType: entity.MessageTypeFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messages.Send(ctx, alumni, tt.input)
			assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)
		})
	}

	msg, err := f.messages.Send(ctx, alumni, SendMessageInput{
		RecipientID: student.UserID,
		MessageType: entity.MessageTypeFile,
		Attachment:  &entity.Attachment{URL: "https://files.example.edu/cv.pdf", Name: "cv.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MessageTypeFile, msg.MessageType)
}

func TestHistoryPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var ids []string
	for i := 0; i < 5; i++ {
		msg, err := f.messages.Send(ctx, alumni, text(student.UserID, "msg"))
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		time.Sleep(time.Millisecond)
	}

	latest, err := f.messages.History(ctx, student.UserID, HistoryInput{OtherUserID: alumni.UserID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest.Messages, 2)
	assert.True(t, latest.HasOlder)
	assert.False(t, latest.HasNewer)
	assert.Equal(t, ids[3], latest.Messages[0].ID)
	assert.Equal(t, ids[4], latest.Messages[1].ID)

	older, err := f.messages.History(ctx, student.UserID, HistoryInput{OtherUserID: alumni.UserID, Limit: 2, Before: latest.PrevCursor})
	require.NoError(t, err)
	require.Len(t, older.Messages, 2)
	assert.Equal(t, ids[1], older.Messages[0].ID)
	assert.True(t, older.HasOlder)
	assert.True(t, older.HasNewer)

	newer, err := f.messages.History(ctx, alumni.UserID, HistoryInput{OtherUserID: student.UserID, After: older.NextCursor})
	require.NoError(t, err)
	require.Len(t, newer.Messages, 2)
	assert.Equal(t, ids[3], newer.Messages[0].ID)
	assert.False(t, newer.HasNewer)

	empty, err := f.messages.History(ctx, alumni.UserID, HistoryInput{OtherUserID: student.UserID, After: newer.NextCursor})
	require.NoError(t, err)
	assert.Empty(t, empty.Messages)
	assert.Equal(t, newer.NextCursor, empty.NextCursor)

	_, err = f.messages.History(ctx, alumni.UserID, HistoryInput{OtherUserID: student.UserID, Before: "%%%"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.messages.History(ctx, alumni.UserID, HistoryInput{OtherUserID: student.UserID, Before: latest.PrevCursor, After: latest.NextCursor})
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	msg, err := f.messages.Send(ctx, alumni, text(student.UserID, "read me"))
	require.NoError(t, err)

	same, err := f.messages.MarkRead(ctx, alumni.UserID, msg.ID)
	require.NoError(t, err)
	assert.False(t, same.IsRead, "sender marking is a no-op")

	_, err = f.messages.MarkRead(ctx, admin.UserID, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	read, err := f.messages.MarkRead(ctx, student.UserID, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	again, err := f.messages.MarkRead(ctx, student.UserID, msg.ID)
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(firstReadAt))

	assert.Equal(t, 1, f.notifier.sent(alumni.UserID, entity.EventMessageRead))

	_, err = f.messages.MarkRead(ctx, student.UserID, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestCreateRequestBetweenStudentsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.connections.CreateRequest(ctx, student, CreateConnectionInput{RecipientID: student2.UserID, Message: "study group?"})
	assert.True(t, errors.Is(err, errors.CodePeerMessagingDisallowed))

	status, err := f.connections.StatusBetween(ctx, student.UserID, student2.UserID)
	require.NoError(t, err)
	assert.Nil(t, status)

	page, err := f.messages.History(ctx, student2.UserID, HistoryInput{OtherUserID: student.UserID})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, 0, f.notifier.sent(student2.UserID, entity.EventConnectionRequest))
}

func TestMarkConversationReadResetsUnread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		_, err := f.messages.Send(ctx, admin, text(student.UserID, "ping"))
		require.NoError(t, err)
	}

	views, err := f.conversations.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].Unread)

	// the sender owns no balance, so nothing resets
	res, err := f.messages.MarkConversationRead(ctx, admin.UserID, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MarkedRead)
	assert.Equal(t, 0, f.notifier.sent(student.UserID, entity.EventMessageRead))

	res, err = f.messages.MarkConversationRead(ctx, student.UserID, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.MarkedRead)
	assert.Equal(t, 1, f.notifier.sent(admin.UserID, entity.EventMessageRead))

	views, err = f.conversations.List(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 0, views[0].Unread)
}

func TestConversationListVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	// alumni reaches out to a student; the student has not answered yet
	_, err := f.connections.CreateRequest(ctx, alumni, CreateConnectionInput{RecipientID: student.UserID, Message: "want a mentor?"})
	require.NoError(t, err)
	// alumni writes to another alumni; an admin writes to the student
	_, err = f.messages.Send(ctx, alumni, text(alumni2.UserID, "coffee?"))
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, admin, text(student.UserID, "welcome"))
	require.NoError(t, err)

	views, err := f.conversations.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, views, 1, "pending request the student did not make stays hidden")
	assert.Equal(t, admin.UserID, views[0].OtherUserID)

	views, err = f.conversations.List(ctx, alumni)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	pending, err := f.connections.ListPending(ctx, student.UserID, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	_, err = f.connections.Respond(ctx, student, RespondConnectionInput{ConnectionID: pending[0].ID, Status: entity.ConnectionAccepted})
	require.NoError(t, err)

	views, err = f.conversations.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, alumni.UserID, views[0].OtherUserID, "newest first")
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	msg, err := f.messages.Send(ctx, alumni, text(student.UserID, "oops"))
	require.NoError(t, err)

	err = f.messages.Delete(ctx, student.UserID, msg.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, f.messages.Delete(ctx, alumni.UserID, msg.ID))

	page, err := f.messages.History(ctx, student.UserID, HistoryInput{OtherUserID: alumni.UserID})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}

func TestConcurrentSendsKeepEveryIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.messages.Send(ctx, admin, text(student.UserID, "burst"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	views, err := f.conversations.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, n, views[0].Unread)
}

func TestSendRateLimited(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: {Burst: 2, Every: time.Hour},
	})
	f := newFixture(t, limiter)

	for i := 0; i < 2; i++ {
		_, err := f.messages.Send(ctx, alumni, text(student.UserID, "hi"))
		require.NoError(t, err)
	}
	_, err := f.messages.Send(ctx, alumni, text(student.UserID, "hi"))
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}
