package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuslink/internal/adapter/api"
	"campuslink/internal/adapter/api/handler"
	"campuslink/internal/adapter/api/middleware"
	"campuslink/internal/adapter/repository"
	"campuslink/internal/domain/entity"
	"campuslink/internal/infrastructure/jwtauth"
	ws "campuslink/internal/infrastructure/websocket"
	"campuslink/internal/usecase"
	"campuslink/pkg/errors"
)

type testApp struct {
	e       *echo.Echo
	server  *httptest.Server
	tokens  *jwtauth.Manager
	manager *ws.Manager
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	users := repository.NewMemoryUserRepository()
	users.Put("stu-1", entity.RoleStudent)
	users.Put("stu-2", entity.RoleStudent)
	users.Put("alu-1", entity.RoleAlumni)
	users.Put("alu-2", entity.RoleAlumni)
	users.Put("adm-1", entity.RoleAdmin)
	store := repository.NewMemoryStore(users)

	tokens := jwtauth.NewManager("test-secret", store.Users)
	manager := ws.NewManager(nil, nil)

	conversations := usecase.NewConversationUseCase(store.Conversations, store.Connections, store.Users)
	messages := usecase.NewMessageUseCase(store.Messages, store.Connections, store.Users, conversations, manager, nil, 50, 200)
	connections := usecase.NewConnectionUseCase(store.Connections, store.Users, messages, manager, nil)
	manager.Bind(messages, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager.Start(ctx)

	handlers := &handler.Handlers{
		Connection:   handler.NewConnectionHandler(connections),
		Message:      handler.NewMessageHandler(messages),
		Conversation: handler.NewConversationHandler(conversations),
		WebSocket:    handler.NewWebSocketHandler(manager, tokens, nil),
		Health:       handler.NewHealthHandler("memory", store, nil, manager),
		DevToken:     handler.NewDevTokenHandler(tokens, users),
	}

	e := echo.New()
	e.Validator = api.NewValidator()
	Setup(e, handlers, middleware.NewAuthMiddleware(tokens), nil, "development")

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testApp{e: e, server: server, tokens: tokens, manager: manager}
}

func (a *testApp) token(t *testing.T, userID string, role entity.Role) string {
	t.Helper()
	token, err := a.tokens.Issue(entity.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["relay"])
	assert.Equal(t, map[string]interface{}{"backend": "memory", "status": "up"}, body["store"])
}

func TestAuthentication(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(t, http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, errors.CodeUnauthorized, env.Error.Code)

	code, _ = app.do(t, http.MethodGet, "/v1/conversations", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations?token="+app.token(t, "stu-1", entity.RoleStudent), nil)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDevToken(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(t, http.MethodPost, "/_dev/token", "", map[string]string{"user_id": "new-alu", "role": "alumni"})
	require.Equal(t, http.StatusOK, code)

	var issued struct {
		Token string          `json:"token"`
		User  entity.Identity `json:"user"`
	}
	decode(t, env.Data, &issued)
	assert.Equal(t, entity.RoleAlumni, issued.User.Role)

	// the issued user is now in the directory and can be messaged
	adm := app.token(t, "adm-1", entity.RoleAdmin)
	code, _ = app.do(t, http.MethodPost, "/v1/messages", adm, map[string]string{"recipient_id": "new-alu", "content": "welcome"})
	assert.Equal(t, http.StatusCreated, code)

	code, env = app.do(t, http.MethodPost, "/_dev/token", "", map[string]string{"user_id": "x", "role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)
}

func TestConnectAcceptAndMessage(t *testing.T) {
	app := newTestApp(t)
	stu := app.token(t, "stu-1", entity.RoleStudent)
	alu := app.token(t, "alu-1", entity.RoleAlumni)

	code, env := app.do(t, http.MethodPost, "/v1/messages", stu, map[string]string{"recipient_id": "alu-1", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, errors.CodeConnectionRequired, env.Error.Code)
	assert.Equal(t, true, env.Error.Details["suggestConnectionRequest"])

	code, env = app.do(t, http.MethodPost, "/v1/connections", stu, map[string]string{"recipient_id": "alu-1", "message": "Can I ask about your internship?"})
	require.Equal(t, http.StatusCreated, code)
	var connection entity.Connection
	decode(t, env.Data, &connection)
	assert.Equal(t, entity.ConnectionPending, connection.Status)

	code, env = app.do(t, http.MethodPost, "/v1/connections", alu, map[string]string{"recipient_id": "stu-1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, errors.CodeDuplicateConnection, env.Error.Code)

	code, env = app.do(t, http.MethodPost, "/v1/connections", stu, map[string]string{"recipient_id": "stu-1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeSelfConnection, env.Error.Code)

	code, env = app.do(t, http.MethodGet, "/v1/connections/pending", alu, nil)
	require.Equal(t, http.StatusOK, code)
	var pending []entity.Connection
	decode(t, env.Data, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, connection.ID, pending[0].ID)

	code, env = app.do(t, http.MethodGet, "/v1/connections/pending?as=requester", stu, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &pending)
	assert.Len(t, pending, 1)

	code, _ = app.do(t, http.MethodPut, "/v1/connections/response", stu, map[string]string{"connection_id": connection.ID, "status": "accepted"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = app.do(t, http.MethodPut, "/v1/connections/response", alu, map[string]string{"connection_id": connection.ID, "status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)

	code, env = app.do(t, http.MethodPut, "/v1/connections/response", alu, map[string]string{"connection_id": connection.ID, "status": "accepted"})
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &connection)
	assert.Equal(t, entity.ConnectionAccepted, connection.Status)

	code, env = app.do(t, http.MethodGet, "/v1/connections/status?with=alu-1", stu, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &connection)
	assert.Equal(t, entity.ConnectionAccepted, connection.Status)

	code, env = app.do(t, http.MethodGet, "/v1/connections/accepted", stu, nil)
	require.Equal(t, http.StatusOK, code)
	var accepted []entity.Connection
	decode(t, env.Data, &accepted)
	assert.Len(t, accepted, 1)

	code, _ = app.do(t, http.MethodPost, "/v1/messages", stu, map[string]string{"recipient_id": "alu-1", "content": "Thanks!"})
	require.Equal(t, http.StatusCreated, code)

	code, env = app.do(t, http.MethodGet, "/v1/messages?with=alu-1", stu, nil)
	require.Equal(t, http.StatusOK, code)
	var page entity.HistoryPage
	decode(t, env.Data, &page)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, entity.MessageTypeConnectionRequest, page.Messages[0].MessageType)
	assert.Equal(t, entity.MessageTypeSystem, page.Messages[1].MessageType)
	assert.Equal(t, "Thanks!", page.Messages[2].Content)

	code, env = app.do(t, http.MethodGet, "/v1/conversations", alu, nil)
	require.Equal(t, http.StatusOK, code)
	var views []usecase.ConversationView
	decode(t, env.Data, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "stu-1", views[0].OtherUserID)
	assert.Equal(t, 1, views[0].Unread)

	code, env = app.do(t, http.MethodPut, "/v1/conversations/read", alu, map[string]string{"with_user_id": "stu-1"})
	require.Equal(t, http.StatusOK, code)
	var read usecase.ConversationReadResult
	decode(t, env.Data, &read)
	assert.Equal(t, 2, read.MarkedRead)

	code, env = app.do(t, http.MethodGet, "/v1/conversations", alu, nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &views)
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].Unread)
}

func TestMessageEndpoints(t *testing.T) {
	app := newTestApp(t)
	alu1 := app.token(t, "alu-1", entity.RoleAlumni)
	alu2 := app.token(t, "alu-2", entity.RoleAlumni)
	stu2 := app.token(t, "stu-2", entity.RoleStudent)

	code, env := app.do(t, http.MethodPost, "/v1/messages", alu1, map[string]string{"content": "no recipient"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)

	code, env = app.do(t, http.MethodPost, "/v1/messages", stu2, map[string]string{"recipient_id": "stu-1", "content": "hey"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, errors.CodePeerMessagingDisallowed, env.Error.Code)

	code, env = app.do(t, http.MethodPost, "/v1/messages", alu1, map[string]string{"recipient_id": "alu-2", "content": "reunion?"})
	require.Equal(t, http.StatusCreated, code)
	var message entity.Message
	decode(t, env.Data, &message)

	code, _ = app.do(t, http.MethodPut, "/v1/messages/read", stu2, map[string]string{"message_id": message.ID})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = app.do(t, http.MethodPut, "/v1/messages/read", alu2, map[string]string{"message_id": message.ID})
	require.Equal(t, http.StatusOK, code)
	decode(t, env.Data, &message)
	assert.True(t, message.IsRead)

	code, _ = app.do(t, http.MethodGet, "/v1/messages?with=alu-2&before=not-a-cursor", alu1, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = app.do(t, http.MethodDelete, "/v1/messages/"+message.ID, alu2, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = app.do(t, http.MethodDelete, "/v1/messages/"+message.ID, alu1, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = app.do(t, http.MethodDelete, "/v1/messages/"+message.ID, alu1, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (a *testApp) dial(t *testing.T, token string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws?token=" + token
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame of eventType, skipping others.
func readUntil(t *testing.T, conn *gorillaws.Conn, eventType string) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame), "waiting for %s", eventType)
		if frame.Type == eventType {
			return frame
		}
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	app := newTestApp(t)

	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws?token=garbage"
	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, app.manager.ConnectedClients())
}

func TestWebSocketDelivery(t *testing.T) {
	app := newTestApp(t)

	adm := app.dial(t, app.token(t, "adm-1", entity.RoleAdmin))
	alu := app.dial(t, app.token(t, "alu-1", entity.RoleAlumni))
	stu := app.dial(t, app.token(t, "stu-1", entity.RoleStudent))
	assert.Eventually(t, func() bool { return app.manager.ConnectedClients() == 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, adm.WriteJSON(map[string]interface{}{
		"type": "send-message",
		"data": map[string]string{"recipientId": "alu-1", "content": "Mentor day is Friday", "tempId": "tmp-1"},
	}))

	ack := readUntil(t, adm, entity.EventMessageSent)
	var sent ws.MessageSentData
	decode(t, ack.Data, &sent)
	assert.Equal(t, "tmp-1", sent.TempID)
	assert.True(t, sent.Delivered)

	incoming := readUntil(t, alu, entity.EventNewMessage)
	var message entity.Message
	decode(t, incoming.Data, &message)
	assert.Equal(t, sent.Message.ID, message.ID)
	assert.Equal(t, "adm-1", message.SenderID)

	require.NoError(t, alu.WriteJSON(map[string]interface{}{"type": "typing", "data": map[string]string{"recipientId": "adm-1"}}))
	typing := readUntil(t, adm, entity.EventUserTyping)
	var notice entity.TypingNotice
	decode(t, typing.Data, &notice)
	assert.Equal(t, "alu-1", notice.UserID)

	require.NoError(t, alu.WriteJSON(map[string]interface{}{"type": "mark-read", "data": map[string]string{"messageId": message.ID}}))
	readUntil(t, adm, entity.EventMessageRead)

	require.NoError(t, stu.WriteJSON(map[string]interface{}{
		"type": "send-message",
		"data": map[string]string{"recipientId": "alu-1", "content": "hello", "tempId": "tmp-2"},
	}))
	errFrame := readUntil(t, stu, entity.EventError)
	var errData ws.ErrorData
	decode(t, errFrame.Data, &errData)
	assert.Equal(t, errors.CodeConnectionRequired, errData.Code)
	assert.True(t, errData.SuggestConnectionRequest)
	assert.Equal(t, "tmp-2", errData.TempID)

	require.NoError(t, stu.WriteJSON(map[string]interface{}{"type": "ping"}))
	readUntil(t, stu, entity.EventPong)
}

func TestWebSocketSecondLoginReplacesFirst(t *testing.T) {
	app := newTestApp(t)
	token := app.token(t, "alu-1", entity.RoleAlumni)

	first := app.dial(t, token)
	assert.Eventually(t, func() bool { return app.manager.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)
	second := app.dial(t, token)

	// the first socket is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	adm := app.token(t, "adm-1", entity.RoleAdmin)
	code, _ := app.do(t, http.MethodPost, "/v1/messages", adm, map[string]string{"recipient_id": "alu-1", "content": "still there?"})
	require.Equal(t, http.StatusCreated, code)
	readUntil(t, second, entity.EventNewMessage)
	assert.Equal(t, 1, app.manager.ConnectedClients())
}
