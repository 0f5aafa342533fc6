package handler_test

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/session"
)

type wireSnapshot struct {
	Key      string           `json:"key"`
	Revision int64            `json:"revision"`
	Records  []map[string]any `json:"records"`
}

func TestSyncHandler_CollectionSnapshot(t *testing.T) {
	p := newPortal(t, portalOptions{})

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/v1/collections/booksUploads", "", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var snapshot envelope[wireSnapshot]
	decodeResponse(t, resp, &snapshot)
	require.Equal(t, "booksUploads", snapshot.Data.Key)
	require.Empty(t, snapshot.Data.Records)

	resp = p.do(t, jsonRequest(t, http.MethodGet, "/api/v1/collections/displayNames", "", nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSyncHandler_StudentCollectionsRequireAdmin(t *testing.T) {
	p := newPortal(t, portalOptions{})

	register := jsonRequest(t, http.MethodPost, "/api/v1/students/requests", "", registration("asha@example.com"))
	require.Equal(t, fiber.StatusCreated, p.do(t, register).StatusCode)

	for _, key := range []string{"student_requests", "approved_students"} {
		path := "/api/v1/collections/" + key

		resp := p.do(t, jsonRequest(t, http.MethodGet, path, "", nil))
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, key)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NotContains(t, string(body), "asha@example.com")

		resp = p.do(t, jsonRequest(t, http.MethodGet, path, p.token(t, session.RoleStudent, "Asha"), nil))
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode, key)
	}

	resp := p.do(t, jsonRequest(t, http.MethodGet, "/api/v1/collections/student_requests", p.token(t, session.RoleAdmin, ""), nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var snapshot envelope[wireSnapshot]
	decodeResponse(t, resp, &snapshot)
	require.Len(t, snapshot.Data.Records, 1)
	require.Equal(t, "asha@example.com", snapshot.Data.Records[0]["email"])
}

func TestSyncHandler_StreamPushesOtherViewsChanges(t *testing.T) {
	p := newPortal(t, portalOptions{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = p.app.Listener(ln) }()
	t.Cleanup(func() { _ = p.app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/api/v1/sync/ws?collection=discussion_msgs&view_id=board-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var initial wireSnapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	require.Equal(t, int64(0), initial.Revision)

	admin := p.token(t, session.RoleAdmin, "")
	req := jsonRequest(t, http.MethodPost, "/api/v1/discussion/messages", admin, map[string]string{"text": "Library closes early"})
	req.Header.Set(middleware.HeaderViewID, "board-2")
	resp := p.do(t, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var pushed wireSnapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pushed))
	require.Equal(t, int64(1), pushed.Revision)
	require.Len(t, pushed.Records, 1)
	require.Equal(t, "Library closes early", pushed.Records[0]["text"])
}

func TestSyncHandler_StreamRejectsUnknownCollection(t *testing.T) {
	p := newPortal(t, portalOptions{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = p.app.Listener(ln) }()
	t.Cleanup(func() { _ = p.app.Shutdown() })

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/sync/ws?collection=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncHandler_StreamGuardsStudentCollections(t *testing.T) {
	p := newPortal(t, portalOptions{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = p.app.Listener(ln) }()
	t.Cleanup(func() { _ = p.app.Shutdown() })

	base := "ws://" + ln.Addr().String() + "/api/v1/sync/ws?collection=approved_students"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"&access_token="+p.token(t, session.RoleStudent, "Asha"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	header := http.Header{}
	header.Set(fiber.HeaderAuthorization, "Bearer "+p.token(t, session.RoleAdmin, ""))
	conn, _, err := websocket.DefaultDialer.Dial(base, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var initial wireSnapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	require.Equal(t, "approved_students", initial.Key)
}
