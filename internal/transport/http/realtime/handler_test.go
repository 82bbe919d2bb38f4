package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/realtime"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

func newServer(t *testing.T, hub *realtime.Hub, sess *tenant.Session) *httptest.Server {
	t.Helper()
	e := echo.New()
	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sess != nil {
				tenant.WithSession(c, *sess)
			}
			return next(c)
		}
	})
	Register(g, newHandler(hub, nil))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func TestStreamDeliversTenantChanges(t *testing.T) {
	hub := realtime.NewHub(nil)
	sess := tenant.Session{TenantID: uuid.New(), AdminID: uuid.New()}
	srv := newServer(t, hub, &sess)

	conn := dial(t, srv, "?tables=products,orders")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	other := uuid.New()
	hub.Dispatch(realtime.NewChange(realtime.TableProducts, realtime.EventUpdate, other, uuid.New()))
	hub.Dispatch(realtime.NewChange(realtime.TableCustomers, realtime.EventInsert, sess.TenantID, uuid.New()))
	productID := uuid.New()
	hub.Dispatch(realtime.NewChange(realtime.TableProducts, realtime.EventUpdate, sess.TenantID, productID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "invalidate", msg.Type)
	assert.Equal(t, realtime.TableProducts, msg.Table)
	assert.Equal(t, realtime.EventUpdate, msg.Event)
	assert.Equal(t, productID, msg.RecordID)
}

func TestStreamReleasesSubscriptionOnClose(t *testing.T) {
	hub := realtime.NewHub(nil)
	sess := tenant.Session{TenantID: uuid.New()}
	srv := newServer(t, hub, &sess)

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRequiresSession(t *testing.T) {
	srv := newServer(t, realtime.NewHub(nil), nil)

	resp, err := http.Get(srv.URL + "/realtime")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRejectsBadRecordID(t *testing.T) {
	sess := tenant.Session{TenantID: uuid.New()}
	srv := newServer(t, realtime.NewHub(nil), &sess)

	resp, err := http.Get(srv.URL + "/realtime?record_id=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
