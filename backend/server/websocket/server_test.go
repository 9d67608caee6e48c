package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/adwski/webrtc-rendezvous/backend/service"
	"github.com/adwski/webrtc-rendezvous/backend/storage/memory"
	_switch "github.com/adwski/webrtc-rendezvous/backend/switch"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, url string) *testPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	p := &testPeer{t: t, conn: conn}

	ann := p.next()
	require.Equal(t, model.AnnouncementTypeConnected, ann.Type)
	var connected model.Connected
	require.NoError(t, json.Unmarshal(ann.Payload, &connected))
	require.NotEmpty(t, connected.ID)
	p.id = connected.ID
	return p
}

func (p *testPeer) next() model.Announcement {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ann model.Announcement
	require.NoError(p.t, p.conn.ReadJSON(&ann))
	return ann
}

func (p *testPeer) expect(typ, payload string) {
	p.t.Helper()
	ann := p.next()
	assert.Equal(p.t, typ, ann.Type)
	if payload == "" {
		assert.Empty(p.t, ann.Payload)
	} else {
		assert.JSONEq(p.t, payload, string(ann.Payload))
	}
}

func (p *testPeer) expectError(reason string) {
	p.t.Helper()
	ann := p.next()
	require.Equal(p.t, model.AnnouncementTypeError, ann.Type)
	var e model.Error
	require.NoError(p.t, json.Unmarshal(ann.Payload, &e))
	assert.Contains(p.t, e.Reason, reason)
}

func (p *testPeer) send(ann model.Announcement) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(&ann))
}

func (p *testPeer) close() {
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.conn.Close()
}

func newTestServer(t *testing.T) (*service.Service, string) {
	t.Helper()
	logger := zerolog.Nop()
	svc := service.NewService(service.Config{
		RoomStore: memory.NewMemStore(memory.Config{}),
		Switch:    _switch.NewSwitch(&logger),
		Logger:    &logger,
	})
	srv := NewServer(Config{
		Logger:           &logger,
		SignalingService: svc,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return svc, "ws" + strings.TrimPrefix(ts.URL, "http") + "/signal"
}

func TestServer_SignalingFlow(t *testing.T) {
	svc, url := newTestServer(t)

	x := dial(t, url)
	x.send(model.Announcement{Type: model.AnnouncementTypeJoinRoom, RoomID: "abc123"})
	x.expect(model.AnnouncementTypeRole, `"initiator"`)
	x.expect(model.AnnouncementTypeUserCount, `1`)

	y := dial(t, url)
	y.send(model.Announcement{Type: model.AnnouncementTypeJoinRoom, RoomID: "abc123"})
	y.expect(model.AnnouncementTypeRole, `"joiner"`)
	y.expect(model.AnnouncementTypeUserCount, `2`)
	y.expect(model.AnnouncementTypeStartConnection, `{"as":"joiner"}`)
	x.expect(model.AnnouncementTypeUserCount, `2`)
	x.expect(model.AnnouncementTypeStartConnection, `{"as":"initiator"}`)

	// refused messages are reported, the connection stays usable
	require.NoError(t, x.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	x.expectError(ErrMalformed.Error())
	x.send(model.Announcement{Type: "leave-room", RoomID: "abc123"})
	x.expectError(`unknown message type: "leave-room"`)
	x.send(model.Announcement{Type: model.AnnouncementTypeSignal, RoomID: "abc123"})
	x.expectError(ErrMissingPayload.Error())

	x.send(model.Announcement{
		Type:    model.AnnouncementTypeSignal,
		RoomID:  "abc123",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})
	ann := y.next()
	assert.Equal(t, model.AnnouncementTypeSignal, ann.Type)
	var sig model.Signal
	require.NoError(t, json.Unmarshal(ann.Payload, &sig))
	assert.Equal(t, x.id, sig.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(sig.Signal))

	y.close()
	x.expect(model.AnnouncementTypePartnerLeft, "")
	x.expect(model.AnnouncementTypeUserCount, `1`)

	x.close()
	require.Eventually(t, func() bool {
		return svc.Stats() == model.Stats{}
	}, 3*time.Second, 10*time.Millisecond)

	_, err := svc.GetRoom("abc123")
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
}

func TestServer_DistinctConnectionIDs(t *testing.T) {
	_, url := newTestServer(t)

	a := dial(t, url)
	b := dial(t, url)
	defer a.close()
	defer b.close()

	assert.NotEqual(t, a.id, b.id)
}
