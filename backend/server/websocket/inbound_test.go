package websocket

import (
	"testing"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	type want struct {
		typ     string
		roomID  string
		payload string
		err     error
	}
	tests := []struct {
		name string
		msg  string
		want want
	}{
		{
			name: "join room",
			msg:  `{"type":"join-room","room_id":"abc123"}`,
			want: want{typ: model.AnnouncementTypeJoinRoom, roomID: "abc123"},
		},
		{
			name: "join room drops payload",
			msg:  `{"type":"join-room","room_id":"abc123","payload":{"x":1}}`,
			want: want{typ: model.AnnouncementTypeJoinRoom, roomID: "abc123"},
		},
		{
			name: "join room without room",
			msg:  `{"type":"join-room"}`,
			want: want{err: ErrMissingRoom},
		},
		{
			name: "signal",
			msg:  `{"type":"signal","room_id":"abc123","payload":{"type":"offer","sdp":"v=0"}}`,
			want: want{
				typ:     model.AnnouncementTypeSignal,
				roomID:  "abc123",
				payload: `{"type":"offer","sdp":"v=0"}`,
			},
		},
		{
			name: "signal without room",
			msg:  `{"type":"signal","payload":{"candidate":"c"}}`,
			want: want{typ: model.AnnouncementTypeSignal, payload: `{"candidate":"c"}`},
		},
		{
			name: "signal without payload",
			msg:  `{"type":"signal","room_id":"abc123"}`,
			want: want{err: ErrMissingPayload},
		},
		{
			name: "signal with null payload",
			msg:  `{"type":"signal","room_id":"abc123","payload":null}`,
			want: want{err: ErrMissingPayload},
		},
		{
			name: "unknown type",
			msg:  `{"type":"leave-room","room_id":"abc123"}`,
			want: want{err: ErrUnknownType},
		},
		{
			name: "server side type",
			msg:  `{"type":"start-connection"}`,
			want: want{err: ErrUnknownType},
		},
		{
			name: "not json",
			msg:  `not json`,
			want: want{err: ErrMalformed},
		},
		{
			name: "wrong field type",
			msg:  `{"type":"join-room","room_id":42}`,
			want: want{err: ErrMalformed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann, err := decodeInbound([]byte(tt.msg))
			if tt.want.err != nil {
				require.ErrorIs(t, err, tt.want.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.typ, ann.Type)
			assert.Equal(t, tt.want.roomID, ann.RoomID)
			assert.Empty(t, ann.SRC)
			if tt.want.payload == "" {
				assert.Empty(t, ann.Payload)
			} else {
				assert.JSONEq(t, tt.want.payload, string(ann.Payload))
			}
		})
	}
}
