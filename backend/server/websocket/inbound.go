package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adwski/webrtc-rendezvous/backend/model"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingRoom    = errors.New("room_id is required")
	ErrMissingPayload = errors.New("signal payload is required")
)

// decodeInbound parses a client message and checks it is one the hub accepts:
// join-room with a room id, or signal with a payload. Signal room id may be
// empty, the hub then uses the room the client joined last.
func decodeInbound(msg []byte) (model.Announcement, error) {
	var ann model.Announcement
	if err := json.Unmarshal(msg, &ann); err != nil {
		return model.Announcement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch ann.Type {
	case model.AnnouncementTypeJoinRoom:
		if ann.RoomID == "" {
			return model.Announcement{}, ErrMissingRoom
		}
		ann.Payload = nil
	case model.AnnouncementTypeSignal:
		if len(ann.Payload) == 0 || bytes.Equal(ann.Payload, []byte("null")) {
			return model.Announcement{}, ErrMissingPayload
		}
	default:
		return model.Announcement{}, fmt.Errorf("%w: %q", ErrUnknownType, ann.Type)
	}
	return ann, nil
}
