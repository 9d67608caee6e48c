package model

import (
	"encoding/json"
	"errors"
)

var (
	ErrRoomIsFull   = errors.New("room is full")
	ErrRoomNotFound = errors.New("room is not found")
)

type Role string

const (
	RoleInitiator Role = "initiator"
	RoleJoiner    Role = "joiner"
)

// Inbound announcement types sent by clients.
const (
	AnnouncementTypeJoinRoom = "join-room"
	AnnouncementTypeSignal   = "signal"
)

// Outbound announcement types sent by server.
const (
	AnnouncementTypeConnected       = "connected"
	AnnouncementTypeRole            = "role"
	AnnouncementTypeUserCount       = "user-count"
	AnnouncementTypeStartConnection = "start-connection"
	AnnouncementTypePartnerLeft     = "partner-left"
	AnnouncementTypeRoomFull        = "room-full"
	AnnouncementTypeError           = "error"
)

// Room is the registry-side state of a session.
// Members keeps join order, the first member holds the initiator role.
type Room struct {
	ID        string
	Members   []string
	Initiator string
}

// RoomSnapshot is a detached copy of a room returned by registry operations.
type RoomSnapshot struct {
	ID        string   `json:"room_id"`
	Members   []string `json:"members"`
	Initiator string   `json:"initiator,omitempty"`

	// Changed reports whether the operation modified the member list.
	Changed bool `json:"-"`
	// InitiatorChanged reports a handover of the initiator role to another member.
	InitiatorChanged bool `json:"-"`
}

func (s RoomSnapshot) Count() int {
	return len(s.Members)
}

type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Connections  int `json:"connections"`
}

type Announcement struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	SRC     string          `json:"src,omitempty"` // for inbound messages server re-assigns this based on websocket session
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewAnnouncement encodes payload into an announcement of the given type.
// A nil payload produces an announcement without payload.
func NewAnnouncement(typ string, payload any) (Announcement, error) {
	ann := Announcement{Type: typ}
	if payload == nil {
		return ann, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ann, err
	}
	ann.Payload = b
	return ann, nil
}

type Connected struct {
	ID string `json:"id"`
}

type StartConnection struct {
	As Role `json:"as"`
}

type Signal struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type RoomFull struct {
	RoomID   string `json:"room_id"`
	Capacity int    `json:"capacity"`
}

// Error tells the client why its message was not accepted.
type Error struct {
	Reason string `json:"reason"`
}

type Wire struct {
	RX chan Announcement
	TX chan Announcement
}

// NewWire creates a wire with an unbuffered inbound channel
// and an outbound queue of txQueue announcements.
func NewWire(txQueue int) Wire {
	return Wire{
		RX: make(chan Announcement),
		TX: make(chan Announcement, txQueue),
	}
}
