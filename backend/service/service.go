package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/adwski/webrtc-rendezvous/backend/roomid"
	"github.com/rs/zerolog"
)

const (
	maxRoomIDAttempts = 16
)

var (
	ErrGet           = errors.New("unable to get room")
	ErrConnect       = errors.New("unable to connect")
	ErrDisconnect    = errors.New("unable to disconnect")
	ErrSessionExists = errors.New("signaling session already exists")
	ErrRoomID        = errors.New("unable to generate room id")
)

type (
	RoomStore interface {
		JoinRoom(roomID string, userID string) (model.RoomSnapshot, error)
		LeaveRoom(roomID string, userID string) (model.RoomSnapshot, bool)
		PeersOf(roomID string, userID string) []string
		RoomsOf(userID string) []string
		GetRoom(roomID string) (model.RoomSnapshot, error)
		Exists(roomID string) bool
		Stats() model.Stats
		Capacity() int
	}

	Switch interface {
		Connect(userID string, wire model.Wire) error
		Disconnect(userID string) error
		Unicast(dst string, ann model.Announcement) bool
		Broadcast(dsts []string, ann model.Announcement) int
		BroadcastFrom(src string, dsts []string, ann model.Announcement) int
	}

	// Service is the signaling hub. All membership changes and the
	// notifications they produce happen under mx, so every member observes
	// them in registry order.
	Service struct {
		store  RoomStore
		sw     Switch
		logger zerolog.Logger

		mx       *sync.Mutex
		sessions map[string]*session

		roomIDLength int
	}

	Config struct {
		RoomStore RoomStore
		Switch    Switch
		Logger    *zerolog.Logger

		// RoomIDLength is the length of generated room ids.
		RoomIDLength int
	}

	session struct {
		room string
		done chan struct{} // nil for sessions without a wire
	}
)

func NewService(cfg Config) *Service {
	idLen := cfg.RoomIDLength
	if idLen <= 0 {
		idLen = roomid.DefaultLength
	}
	return &Service{
		store:        cfg.RoomStore,
		sw:           cfg.Switch,
		logger:       cfg.Logger.With().Str("component", "hub").Logger(),
		mx:           &sync.Mutex{},
		sessions:     make(map[string]*session),
		roomIDLength: idLen,
	}
}

// CreateSignalingSession attaches connection wire to the hub. Inbound
// announcements are consumed from wire.RX until it is closed or ctx is done,
// after that the connection is disconnected. A session that was started
// by a direct Join keeps its room and gets the wire attached.
func (svc *Service) CreateSignalingSession(ctx context.Context, userID string, wire model.Wire) error {
	svc.mx.Lock()
	sess, ok := svc.sessions[userID]
	if ok && sess.done != nil {
		svc.mx.Unlock()
		return ErrSessionExists
	}
	if err := svc.sw.Connect(userID, wire); err != nil {
		svc.mx.Unlock()
		return errors.Join(ErrConnect, err)
	}
	if !ok {
		sess = &session{}
		svc.sessions[userID] = sess
	}
	done := make(chan struct{})
	sess.done = done
	svc.unicast(userID, model.AnnouncementTypeConnected, model.Connected{ID: userID})
	svc.mx.Unlock()

	svc.logger.Debug().
		Str("userID", userID).
		Msg("signaling session connected")

	go svc.serve(ctx, userID, wire.RX, done)
	return nil
}

// DeleteSignalingSession waits until departure of the connection is processed.
func (svc *Service) DeleteSignalingSession(ctx context.Context, userID string) error {
	svc.mx.Lock()
	sess, ok := svc.sessions[userID]
	svc.mx.Unlock()
	if !ok {
		return nil
	}
	if sess.done == nil {
		svc.Disconnect(userID)
		return nil
	}

	select {
	case <-sess.done:
	case <-ctx.Done():
		return errors.Join(ErrDisconnect, ctx.Err())
	}
	svc.logger.Debug().
		Str("userID", userID).
		Msg("signaling session deleted")
	return nil
}

func (svc *Service) serve(ctx context.Context, userID string, rx <-chan model.Announcement, done chan struct{}) {
	defer func() {
		svc.Disconnect(userID)
		close(done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ann, ok := <-rx:
			if !ok {
				return
			}
			svc.dispatch(userID, ann)
		}
	}
}

func (svc *Service) dispatch(userID string, ann model.Announcement) {
	switch ann.Type {
	case model.AnnouncementTypeJoinRoom:
		if ann.RoomID == "" {
			svc.logger.Warn().
				Str("userID", userID).
				Msg("join without room id")
			return
		}
		svc.Join(userID, ann.RoomID)
	case model.AnnouncementTypeSignal:
		svc.Signal(userID, ann.RoomID, ann.Payload)
	default:
		svc.logger.Debug().
			Str("userID", userID).
			Str("type", ann.Type).
			Msg("unknown announcement type")
	}
}

// Join puts the connection into room and announces its role. A connection
// that was in another room leaves it once the join succeeded.
func (svc *Service) Join(userID, roomID string) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	logger := svc.logger.With().
		Str("userID", userID).
		Str("roomID", roomID).
		Logger()

	snap, err := svc.store.JoinRoom(roomID, userID)
	if err != nil {
		if errors.Is(err, model.ErrRoomIsFull) {
			logger.Info().Msg("join rejected, room is full")
			svc.unicast(userID, model.AnnouncementTypeRoomFull, model.RoomFull{
				RoomID:   roomID,
				Capacity: svc.store.Capacity(),
			})
			return
		}
		logger.Error().Err(err).Msg("unable to join room")
		return
	}

	sess := svc.session(userID)
	if prev := sess.room; prev != "" && prev != roomID {
		logger.Debug().Str("prevRoomID", prev).Msg("switching rooms")
		svc.leave(userID, prev)
	}
	sess.room = roomID

	role := model.RoleJoiner
	if snap.Initiator == userID {
		role = model.RoleInitiator
	}
	logger.Debug().
		Int("members", snap.Count()).
		Str("role", string(role)).
		Msg("user joined room")

	svc.unicast(userID, model.AnnouncementTypeRole, role)
	svc.broadcast(snap.Members, model.AnnouncementTypeUserCount, snap.Count())

	if snap.Changed && snap.Count() == 2 {
		logger.Info().Msg("room is complete, starting connection")
		svc.unicast(snap.Initiator, model.AnnouncementTypeStartConnection,
			model.StartConnection{As: model.RoleInitiator})
		svc.unicast(userID, model.AnnouncementTypeStartConnection,
			model.StartConnection{As: model.RoleJoiner})
	}
}

// Signal relays opaque payload to every other member of the room.
// Empty roomID means the room connection has joined last.
func (svc *Service) Signal(userID, roomID string, payload json.RawMessage) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	if roomID == "" {
		if sess, ok := svc.sessions[userID]; ok {
			roomID = sess.room
		}
	}
	logger := svc.logger.With().
		Str("userID", userID).
		Str("roomID", roomID).
		Logger()

	peers := svc.store.PeersOf(roomID, userID)
	if len(peers) == 0 {
		logger.Debug().Msg("signal dropped, no peers")
		return
	}
	ann, err := model.NewAnnouncement(model.AnnouncementTypeSignal, model.Signal{
		From:   userID,
		Signal: payload,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode signal")
		return
	}
	n := svc.sw.BroadcastFrom(userID, peers, ann)
	logger.Debug().
		Str("signalType", signalType(payload)).
		Int("delivered", n).
		Msg("signal relayed")
}

// Disconnect removes the connection from every room it is a member of.
func (svc *Service) Disconnect(userID string) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	delete(svc.sessions, userID)
	if err := svc.sw.Disconnect(userID); err != nil {
		svc.logger.Error().Err(err).Str("userID", userID).Msg("switch disconnect failed")
	}
	for _, roomID := range svc.store.RoomsOf(userID) {
		svc.leave(userID, roomID)
	}
	svc.logger.Debug().
		Str("userID", userID).
		Msg("user disconnected")
}

func (svc *Service) leave(userID, roomID string) {
	snap, deleted := svc.store.LeaveRoom(roomID, userID)
	if deleted {
		svc.logger.Debug().Str("roomID", roomID).Msg("room deleted")
		return
	}
	if !snap.Changed {
		return
	}
	svc.logger.Debug().
		Str("userID", userID).
		Str("roomID", roomID).
		Int("members", snap.Count()).
		Msg("user left room")

	svc.broadcast(snap.Members, model.AnnouncementTypePartnerLeft, nil)
	svc.broadcast(snap.Members, model.AnnouncementTypeUserCount, snap.Count())
	if snap.InitiatorChanged {
		svc.unicast(snap.Initiator, model.AnnouncementTypeRole, model.RoleInitiator)
	}
}

func (svc *Service) NewRoomID() (string, error) {
	for range maxRoomIDAttempts {
		id, err := roomid.Generate(svc.roomIDLength)
		if err != nil {
			return "", errors.Join(ErrRoomID, err)
		}
		if !svc.store.Exists(id) {
			return id, nil
		}
	}
	return "", ErrRoomID
}

func (svc *Service) GetRoom(roomID string) (model.RoomSnapshot, error) {
	room, err := svc.store.GetRoom(roomID)
	if err != nil {
		return room, errors.Join(ErrGet, err)
	}
	return room, nil
}

// Stats reports registry counters and the number of attached connections.
func (svc *Service) Stats() model.Stats {
	stats := svc.store.Stats()
	svc.mx.Lock()
	defer svc.mx.Unlock()
	for _, sess := range svc.sessions {
		if sess.done != nil {
			stats.Connections++
		}
	}
	return stats
}

func (svc *Service) session(userID string) *session {
	sess, ok := svc.sessions[userID]
	if !ok {
		sess = &session{}
		svc.sessions[userID] = sess
	}
	return sess
}

func (svc *Service) unicast(dst, typ string, payload any) {
	ann, err := model.NewAnnouncement(typ, payload)
	if err != nil {
		svc.logger.Error().Err(err).Str("type", typ).Msg("failed to encode announcement")
		return
	}
	svc.sw.Unicast(dst, ann)
}

func (svc *Service) broadcast(dsts []string, typ string, payload any) {
	ann, err := model.NewAnnouncement(typ, payload)
	if err != nil {
		svc.logger.Error().Err(err).Str("type", typ).Msg("failed to encode announcement")
		return
	}
	svc.sw.Broadcast(dsts, ann)
}

// signalType extracts handshake message kind for diagnostics.
func signalType(payload json.RawMessage) string {
	var sig struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &sig); err != nil {
		return ""
	}
	return sig.Type
}
