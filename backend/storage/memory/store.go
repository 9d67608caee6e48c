package memory

import (
	"slices"
	"sync"

	"github.com/adwski/webrtc-rendezvous/backend/model"
)

type Config struct {
	// MaxParticipants limits room occupancy, zero means unlimited.
	MaxParticipants int
}

// MemStore is the room registry. Every room held in db has at least one member.
type MemStore struct {
	mx              *sync.Mutex
	db              map[string]*model.Room
	maxParticipants int
}

func NewMemStore(cfg Config) *MemStore {
	return &MemStore{
		mx:              &sync.Mutex{},
		db:              make(map[string]*model.Room),
		maxParticipants: cfg.MaxParticipants,
	}
}

// Capacity is the per-room member limit, zero when rooms are unbounded.
func (ms *MemStore) Capacity() int {
	return ms.maxParticipants
}

func (ms *MemStore) JoinRoom(roomID string, userID string) (model.RoomSnapshot, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		room = openRoom(roomID, userID)
		ms.db[roomID] = room
		snap := snapshot(room)
		snap.Changed = true
		return snap, nil
	}

	if slices.Contains(room.Members, userID) {
		return snapshot(room), nil
	}
	if ms.maxParticipants > 0 && len(room.Members) >= ms.maxParticipants {
		return model.RoomSnapshot{}, model.ErrRoomIsFull
	}

	room.Members = append(room.Members, userID)
	snap := snapshot(room)
	snap.Changed = true
	return snap, nil
}

// LeaveRoom removes user from room. Returned flag is set when the room
// became empty and was deleted.
func (ms *MemStore) LeaveRoom(roomID string, userID string) (model.RoomSnapshot, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return model.RoomSnapshot{ID: roomID}, false
	}
	idx := slices.Index(room.Members, userID)
	if idx < 0 {
		return snapshot(room), false
	}

	room.Members = slices.Delete(room.Members, idx, idx+1)
	if len(room.Members) == 0 {
		delete(ms.db, roomID)
		return model.RoomSnapshot{ID: roomID, Changed: true}, true
	}

	var handover bool
	if room.Initiator == userID {
		room.Initiator = room.Members[0]
		handover = true
	}
	snap := snapshot(room)
	snap.Changed = true
	snap.InitiatorChanged = handover
	return snap, false
}

func (ms *MemStore) PeersOf(roomID string, userID string) []string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok || !slices.Contains(room.Members, userID) {
		return nil
	}
	peers := make([]string, 0, len(room.Members)-1)
	for _, member := range room.Members {
		if member != userID {
			peers = append(peers, member)
		}
	}
	return peers
}

// RoomsOf returns ids of all rooms that list user as a member.
func (ms *MemStore) RoomsOf(userID string) []string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	var rooms []string
	for id, room := range ms.db {
		if slices.Contains(room.Members, userID) {
			rooms = append(rooms, id)
		}
	}
	slices.Sort(rooms)
	return rooms
}

func (ms *MemStore) GetRoom(roomID string) (model.RoomSnapshot, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return model.RoomSnapshot{}, model.ErrRoomNotFound
	}
	return snapshot(room), nil
}

func (ms *MemStore) Exists(roomID string) bool {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	_, ok := ms.db[roomID]
	return ok
}

func (ms *MemStore) Stats() model.Stats {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	stats := model.Stats{Rooms: len(ms.db)}
	for _, room := range ms.db {
		stats.Participants += len(room.Members)
	}
	return stats
}

func openRoom(roomID, userID string) *model.Room {
	return &model.Room{
		ID:        roomID,
		Members:   []string{userID},
		Initiator: userID,
	}
}

func snapshot(room *model.Room) model.RoomSnapshot {
	return model.RoomSnapshot{
		ID:        room.ID,
		Members:   slices.Clone(room.Members),
		Initiator: room.Initiator,
	}
}
