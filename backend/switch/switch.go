package _switch

import (
	"errors"
	"sync"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrEndpointExists = errors.New("endpoint is already connected")
)

// Switch delivers announcements to connected endpoints.
// Sends never block: each endpoint owns a buffered outbound queue and
// an announcement that does not fit is dropped.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]model.Wire
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]model.Wire),
	}
}

func (sw *Switch) Connect(endpoint string, wire model.Wire) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.fwd[endpoint]; ok {
		return ErrEndpointExists
	}
	sw.fwd[endpoint] = wire

	sw.logger.Debug().
		Str("endpoint", endpoint).
		Msg("endpoint connected")
	return nil
}

func (sw *Switch) Disconnect(endpoint string) error {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	if _, ok := sw.fwd[endpoint]; !ok {
		return nil
	}
	delete(sw.fwd, endpoint)

	sw.logger.Debug().
		Str("endpoint", endpoint).
		Msg("endpoint disconnected")
	return nil
}

// Unicast sends announcement to a single endpoint.
func (sw *Switch) Unicast(dst string, ann model.Announcement) bool {
	ann.SRC = ""
	return sw.forward(ann, []string{dst}) == 1
}

// Broadcast sends announcement to every listed endpoint.
func (sw *Switch) Broadcast(dsts []string, ann model.Announcement) int {
	ann.SRC = "" // clear src just in case
	n := sw.forward(ann, dsts)
	if n == 0 && len(dsts) > 0 {
		sw.logger.Debug().
			Str("type", ann.Type).
			Msg("broadcast did not reach anyone")
	}
	return n
}

// BroadcastFrom sends announcement to every listed endpoint except src.
func (sw *Switch) BroadcastFrom(src string, dsts []string, ann model.Announcement) int {
	ann.SRC = src
	return sw.forward(ann, dsts)
}

func (sw *Switch) forward(ann model.Announcement, dsts []string) int {
	var sent int

	sw.mx.RLock()
	defer sw.mx.RUnlock()

	for _, dst := range dsts {
		if ann.SRC != "" && dst == ann.SRC {
			continue
		}
		wire, ok := sw.fwd[dst]
		if !ok {
			sw.logger.Debug().
				Str("type", ann.Type).
				Str("dst", dst).
				Msg("cannot forward, dst not found")
			continue
		}
		if send(ann, dst, wire.TX, &sw.logger) {
			sent++
		}
	}
	return sent
}

func send(ann model.Announcement, dst string, tx chan<- model.Announcement, logger *zerolog.Logger) bool {
	select {
	case tx <- ann:
		logger.Trace().
			Str("type", ann.Type).
			Str("dst", dst).
			Msg("announce is forwarded")
		return true
	default:
		logger.Error().
			Str("type", ann.Type).
			Str("dst", dst).
			Msg("dead endpoint, outbound queue is full")
		return false
	}
}
