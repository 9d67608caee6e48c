package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait = 5 * time.Second
	closeWait = 2 * time.Second

	// pongWait - pingInterval is how long client has to answer a ping
	pingInterval = 5 * time.Second
	pongWait     = 7 * time.Second

	// SDP with a full candidate list does not fit in less
	maxMessageSize = 64 * 1024
)

// peer binds one websocket to its hub wire. The read side is the only
// writer of wire.RX and closes it on exit, the write side is the only
// reader of wire.TX.
type peer struct {
	id     string
	conn   *websocket.Conn
	wire   model.Wire
	logger zerolog.Logger
}

// run pumps messages both ways until either side fails or ctx is cancelled.
func (p *peer) run(ctx context.Context, cancel context.CancelFunc) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop(ctx)
		cancel()
		// expire a pending read so readLoop notices
		_ = p.conn.SetReadDeadline(time.Now())
	}()

	p.readLoop(ctx)
	cancel()
	<-writerDone
	p.close(websocket.CloseNormalClosure, "")
}

func (p *peer) readLoop(ctx context.Context) {
	defer close(p.wire.RX)

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		p.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				p.logger.Debug().Int("code", ce.Code).Msg("peer closed connection")
			case ctx.Err() != nil:
			default:
				p.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		ann, err := decodeInbound(msg)
		if err != nil {
			p.logger.Debug().Err(err).Msg("inbound message rejected")
			p.reject(err)
			continue
		}
		ann.SRC = p.id

		select {
		case p.wire.RX <- ann:
		case <-ctx.Done():
			return
		}
	}
}

func (p *peer) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		case ann := <-p.wire.TX:
			if err := p.write(ann); err != nil {
				p.logger.Warn().Err(err).Str("type", ann.Type).Msg("write failed")
				return
			}
		}
	}
}

func (p *peer) write(ann model.Announcement) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteJSON(&ann)
}

// reject reports a refused message back to the client without blocking.
func (p *peer) reject(reason error) {
	ann, err := model.NewAnnouncement(model.AnnouncementTypeError, model.Error{Reason: reason.Error()})
	if err != nil {
		return
	}
	select {
	case p.wire.TX <- ann:
	default:
		p.logger.Warn().Msg("outbound queue is full, rejection dropped")
	}
}

func (p *peer) close(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		p.logger.Debug().Err(err).Msg("close frame not sent")
	}
	if err = p.conn.Close(); err != nil {
		p.logger.Debug().Err(err).Msg("failed to close connection")
	}
}
