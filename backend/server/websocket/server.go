package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/adwski/webrtc-rendezvous/backend/server"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultSendQueueSize = 64

	sessionReleaseTimeout = 2 * time.Second
	handshakeTimeout      = 3 * time.Second
	bufferSize            = 16 * 1024
)

type (
	SignalingService interface {
		CreateSignalingSession(context.Context, string, model.Wire) error
		DeleteSignalingSession(context.Context, string) error
	}

	Config struct {
		Logger           *zerolog.Logger
		SignalingService SignalingService
		ListenAddr       string

		// SendQueueSize is the number of outbound announcements buffered per connection.
		SendQueueSize int
	}

	Server struct {
		*http.Server

		svc       SignalingService
		upgrader  *websocket.Upgrader
		logger    zerolog.Logger
		sendQueue int
	}
)

func NewServer(cfg Config) *Server {
	sendQueue := cfg.SendQueueSize
	if sendQueue <= 0 {
		sendQueue = defaultSendQueueSize
	}
	srv := &Server{
		logger:    cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:       cfg.SignalingService,
		sendQueue: sendQueue,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   bufferSize,
			WriteBufferSize:  bufferSize,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /signal", srv.accept)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer wg.Done()
	server.Serve(ctx, srv.Server, &srv.logger, errc)
	srv.logger.Debug().Msg("server stopped")
}

// accept upgrades the request and hands the connection to the hub.
// Every connection gets a fresh id that lives as long as the socket.
func (srv *Server) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied with an error status
		srv.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	p := &peer{
		id:   id,
		conn: conn,
		wire: model.NewWire(srv.sendQueue),
		logger: srv.logger.With().
			Str("userID", id).
			Logger(),
	}

	// outlives the request, cancelled by the peer itself
	ctx, cancel := context.WithCancel(context.Background())
	if err = srv.svc.CreateSignalingSession(ctx, id, p.wire); err != nil {
		srv.logger.Error().Err(err).Msg("failed to create signaling session")
		cancel()
		p.close(websocket.CloseInternalServerErr, "session unavailable")
		return
	}
	p.logger.Debug().Str("remote", r.RemoteAddr).Msg("peer connected")

	go func() {
		p.run(ctx, cancel)
		srv.release(p)
	}()
}

func (srv *Server) release(p *peer) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionReleaseTimeout)
	defer cancel()
	if err := srv.svc.DeleteSignalingSession(ctx, p.id); err != nil {
		p.logger.Error().Err(err).Msg("failed to release signaling session")
		return
	}
	p.logger.Debug().Msg("peer released")
}
