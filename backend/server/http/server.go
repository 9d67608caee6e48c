package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/adwski/webrtc-rendezvous/backend/server"
	"github.com/rs/zerolog"
)

const roomPage = "index.html"

type RoomService interface {
	NewRoomID() (string, error)
	GetRoom(roomID string) (model.RoomSnapshot, error)
	Stats() model.Stats
}

type NewRoomResponse struct {
	RoomID string `json:"room_id"`
}

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger    zerolog.Logger
	svc       RoomService
	staticDir string
	*http.Server
}

type Config struct {
	Logger      *zerolog.Logger
	RoomService RoomService
	ListenAddr  string

	// StaticDir holds the client page, static routes are disabled when empty.
	StaticDir string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:    cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:       cfg.RoomService,
		staticDir: cfg.StaticDir,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/room", srv.createRoom)
	r.HandleFunc("GET /api/room/{roomID}", srv.getRoom)
	r.HandleFunc("GET /api/stats", srv.stats)
	r.HandleFunc("GET /healthz", healthz)
	r.HandleFunc("GET /new-room", srv.newRoomRedirect)
	if srv.staticDir != "" {
		r.HandleFunc("GET /room/{roomID}", srv.roomPage)
		r.Handle("GET /", http.FileServer(http.Dir(srv.staticDir)))
	}

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: cors(r),
	}
	return srv
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (srv *Server) createRoom(w http.ResponseWriter, _ *http.Request) {
	roomID, err := srv.svc.NewRoomID()
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to generate room id")
		srv.writeJSON(w, http.StatusInternalServerError, &GenericResponse{Error: err.Error()})
		return
	}
	srv.logger.Debug().Str("roomID", roomID).Msg("room id generated")
	srv.writeJSON(w, http.StatusOK, &GenericResponse{
		Message: "OK",
		Data:    NewRoomResponse{RoomID: roomID},
	})
}

func (srv *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := srv.svc.GetRoom(r.PathValue("roomID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		srv.writeJSON(w, status, &GenericResponse{Error: err.Error()})
		return
	}
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Data: room})
}

func (srv *Server) stats(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Data: srv.svc.Stats()})
}

func (srv *Server) newRoomRedirect(w http.ResponseWriter, r *http.Request) {
	roomID, err := srv.svc.NewRoomID()
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to generate room id")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/room/"+url.PathEscape(roomID), http.StatusFound)
}

func (srv *Server) roomPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(srv.staticDir, roomPage))
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, resp *GenericResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer wg.Done()
	server.Serve(ctx, srv.Server, &srv.logger, errc)
	srv.logger.Debug().Msg("server stopped")
}
