package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	httpServer "github.com/adwski/webrtc-rendezvous/backend/server/http"
	websocketServer "github.com/adwski/webrtc-rendezvous/backend/server/websocket"
	"github.com/adwski/webrtc-rendezvous/backend/service"
	store "github.com/adwski/webrtc-rendezvous/backend/storage/memory"
	sw "github.com/adwski/webrtc-rendezvous/backend/switch"
	"github.com/rs/zerolog"
)

type runner interface {
	Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error)
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse configuration")
	}
	logger = logger.Level(cfg.logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, cfg, &logger); err != nil {
		logger.Error().Err(err).Msg("rendezvous stopped with error")
		cancel()
		os.Exit(1)
	}
}

// run serves signaling and api until ctx is done or one of the servers fails.
func run(ctx context.Context, cfg *config, logger *zerolog.Logger) error {
	hub := service.NewService(service.Config{
		RoomStore: store.NewMemStore(store.Config{
			MaxParticipants: cfg.roomCapacity,
		}),
		Switch:       sw.NewSwitch(logger),
		Logger:       logger,
		RoomIDLength: cfg.roomIDLength,
	})
	servers := []runner{
		httpServer.NewServer(httpServer.Config{
			Logger:      logger,
			RoomService: hub,
			ListenAddr:  cfg.apiListenAddr,
			StaticDir:   cfg.staticDir,
		}),
		websocketServer.NewServer(websocketServer.Config{
			Logger:           logger,
			SignalingService: hub,
			ListenAddr:       cfg.wsListenAddr,
			SendQueueSize:    cfg.sendQueueSize,
		}),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := &sync.WaitGroup{}
	errc := make(chan error, len(servers))
	for _, srv := range servers {
		wg.Add(1)
		go srv.Run(ctx, wg, errc)
	}

	var err error
	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
	return err
}
