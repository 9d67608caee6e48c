package main

import (
	"errors"
	"fmt"

	"github.com/adwski/webrtc-rendezvous/backend/roomid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const defaultSendQueueSize = 64

var errInvalidConfig = errors.New("invalid config")

type config struct {
	apiListenAddr string
	wsListenAddr  string
	staticDir     string
	logLevel      zerolog.Level
	roomCapacity  int
	sendQueueSize int
	roomIDLength  int
}

func parseConfig(args []string) (*config, error) {
	fs := pflag.NewFlagSet("rendezvous", pflag.ContinueOnError)

	var (
		cfg      = &config{}
		logLevel string
	)
	fs.StringVarP(&cfg.apiListenAddr, "api-listen-addr", "a", ":8080", "api listen address")
	fs.StringVarP(&cfg.wsListenAddr, "ws-listen-addr", "w", ":8888", "websocket signaling listen address")
	fs.StringVarP(&logLevel, "log-level", "l", "debug", "log level")
	fs.StringVarP(&cfg.staticDir, "static-dir", "s", "", "directory with client page, empty disables static routes")
	fs.IntVarP(&cfg.roomCapacity, "room-capacity", "c", 0, "max participants per room, 0 means unlimited")
	fs.IntVar(&cfg.sendQueueSize, "send-queue-size", defaultSendQueueSize, "outbound announcements buffered per connection")
	fs.IntVar(&cfg.roomIDLength, "room-id-length", roomid.DefaultLength, "length of generated room ids")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return nil, errors.Join(errInvalidConfig, err)
	}
	cfg.logLevel = lvl

	switch {
	case cfg.roomCapacity < 0:
		return nil, fmt.Errorf("%w: room-capacity must not be negative", errInvalidConfig)
	case cfg.sendQueueSize <= 0:
		return nil, fmt.Errorf("%w: send-queue-size must be positive", errInvalidConfig)
	case cfg.roomIDLength <= 0:
		return nil, fmt.Errorf("%w: room-id-length must be positive", errInvalidConfig)
	}
	return cfg, nil
}
