// Package server holds the listener lifecycle shared by the api and signaling servers.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

// Serve listens with srv until ctx is done and then shuts it down gracefully.
// A listener failure other than regular close is reported to errc.
func Serve(ctx context.Context, srv *http.Server, logger *zerolog.Logger, errc chan<- error) {
	lErr := make(chan error, 1)
	go func() {
		lErr <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-lErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
		return
	case <-ctx.Done():
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), DefaultShutdownDeadline)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
