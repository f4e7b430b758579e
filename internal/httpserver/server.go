// Package httpserver runs the HTTP servers of the storefront API and the platform emulator.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

// Job is periodic housekeeping run next to the server until it stops.
type Job struct {
	Every time.Duration
	Run   func()
}

// RunInterruptible runs the server in the background in a Go routine and immediately returns a chan to
// the caller. The caller can then send a signal to the chan (or close it) to gracefully shutdown the
// server. done receives the server's exit error. It's up to the caller to wait for in the main Go
// routine to keep the server running.
func RunInterruptible(name string, port int, h http.Handler, jobs ...Job) (stop chan<- struct{}, done <-chan error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// one-shot channels for control & completion
	stopCh := make(chan struct{})
	doneCh := make(chan error, 1) // buffered so goroutines can finish without blocking
	quit := make(chan struct{})

	go func() {
		log.Printf("%s listening on %s\n", name, srv.Addr)
		err := srv.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown; treat that as clean exit
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	for _, j := range jobs {
		go runJob(j, quit)
	}

	go func() {
		<-stopCh
		close(quit)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx) // graceful; in-flight requests get time to finish
	}()
	return stopCh, doneCh
}

func runJob(j Job, quit <-chan struct{}) {
	ticker := time.NewTicker(j.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Run()
		case <-quit:
			return
		}
	}
}
