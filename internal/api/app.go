// Package api is the storefront HTTP API the UI layer talks to.
package api

import (
	"cartsync/internal/httpserver"
	"time"

	log "github.com/sirupsen/logrus"
)

const purgeInterval = time.Minute

// RunServerInterruptible serves the storefront API until stop receives or is closed. Idle shopper
// engines are purged every minute.
func RunServerInterruptible(port int, h *Handler) (stop chan<- struct{}, done <-chan error) {
	return httpserver.RunInterruptible("cartsync", port, h.Router(), httpserver.Job{
		Every: purgeInterval,
		Run: func() {
			if n := h.PurgeIdle(); n > 0 {
				log.WithField("engines", n).Debug("idle engines dropped")
			}
		},
	})
}
