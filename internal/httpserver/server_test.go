package httpserver

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const TestServerPort = 39190

type ServerTestSuite struct {
	suite.Suite
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) TestServesUntilStopped() {
	var ticks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	stop, done := RunInterruptible("test", TestServerPort, mux, Job{
		Every: 5 * time.Millisecond,
		Run:   func() { ticks.Add(1) },
	})

	url := fmt.Sprintf("http://localhost:%d/health", TestServerPort)
	s.Eventually(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, time.Second, 20*time.Millisecond)
	s.Eventually(func() bool { return ticks.Load() > 0 }, time.Second, 5*time.Millisecond)

	close(stop)
	s.NoError(<-done)

	_, err := http.Get(url)
	s.Error(err)
}

func (s *ServerTestSuite) TestPortInUse() {
	stop, done := RunInterruptible("first", TestServerPort+1, http.NewServeMux())
	defer func() {
		stop <- struct{}{}
		<-done
	}()
	time.Sleep(50 * time.Millisecond)

	_, second := RunInterruptible("second", TestServerPort+1, http.NewServeMux())
	s.Error(<-second)
}
