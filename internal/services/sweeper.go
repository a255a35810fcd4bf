package services

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically deletes expired unauthorized device records.
// It is an explicitly owned resource: tests can construct a DeviceService
// and call SweepExpired directly without ever starting a Sweeper.
type Sweeper struct {
	devices  *DeviceService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(devices *DeviceService, interval time.Duration) *Sweeper {
	return &Sweeper{
		devices:  devices,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop. One sweep runs immediately so
// a restart does not wait a full interval to clear stale records.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)

		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep() {
	deleted, err := s.devices.SweepExpired(context.Background())
	if err != nil {
		log.Printf("[Sweep] failed to delete expired device records: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[Sweep] deleted %d expired device record(s)", deleted)
	}
}
