package session

import (
	"sync"
	"time"

	"github.com/verte-zerg/tiertrain/internal/clock"
)

// ticker reports elapsed time from a background goroutine. Delivery to the
// callback goes through a one-slot channel so a slow callback never holds
// up the tick loop.
type ticker struct {
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func startTicker(clk clock.Clock, start time.Time, interval time.Duration, onTick func(time.Duration)) *ticker {
	t := &ticker{done: make(chan struct{})}
	if onTick == nil {
		return t
	}
	updates := make(chan time.Duration, 1)

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		defer close(updates)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-tk.C:
				select {
				case updates <- clk.Now().Sub(start):
				default:
				}
			}
		}
	}()
	go func() {
		defer t.wg.Done()
		for d := range updates {
			onTick(d)
		}
	}()
	return t
}

// stop ends both goroutines and waits for them. Safe on a nil ticker.
func (t *ticker) stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.done) })
	t.wg.Wait()
}
