package peripherals

import (
	"context"
	"sync"
	"time"

	"github.com/henrycontrol/turnkey/internal/logging"
)

// MinPollInterval is the fastest a PollerConfig may poll a device,
// matching the teacher's rate-limited streaming idiom
// (internal/connectionmgr/stream_ascii.go StartStreamASCII).
const MinPollInterval = 10 * time.Millisecond

// PollFunc reads one event from a real device. ok is false when the
// device had nothing to report this tick.
type PollFunc[T any] func(ctx context.Context) (event T, ok bool, err error)

// PollerConfig controls a Poller.
type PollerConfig[T any] struct {
	// Interval between polls. Clamped up to MinPollInterval.
	Interval time.Duration

	// Poll reads one event from the device.
	Poll PollFunc[T]

	// Out receives successfully polled events.
	Out chan<- T

	// Errors receives a single DeviceError when Poll fails; the poller
	// stops after delivering it.
	Errors chan<- DeviceError

	// LogPrefix tags log lines for correlation.
	LogPrefix string
}

// Poller drives a real peripheral device by calling PollerConfig.Poll on
// a fixed interval, adapting the push-based CardReader/Biometric/Keypad
// interfaces to a device that must be actively read.
type Poller[T any] struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartPoller launches a Poller and begins calling cfg.Poll immediately.
func StartPoller[T any](parent context.Context, cfg PollerConfig[T]) *Poller[T] {
	if cfg.Interval < MinPollInterval {
		cfg.Interval = MinPollInterval
	}

	ctx, cancel := context.WithCancel(parent)
	p := &Poller[T]{cancel: cancel}
	logger := logging.Default().With(logging.Component("peripherals.poller"))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			event, ok, err := cfg.Poll(ctx)
			if err != nil {
				logger.Warn("poll failed, stopping", logging.Field{Key: "prefix", Value: cfg.LogPrefix}, logging.Field{Key: "error", Value: err.Error()})
				if cfg.Errors != nil {
					cfg.Errors <- DeviceError{Cause: err}
				}
				return
			}
			if !ok {
				continue
			}
			if derr := deliver(cfg.Out, event); derr != nil {
				logger.Warn("dropping polled event, consumer not keeping up", logging.Field{Key: "prefix", Value: cfg.LogPrefix})
			}
		}
	}()

	return p
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Poller[T]) Stop() {
	p.cancel()
	p.wg.Wait()
}
