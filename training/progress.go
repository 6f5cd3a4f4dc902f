package training

import (
	"sync"

	"go.uber.org/zap"
)

// Observer receives lifecycle and progress events from a training run.
// Implementations must never block the pipeline; delivery failures are the
// observer's problem, not the trainer's.
type Observer interface {
	// Log reports a named lifecycle event.
	Log(message string)
	// Progress reports metrics after a finished epoch.
	Progress(epoch int, accuracy, loss float64)
	// Completed reports that the run finished successfully.
	Completed()
}

// NopObserver discards all events. It stands in whenever no observer is
// attached so call sites never branch on nil.
type NopObserver struct{}

func (NopObserver) Log(string)                    {}
func (NopObserver) Progress(int, float64, float64) {}
func (NopObserver) Completed()                     {}

// LogObserver writes events to a zap logger. This is the always-on console
// sink of a run.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a logging observer. A nil logger is replaced with a
// no-op logger.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Log(message string) {
	o.logger.Info(message)
}

func (o *LogObserver) Progress(epoch int, accuracy, loss float64) {
	o.logger.Info("epoch finished",
		zap.Int("epoch", epoch),
		zap.Float64("accuracy", accuracy),
		zap.Float64("loss", loss),
	)
}

func (o *LogObserver) Completed() {
	o.logger.Info("training completed")
}

// EventKind discriminates the events carried over a ChannelObserver.
type EventKind int

const (
	EventLog EventKind = iota
	EventProgress
	EventCompleted
)

// Event is one observer notification in transport form, suitable for fan-out
// to a live client.
type Event struct {
	Kind     EventKind
	Message  string
	Epoch    int
	Accuracy float64
	Loss     float64
}

// ChannelObserver forwards events over a buffered channel without ever
// blocking the training loop: when the buffer is full or the observer has
// been closed, events are dropped. A disconnected live client therefore slows
// nothing down and fails nothing.
type ChannelObserver struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewChannelObserver creates a channel observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelObserver{events: make(chan Event, buffer)}
}

// Events returns the receive side of the observer.
func (o *ChannelObserver) Events() <-chan Event {
	return o.events
}

// Close stops delivery and closes the event channel. Events emitted after
// Close are dropped.
func (o *ChannelObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

func (o *ChannelObserver) emit(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.events <- event:
	default:
		// Slow consumer; drop rather than stall the run.
	}
}

func (o *ChannelObserver) Log(message string) {
	o.emit(Event{Kind: EventLog, Message: message})
}

func (o *ChannelObserver) Progress(epoch int, accuracy, loss float64) {
	o.emit(Event{Kind: EventProgress, Epoch: epoch, Accuracy: accuracy, Loss: loss})
}

func (o *ChannelObserver) Completed() {
	o.emit(Event{Kind: EventCompleted})
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

// Multi combines observers, skipping nils. With no usable observers it
// returns a NopObserver.
func Multi(observers ...Observer) Observer {
	var active MultiObserver
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}
	if len(active) == 0 {
		return NopObserver{}
	}
	return active
}

func (m MultiObserver) Log(message string) {
	for _, o := range m {
		o.Log(message)
	}
}

func (m MultiObserver) Progress(epoch int, accuracy, loss float64) {
	for _, o := range m {
		o.Progress(epoch, accuracy, loss)
	}
}

func (m MultiObserver) Completed() {
	for _, o := range m {
		o.Completed()
	}
}
