package actor

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/lkv/lib/queue"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger for the store actor
var Logger = logger.GetLogger("store")

// DefaultQueueSize is the capacity of the command queue if none is given.
const DefaultQueueSize = 32

// State is the lifecycle state of an Actor.
type State uint32

const (
	StateRunning State = iota // accepting and applying commands
	StateStopped              // Run returned, no command will be applied anymore
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Actor owns the key-value map. Only the goroutine executing Run reads or writes it.
type Actor struct {
	data  map[string]string
	queue *queue.MPSC[command]

	started atomic.Bool
	state   atomic.Uint32
	done    chan struct{}

	// keys mirrors len(data) for the metrics gauge, which is read from other goroutines
	keys atomic.Int64

	metrics *metrics.Set
	gets    *metrics.Counter
	sets    *metrics.Counter
}

// New creates a new actor with an empty map and a command queue of the given capacity
// (DefaultQueueSize if queueSize < 1). It returns the actor and the first handle to it.
// The actor does nothing until Run is called.
func New(queueSize int) (*Actor, *Handle) {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	a := &Actor{
		data:    make(map[string]string),
		queue:   queue.NewMPSC[command](queueSize),
		done:    make(chan struct{}),
		metrics: metrics.NewSet(),
	}
	a.state.Store(uint32(StateRunning))

	a.gets = a.metrics.NewCounter(`lkv_store_commands_total{op="get"}`)
	a.sets = a.metrics.NewCounter(`lkv_store_commands_total{op="set"}`)
	a.metrics.NewGauge(`lkv_store_keys`, func() float64 {
		return float64(a.keys.Load())
	})
	a.metrics.NewGauge(`lkv_store_queue_length`, func() float64 {
		return float64(a.queue.Len())
	})
	a.metrics.NewGauge(`lkv_store_queue_capacity`, func() float64 {
		return float64(a.queue.Cap())
	})

	return a, newHandle(a.queue, a.done)
}

// Run applies commands until every handle was closed or ctx is done.
// It must be called exactly once; further calls return immediately.
//
// On return the command queue is closed (blocked producers get an error) and Done() is closed.
func (a *Actor) Run(ctx context.Context) {
	if !a.started.CompareAndSwap(false, true) {
		Logger.Warningf("store actor is already running")
		return
	}
	defer a.stop()

	Logger.Debugf("store actor started (queue capacity %d)", a.queue.Cap())

	for {
		select {
		case cmd, ok := <-a.queue.Recv():
			if !ok {
				Logger.Debugf("all store handles closed, store actor stops with %d keys", len(a.data))
				return
			}
			a.apply(cmd)
		case <-ctx.Done():
			Logger.Infof("store actor cancelled (%v), %d queued commands are dropped", ctx.Err(), a.queue.Len())
			return
		}
	}
}

// apply executes a single command against the map.
func (a *Actor) apply(cmd command) {
	switch cmd.op {
	case opGet:
		a.gets.Inc()
		value, found := a.data[cmd.key]
		// reply has capacity 1 and is written exactly once, this never blocks
		cmd.reply <- result{value: value, found: found}
	case opSet:
		a.sets.Inc()
		if _, exists := a.data[cmd.key]; !exists {
			a.keys.Add(1)
		}
		a.data[cmd.key] = cmd.value
	default:
		Logger.Errorf("store actor: dropping command with unknown op %s", cmd.op)
	}
}

func (a *Actor) stop() {
	a.queue.Close()
	a.state.Store(uint32(StateStopped))
	close(a.done)
}

// Done returns a channel that is closed once Run returned.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// State returns the current lifecycle state.
func (a *Actor) State() State {
	return State(a.state.Load())
}

// Len returns the number of keys in the store.
func (a *Actor) Len() int {
	return int(a.keys.Load())
}

// Metrics returns the metric set of the actor (command counters, key count and queue fill level).
func (a *Actor) Metrics() *metrics.Set {
	return a.metrics
}
