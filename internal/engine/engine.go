// Package engine is the orchestrator: it wires the scheduler, node
// runtimes, and link layer together into the dispatch loop spec.md §2
// describes — pull the earliest due event, route an Arrival onto its
// destination's input queue (waking it if idle), or dispatch a Ready
// node's outputs across its outgoing links and, if its queue is
// non-empty, resume it in the same tick.
package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ersantana/bobcatsim/internal/eventbus"
	"github.com/ersantana/bobcatsim/internal/position"
	"github.com/ersantana/bobcatsim/internal/simlink"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
	"github.com/ersantana/bobcatsim/internal/simstats"
	"github.com/ersantana/bobcatsim/internal/simtime"
)

// Config holds the knobs spec.md §6's CLI surface maps onto an Engine.
type Config struct {
	EndSimTime float64
	Seed       int64
	Epoch      time.Time
	RealTime   simtime.RealTimeConfig
	Workers    int // 0 disables the offload pool
}

// StepError is a runtime step error (spec.md §7): fatal, carrying the
// diagnostic the engine's abort path logs.
type StepError struct {
	Node      string
	MessageID string
	SimTime   float64
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("runtime step error: node=%s message=%s simtime=%g: %v",
		e.Node, e.MessageID, e.SimTime, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Warner receives non-fatal diagnostics: dispatch warnings (destination
// node doesn't exist) and real-time overrun warnings under non-strict
// pacing. Both are silent-by-design otherwise (spec.md §7).
type Warner func(format string, args ...interface{})

// Engine runs a resolved node/link graph to completion.
type Engine struct {
	scheduler *simtime.Scheduler
	pacer     *simtime.Pacer
	pool      *WorkerPool
	stop      *simtime.StopToken

	nodeOrder []string
	nodes     map[string]*simnode.Runtime
	edges     map[string][]*simlink.Edge
	inDegree  map[string]int

	stats *simstats.Registry
	bus   *eventbus.Bus
	rng   *rand.Rand
	epoch time.Time

	warnedEdges map[string]bool
	warn        Warner

	endSimTime float64
}

// New creates an empty engine ready to have nodes and edges added.
func New(cfg Config, warn Warner) *Engine {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	e := &Engine{
		scheduler:   simtime.NewScheduler(),
		stop:        &simtime.StopToken{},
		nodes:       make(map[string]*simnode.Runtime),
		edges:       make(map[string][]*simlink.Edge),
		inDegree:    make(map[string]int),
		stats:       simstats.NewRegistry(),
		bus:         eventbus.NewBus(),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		epoch:       cfg.Epoch,
		warnedEdges: make(map[string]bool),
		warn:        warn,
		endSimTime:  cfg.EndSimTime,
	}

	if cfg.RealTime.Enabled {
		e.pacer = simtime.NewPacer(cfg.RealTime, cfg.Epoch)
	}
	if cfg.Workers > 0 {
		e.pool = NewWorkerPool(cfg.Workers)
	}

	return e
}

// RNG returns the engine-owned random stream: per spec.md §9, nodes
// hold a reference to this rather than using a process-wide stream.
func (e *Engine) RNG() *rand.Rand { return e.rng }

// Epoch returns the scenario epoch this run was constructed with.
func (e *Engine) Epoch() time.Time { return e.epoch }

// EventBus returns the engine's structured event bus.
func (e *Engine) EventBus() *eventbus.Bus { return e.bus }

// Stats returns the per-node statistics registry.
func (e *Engine) Stats() *simstats.Registry { return e.stats }

// Now returns the scheduler's current virtual time. Behaviors that need
// to know the current simtime (a propagator sampling its MetaNode, a
// fault injector timing a synthetic failure) capture this via a closure
// at wiring time, since Behavior.Step itself is not passed a clock.
func (e *Engine) Now() float64 { return e.scheduler.Now() }

// Stop requests early termination, honored between events (spec.md §5).
func (e *Engine) Stop() { e.stop.Stop() }

// Close releases engine resources (the worker pool, if any).
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// AddNode registers a node's behavior and optional attached meta-node.
func (e *Engine) AddNode(name string, behavior simnode.Behavior, meta position.MetaNode) *simnode.Runtime {
	r := simnode.NewRuntime(name, behavior, e.stats.For(name))
	r.MetaNode = meta
	e.nodes[name] = r
	e.nodeOrder = append(e.nodeOrder, name)
	if _, ok := e.inDegree[name]; !ok {
		e.inDegree[name] = 0
	}
	return r
}

// AddEdge appends an outgoing edge from source to edge.Destination, in
// definition order. The destination need not already exist — a
// dangling reference is caught at dispatch time as a warning, matching
// spec.md §7's "Output to a destination that does not exist" handling.
func (e *Engine) AddEdge(source string, edge *simlink.Edge) {
	e.edges[source] = append(e.edges[source], edge)
	e.inDegree[edge.Destination]++
}

// NodeNames returns every registered node name, in registration order.
func (e *Engine) NodeNames() []string {
	out := make([]string, len(e.nodeOrder))
	copy(out, e.nodeOrder)
	return out
}

// Node returns a node's runtime, or nil.
func (e *Engine) Node(name string) *simnode.Runtime {
	return e.nodes[name]
}

// arrivalPayload is the simtime.Event payload for an Arrival.
type arrivalPayload struct {
	destination string
	msg         *simmsg.Message
}

// readyPayload is the simtime.Event payload for a Ready event.
type readyPayload struct {
	node            string
	outputs         []*simmsg.Message
	setupDelay      float64
	processingDelay float64
}

// Run drives the scheduler to completion: bootstraps every zero-in-
// degree node, then processes Arrival and Ready events until the heap
// empties, Stop is called, or EndSimTime is reached.
func (e *Engine) Run() error {
	e.bus.Publish(eventbus.New(eventbus.TypeRunStarted, 0, "", nil))

	for _, name := range e.nodeOrder {
		if e.inDegree[name] == 0 {
			if err := e.invokeAndSchedule(name, nil, 0); err != nil {
				return err
			}
		}
	}

	var runErr error
	e.scheduler.Run(e.endSimTime, e.stop, func(now float64, ev *simtime.Event) {
		if runErr != nil {
			return
		}
		if e.pacer != nil {
			if err := e.pacer.Wait(now, func(msg string) {
				e.warn("%s", msg)
				e.bus.Publish(eventbus.New(eventbus.TypeRealTimeWarning, now, "", map[string]interface{}{"message": msg}))
			}); err != nil {
				runErr = err
				e.stop.Stop()
				return
			}
		}

		var err error
		switch ev.Kind {
		case simtime.Arrival:
			err = e.handleArrival(now, ev.Payload.(arrivalPayload))
		case simtime.Ready:
			err = e.handleReady(now, ev.Payload.(readyPayload))
		case simtime.Tick:
			// Reserved for fault-injection and other internal
			// wakeups; nothing to do by default.
		}
		if err != nil {
			runErr = err
			e.stop.Stop()
		}
	})

	e.bus.Publish(eventbus.New(eventbus.TypeRunEnded, e.scheduler.Now(), "", nil))
	return runErr
}

// handleArrival enqueues a message on its destination's input queue and,
// if the node is idle, invokes its step immediately.
func (e *Engine) handleArrival(now float64, p arrivalPayload) error {
	runtime, ok := e.nodes[p.destination]
	if !ok {
		// A scheduled arrival can only reference a destination that
		// existed when the edge was dispatched; if the node was
		// somehow removed, drop silently. Unreachable in the current
		// engine (nodes are never removed mid-run) but defensive.
		return nil
	}

	p.msg.ArrivedAt = now
	runtime.Enqueue(p.msg)

	e.bus.Publish(eventbus.New(eventbus.TypeArrival, now, p.destination, map[string]interface{}{
		"messageId":  p.msg.ID,
		"queueDepth": runtime.QueueLen(),
	}))

	if runtime.IsIdle() {
		next := runtime.DequeueNext()
		return e.invokeAndSchedule(p.destination, next, now)
	}
	return nil
}

// invokeAndSchedule calls a node's step, reserves it for the resulting
// window, stamps per-hop accounting onto its outputs, and schedules the
// Ready event that will dispatch them.
func (e *Engine) invokeAndSchedule(name string, input *simmsg.Message, now float64) error {
	runtime := e.nodes[name]

	var waitTime float64
	if input != nil {
		waitTime = now - input.ArrivedAt
	}

	e.bus.Publish(eventbus.New(eventbus.TypeReservationStart, now, name, nil))

	var result simnode.Result
	var err error
	if e.pool != nil {
		result, err = e.pool.Run(func() (simnode.Result, error) { return runtime.InvokeStep(input) })
	} else {
		result, err = runtime.InvokeStep(input)
	}
	if err != nil {
		e.bus.Publish(eventbus.New(eventbus.TypeStepError, now, name, map[string]interface{}{
			"messageId": runtime.LastMessageID(),
			"error":     err.Error(),
		}))
		return &StepError{Node: name, MessageID: runtime.LastMessageID(), SimTime: now, Err: err}
	}

	readyAt := result.ReadyAt(now)
	processingTime := result.SetupDelay + result.ProcessingDelay

	for _, out := range result.Outputs {
		out.Hop.TimeSent = readyAt
		out.Hop.WaitTime = waitTime
		out.Hop.ProcessingTime = processingTime
	}

	runtime.Reserve(readyAt)
	e.scheduler.Schedule(readyAt, simtime.Ready, readyPayload{
		node:            name,
		outputs:         result.Outputs,
		setupDelay:      result.SetupDelay,
		processingDelay: result.ProcessingDelay,
	})
	return nil
}

// handleReady dispatches a node's outputs across its outgoing edges,
// then either resumes it immediately (same tick) if its queue is
// non-empty, or releases it to idle.
func (e *Engine) handleReady(now float64, p readyPayload) error {
	runtime := e.nodes[p.node]
	edges := e.edges[p.node]

	e.bus.Publish(eventbus.New(eventbus.TypeReservationEnd, now, p.node, map[string]interface{}{
		"outputs": len(p.outputs),
	}))

	for _, out := range p.outputs {
		runtime.Stats.RecordDispatch(out.Hop.WaitTime, out.Hop.ProcessingTime)

		if len(edges) == 0 {
			continue // no outgoing edges: message consumed silently (spec.md §8 boundary behavior)
		}

		simlink.Dispatch(edges, out, now,
			func(edge *simlink.Edge, copy *simmsg.Message, arrival float64) {
				if _, exists := e.nodes[edge.Destination]; !exists {
					e.warnOnce(p.node, edge.Destination, now)
					return
				}
				e.scheduler.Schedule(arrival, simtime.Arrival, arrivalPayload{destination: edge.Destination, msg: copy})
				e.bus.Publish(eventbus.New(eventbus.TypeDispatch, now, p.node, map[string]interface{}{
					"to":             edge.Destination,
					"messageId":      copy.ID,
					"arrival":        arrival,
					"waitTime":       out.Hop.WaitTime,
					"processingTime": out.Hop.ProcessingTime,
				}))
			},
			func(edge *simlink.Edge) {
				runtime.Stats.RecordEdgeDrop(edge.Destination)
				e.bus.Publish(eventbus.New(eventbus.TypeDrop, now, p.node, map[string]interface{}{
					"to":        edge.Destination,
					"messageId": out.ID,
				}))
			},
		)
	}

	if !runtime.QueueEmpty() {
		next := runtime.DequeueNext()
		return e.invokeAndSchedule(p.node, next, now)
	}

	if active, isSource := simnode.IsActiveSource(runtime.Behavior); isSource && active {
		return e.invokeAndSchedule(p.node, nil, now)
	}

	runtime.Release()
	return nil
}

// warnOnce logs (and publishes) a dispatch warning for one edge exactly
// once per run, per spec.md §7.
func (e *Engine) warnOnce(source, destination string, now float64) {
	key := source + "->" + destination
	if e.warnedEdges[key] {
		return
	}
	e.warnedEdges[key] = true
	e.warn("dispatch warning: %s -> %s: destination node does not exist", source, destination)
	e.bus.Publish(eventbus.New(eventbus.TypeDispatchWarning, now, source, map[string]interface{}{
		"to": destination,
	}))
}
