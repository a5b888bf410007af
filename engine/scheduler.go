package engine

import (
	"container/heap"

	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// futureEvent is one entry in the scheduler's min-heap of pending
// requested-time wakeups (spec.md §4.1 "future_events").
type futureEvent struct {
	at  tstime.EngineTime
	seq uint64 // insertion sequence, breaks ties in FIFO order
	id  tsvalue.NodeID
}

type eventHeap []*futureEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*futureEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler tracks which nodes are eligible to run in the tick currently
// being assembled (pendingNow) and which nodes have asked to be woken at a
// specific future engine time (futureEvents). It implements
// tsvalue.Notifier so outputs can wake their subscribers without knowing
// anything about the engine (spec.md §4.1).
type Scheduler struct {
	rankOf map[tsvalue.NodeID]int

	pendingNow   map[tsvalue.NodeID]bool
	pendingOrder []tsvalue.NodeID // notification order; PendingInRankOrder sorts it by rank

	events eventHeap
	seq    uint64

	isScheduled map[tsvalue.NodeID]tstime.EngineTime // latest requested future time, if any

	// currentTick is set by the engine at the start of every tick so
	// Notify can compute "the tick after this one" for feedback edges.
	currentTick tstime.EngineTime
	// feedbackProxies maps a synthetic subscriber id (registered with an
	// output in place of the real consumer) to the real consumer id.
	// Notifying a proxy id schedules the real consumer one tick later
	// instead of adding it to the current tick's pending set, giving
	// feedback edges their required one-tick delay (spec.md §6.3, C8)
	// without tsvalue's Output/Cell types needing to know about it.
	feedbackProxies map[tsvalue.NodeID]tsvalue.NodeID

	// wake is signalled (non-blocking) whenever Notify adds something to
	// the pending set, so a REAL_TIME Run loop sleeping until the next
	// scheduled future event can be woken early by a push-source delivery
	// (spec.md §4.2).
	wake chan struct{}
}

// NewScheduler constructs an empty scheduler. rankOf supplies each node's
// topological rank (graph.Node.Rank) so PendingInRankOrder can produce a
// dependency-respecting evaluation order.
func NewScheduler(rankOf map[tsvalue.NodeID]int) *Scheduler {
	return &Scheduler{
		rankOf:      rankOf,
		pendingNow:  make(map[tsvalue.NodeID]bool),
		isScheduled: make(map[tsvalue.NodeID]tstime.EngineTime),
		wake:        make(chan struct{}, 1),
	}
}

// SetRank registers (or overrides) the topological rank used to order id
// within a tick's pending set — used when instantiating a nested graph's
// nodes, whose graph.Node.Rank values are only meaningful relative to
// their own template.
func (s *Scheduler) SetRank(id tsvalue.NodeID, rank int) {
	if s.rankOf == nil {
		s.rankOf = make(map[tsvalue.NodeID]int)
	}
	s.rankOf[id] = rank
}

// Wake returns the channel a REAL_TIME run loop selects on, alongside a
// timer for the next scheduled event, so an externally delivered push
// notification is never left waiting for the timer to expire.
func (s *Scheduler) Wake() <-chan struct{} { return s.wake }

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Notify implements tsvalue.Notifier: insert id into the pending-now set
// for the tick currently being evaluated, unless it is already there. If
// id is a registered feedback proxy, the real target is scheduled for the
// tick after the current one instead.
func (s *Scheduler) Notify(id tsvalue.NodeID) {
	if real, ok := s.feedbackProxies[id]; ok {
		s.ScheduleAt(s.currentTick+1, real)
		return
	}
	if s.pendingNow[id] {
		return
	}
	s.pendingNow[id] = true
	s.pendingOrder = append(s.pendingOrder, id)
	s.signalWake()
}

// BeginTick records now as the tick currently being evaluated, used by
// Notify to compute feedback delays.
func (s *Scheduler) BeginTick(now tstime.EngineTime) { s.currentTick = now }

// RegisterFeedback installs proxy as a stand-in subscriber id for real: an
// output subscribed to proxy (instead of directly to real) delivers its
// notifications one tick late.
func (s *Scheduler) RegisterFeedback(proxy, real tsvalue.NodeID) {
	if s.feedbackProxies == nil {
		s.feedbackProxies = make(map[tsvalue.NodeID]tsvalue.NodeID)
	}
	s.feedbackProxies[proxy] = real
}

// ScheduleAt requests that id be woken (added to pending-now) once the
// engine's clock reaches at. Re-requesting before the event fires replaces
// the previous request with the new time, matching "set_requested_time"
// semantics of a rescheduled timer.
func (s *Scheduler) ScheduleAt(at tstime.EngineTime, id tsvalue.NodeID) {
	s.seq++
	s.isScheduled[id] = at
	for i, ev := range s.events {
		if ev.id == id {
			ev.at, ev.seq = at, s.seq
			heap.Fix(&s.events, i)
			return
		}
	}
	heap.Push(&s.events, &futureEvent{at: at, seq: s.seq, id: id})
}

// IsScheduled reports whether id has an outstanding future wakeup request
// and, if so, the time it is scheduled for.
func (s *Scheduler) IsScheduled(id tsvalue.NodeID) (tstime.EngineTime, bool) {
	t, ok := s.isScheduled[id]
	return t, ok
}

// IsScheduledNow reports whether id is already in the current tick's
// pending set.
func (s *Scheduler) IsScheduledNow(id tsvalue.NodeID) bool { return s.pendingNow[id] }

// NextEventTime returns the earliest outstanding future event's time, and
// whether one exists — the engine uses this to decide how far to advance
// the clock between ticks in SIMULATION mode (spec.md §4.2).
func (s *Scheduler) NextEventTime() (tstime.EngineTime, bool) {
	if len(s.events) == 0 {
		return 0, false
	}
	return s.events[0].at, true
}

// DrainDue moves every future event due at or before now into the
// pending-now set, in heap (time, then insertion) order.
func (s *Scheduler) DrainDue(now tstime.EngineTime) {
	for len(s.events) > 0 && s.events[0].at <= now {
		ev := heap.Pop(&s.events).(*futureEvent)
		if at, ok := s.isScheduled[ev.id]; ok && at == ev.at {
			delete(s.isScheduled, ev.id)
		}
		s.Notify(ev.id)
	}
}

// PendingInRankOrder returns, and clears, the current pending-now set
// ordered by ascending node rank (spec.md §6.1's topological evaluation
// order within a tick). Nodes with equal rank keep first-notified order.
func (s *Scheduler) PendingInRankOrder() []tsvalue.NodeID {
	order := s.pendingOrder
	s.pendingOrder = nil
	s.pendingNow = make(map[tsvalue.NodeID]bool)

	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && s.rankOf[order[j-1]] > s.rankOf[order[j]] {
			order[j-1], order[j] = order[j], order[j-1]
			j--
		}
	}
	return order
}

// HasPending reports whether anything is waiting to evaluate this tick.
func (s *Scheduler) HasPending() bool { return len(s.pendingOrder) > 0 }

// HasFutureEvents reports whether any node has an outstanding future
// wakeup request.
func (s *Scheduler) HasFutureEvents() bool { return len(s.events) > 0 }
