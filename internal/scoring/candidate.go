package scoring

import (
	"container/heap"
	"time"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CANDIDATE BOOK - Per-token evidence accumulation
// ═══════════════════════════════════════════════════════════════════════════════
//
// candidate lifecycle: observed → aggregating → (window fires | final evidence)
// → scored | discarded. One coordinator loop owns all timers via a heap of
// (fireAt, token); no per-candidate goroutines.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Evidence is one deduped signal attributed to a candidate
type Evidence struct {
	Signal types.RawSignal
	SeenAt time.Time
}

// Candidate accumulates evidence for one (chain, token) until its window fires
type Candidate struct {
	FP        types.Fingerprint
	FirstSeen time.Time
	WindowEnd time.Time
	// Window extensions never push past MaxWindowEnd
	MaxWindowEnd time.Time

	Evidence []Evidence
	Sources  map[string]time.Time // source_id -> last seen
}

func newCandidate(fp types.Fingerprint, now time.Time, window, maxExtend time.Duration) *Candidate {
	return &Candidate{
		FP:           fp,
		FirstSeen:    now,
		WindowEnd:    now.Add(window),
		MaxWindowEnd: now.Add(window + maxExtend),
		Sources:      make(map[string]time.Time),
	}
}

func (c *Candidate) add(sig types.RawSignal, now time.Time) {
	c.Evidence = append(c.Evidence, Evidence{Signal: sig, SeenAt: now})
	c.Sources[sig.SourceID] = now
}

// extend pushes the window by d, capped at MaxWindowEnd
func (c *Candidate) extend(now time.Time, d time.Duration) {
	end := now.Add(d)
	if end.After(c.MaxWindowEnd) {
		end = c.MaxWindowEnd
	}
	if end.After(c.WindowEnd) {
		c.WindowEnd = end
	}
}

// DistinctSources counts sources with evidence inside the window ending now
func (c *Candidate) DistinctSources(now time.Time, window time.Duration) int {
	n := 0
	for _, last := range c.Sources {
		if now.Sub(last) <= window {
			n++
		}
	}
	return n
}

// ═══════════════════════════════════════════════════════════════════════════════
// TIMER HEAP
// ═══════════════════════════════════════════════════════════════════════════════

type timerItem struct {
	fireAt time.Time
	fp     types.Fingerprint
}

type timerHeap []timerItem

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(timerItem)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (h *timerHeap) push(fireAt time.Time, fp types.Fingerprint) {
	heap.Push(h, timerItem{fireAt: fireAt, fp: fp})
}

func (h *timerHeap) peek() (timerItem, bool) {
	if h.Len() == 0 {
		return timerItem{}, false
	}
	return (*h)[0], true
}

func (h *timerHeap) pop() timerItem {
	return heap.Pop(h).(timerItem)
}
