package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL BUS - Fan-in of all adapter streams + per-token deduplication
// ═══════════════════════════════════════════════════════════════════════════════
//
// Adapters publish concurrently; a single consumer drains Signals(). Two dedup
// windows apply before a signal is forwarded:
//
//   (chain, token, source) suppressed within sourceWindow  (default 30m)
//   (chain, token)         suppressed within globalWindow  (default 1m)
//
// Publish never blocks an adapter: if the bus is full the signal is dropped
// and counted.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Bus struct {
	mu sync.Mutex

	out    chan types.RawSignal
	closed bool

	sourceWindow time.Duration
	globalWindow time.Duration

	lastBySource map[sourceKey]time.Time
	lastGlobal   map[types.Fingerprint]time.Time

	now func() time.Time
}

type sourceKey struct {
	fp     types.Fingerprint
	source string
}

// New creates a bus with the given capacity and dedup windows
func New(capacity int, sourceWindow, globalWindow time.Duration) *Bus {
	return &Bus{
		out:          make(chan types.RawSignal, capacity),
		sourceWindow: sourceWindow,
		globalWindow: globalWindow,
		lastBySource: make(map[sourceKey]time.Time),
		lastGlobal:   make(map[types.Fingerprint]time.Time),
		now:          time.Now,
	}
}

// Signals returns the unified output stream. Single consumer.
func (b *Bus) Signals() <-chan types.RawSignal {
	return b.out
}

// Publish enqueues a signal unless a dedup window suppresses it.
// Returns true if the signal was forwarded.
func (b *Bus) Publish(sig types.RawSignal) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}

	now := b.now()
	fp := sig.Fingerprint()
	sk := sourceKey{fp: fp, source: sig.SourceID}

	if last, ok := b.lastBySource[sk]; ok && now.Sub(last) < b.sourceWindow {
		b.mu.Unlock()
		metrics.SignalsDeduped.WithLabelValues("source").Inc()
		return false
	}
	if last, ok := b.lastGlobal[fp]; ok && now.Sub(last) < b.globalWindow {
		// Source window still starts: the source did mention the token.
		b.lastBySource[sk] = now
		b.mu.Unlock()
		metrics.SignalsDeduped.WithLabelValues("global").Inc()
		return false
	}

	b.lastBySource[sk] = now
	b.lastGlobal[fp] = now

	// The send stays under the mutex: it never blocks (default branch), and
	// holding the lock serializes it against Close closing the channel.
	select {
	case b.out <- sig:
		b.mu.Unlock()
		metrics.SignalsIngested.WithLabelValues(sig.SourceID).Inc()
		return true
	default:
		b.mu.Unlock()
		metrics.SignalsDropped.WithLabelValues("bus_full").Inc()
		log.Warn().Str("token", fp.String()).Msg("Bus full, signal dropped")
		return false
	}
}

// Close stops the bus. In-flight signals already queued remain readable
// until the channel drains.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.out)
}

// GC drops dedup entries older than the longest window. Called periodically
// by the orchestrator so the maps do not grow without bound.
func (b *Bus) GC() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for k, t := range b.lastBySource {
		if now.Sub(t) >= b.sourceWindow {
			delete(b.lastBySource, k)
		}
	}
	for k, t := range b.lastGlobal {
		if now.Sub(t) >= b.globalWindow {
			delete(b.lastGlobal, k)
		}
	}
}

// SetClock overrides the time source (tests)
func (b *Bus) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
