package adapters

import (
	"context"
	"regexp"

	"github.com/web3guy0/alphaflow/internal/metrics"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SOURCE ADAPTERS - Plug-in pattern for signal sources
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every adapter produces an infinite stream of RawSignal in observation order.
// Vendor errors are swallowed and logged; the stream never terminates on them.
// Bad credentials suspend the adapter (logged once) until restart.
//
// Per-vendor quirks stay inside each adapter; normalization happens at the
// boundary, never downstream.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Adapter is the interface every signal source implements
type Adapter interface {
	// Name returns the source identifier used in RawSignal.SourceID
	Name() string

	// Start begins emission. The returned channel is closed when ctx is
	// cancelled or the adapter is stopped.
	Start(ctx context.Context) (<-chan types.RawSignal, error)

	// Stop halts emission and releases vendor connections
	Stop()
}

// queue is a bounded drop-oldest buffer between a vendor session and the
// engine. Overflow drops the oldest signal so fresh evidence wins.
type queue struct {
	ch     chan types.RawSignal
	source string
}

func newQueue(capacity int, source string) *queue {
	return &queue{ch: make(chan types.RawSignal, capacity), source: source}
}

func (q *queue) push(sig types.RawSignal) {
	for {
		select {
		case q.ch <- sig:
			return
		default:
		}
		select {
		case <-q.ch: // drop oldest
			metrics.SignalsDropped.WithLabelValues("adapter_overflow").Inc()
		default:
		}
	}
}

func (q *queue) out() <-chan types.RawSignal { return q.ch }

var (
	solAddressRe = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)
	bscAddressRe = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
)

// extractTokenAddress finds the first token address in free-form text.
// BSC addresses are unambiguous (0x-prefixed) so they are checked first.
func extractTokenAddress(text string) (string, types.Chain, bool) {
	if m := bscAddressRe.FindString(text); m != "" {
		return m, types.ChainBSC, true
	}
	if m := solAddressRe.FindString(text); m != "" {
		return m, types.ChainSOL, true
	}
	return "", "", false
}
