// includenav/helpers_diagnostics.go
// Contains the whole-document unresolved-include scan and the per-document
// scan scheduler used by the LSP server.
package includenav

import (
	"context"
	"fmt"
	"sync"
)

// resolveFunc resolves one raw literal in the context of a fixed document.
type resolveFunc func(ctx context.Context, raw string) Resolution

// scanUnresolved reports a warning for every quoted literal on an import-like
// line (within the first maxScanLines lines) that resolves to nothing.
func scanUnresolved(ctx context.Context, doc Document, resolve resolveFunc) ([]Finding, error) {
	limit := min(doc.LineCount(), maxScanLines)
	var findings []Finding
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := doc.Line(i)
		if !lineIndicatesPathContext(line) {
			continue
		}
		for _, span := range quotedSpans(line) {
			if span.Raw == "" || isHTTPURL(span.Raw) {
				continue
			}
			if resolve(ctx, span.Raw).Kind == ResolutionFound {
				continue
			}
			findings = append(findings, Finding{
				Line:     i,
				StartCol: span.Start,
				EndCol:   span.End,
				Message:  fmt.Sprintf("Include/Import target not found: %s", span.Raw),
				Severity: SeverityWarning,
				Source:   diagnosticSource,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	findingsTotal.Add(float64(len(findings)))
	return findings, nil
}

// ============================================================================
// Scan Scheduler
// ============================================================================

// scanScheduler lets a newer scan of a document supersede an older one:
// starting a scan cancels its predecessor, and only the latest may publish.
type scanScheduler struct {
	mu   sync.Mutex
	next uint64
	runs map[string]scanRun
}

type scanRun struct {
	gen    uint64
	cancel context.CancelFunc
}

func newScanScheduler() *scanScheduler {
	return &scanScheduler{runs: make(map[string]scanRun)}
}

// begin cancels any in-flight scan for key and registers a new one.
func (s *scanScheduler) begin(parent context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.runs[key]; ok {
		prev.cancel()
	}
	s.next++
	s.runs[key] = scanRun{gen: s.next, cancel: cancel}
	return ctx, s.next
}

// publishIfCurrent runs publish only when gen is still the latest scan for key.
// It reports whether publish ran.
func (s *scanScheduler) publishIfCurrent(key string, gen uint64, publish func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[key]
	if !ok || run.gen != gen {
		return false
	}
	publish()
	return true
}

// finish releases the scan's context if it is still registered.
func (s *scanScheduler) finish(key string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[key]; ok && run.gen == gen {
		run.cancel()
		delete(s.runs, key)
	}
}

// cancel stops any scan for key, e.g. when the document closes.
func (s *scanScheduler) cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[key]; ok {
		run.cancel()
		delete(s.runs, key)
	}
}

// pending reports how many scans are in flight.
func (s *scanScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
