package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Events is the drained snapshot of one scenario's browser activity.
type Events struct {
	ConsoleErrors  []string // console.error / uncaught exceptions
	FailedRequests []string // responses with status >= 400 and transport failures
}

// Summary renders the buffered evidence for a verdict detail. Empty
// when nothing noteworthy happened.
func (e Events) Summary() string {
	var parts []string
	if len(e.ConsoleErrors) > 0 {
		parts = append(parts, "console: "+strings.Join(e.ConsoleErrors, "; "))
	}
	if len(e.FailedRequests) > 0 {
		parts = append(parts, "requests: "+strings.Join(e.FailedRequests, "; "))
	}
	return strings.Join(parts, " | ")
}

const maxBufferedEvents = 50

// enableNetworkAction turns on DevTools network events for a tab.
func enableNetworkAction() chromedp.Action {
	return network.Enable()
}

// eventBuffer accumulates page events for the lifetime of one Page.
// It also tracks in-flight requests so network-idle waits have a
// condition to poll instead of a fixed sleep.
type eventBuffer struct {
	mu             sync.Mutex
	consoleErrors  []string
	failedRequests []string
	inflight       map[network.RequestID]struct{}
	lastActivity   time.Time
}

func newEventBuffer() *eventBuffer {
	return &eventBuffer{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (b *eventBuffer) attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			b.requestStarted(ev.RequestID)
		case *network.EventLoadingFinished:
			b.requestDone(ev.RequestID)
		case *network.EventLoadingFailed:
			b.requestFailed(ev.RequestID, ev.ErrorText)
		case *network.EventResponseReceived:
			if ev.Response != nil && ev.Response.Status >= 400 {
				b.add(&b.failedRequests, fmt.Sprintf("%s -> %d", ev.Response.URL, int(ev.Response.Status)))
			}
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				b.add(&b.consoleErrors, consoleText(ev))
			}
		case *runtime.EventExceptionThrown:
			if ev.ExceptionDetails != nil {
				b.add(&b.consoleErrors, ev.ExceptionDetails.Text)
			}
		}
	})
}

// Drain returns everything buffered so far and resets the buffer.
func (b *eventBuffer) Drain() Events {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := Events{
		ConsoleErrors:  b.consoleErrors,
		FailedRequests: b.failedRequests,
	}
	b.consoleErrors = nil
	b.failedRequests = nil
	return out
}

// idle reports whether no request has been in flight for at least d.
func (b *eventBuffer) idle(d time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight) == 0 && time.Since(b.lastActivity) >= d
}

func (b *eventBuffer) requestStarted(id network.RequestID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight[id] = struct{}{}
	b.lastActivity = time.Now()
}

func (b *eventBuffer) requestDone(id network.RequestID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, id)
	b.lastActivity = time.Now()
}

func (b *eventBuffer) requestFailed(id network.RequestID, errText string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, id)
	b.lastActivity = time.Now()
	if len(b.failedRequests) < maxBufferedEvents {
		b.failedRequests = append(b.failedRequests, "request failed: "+errText)
	}
}

func (b *eventBuffer) add(dst *[]string, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(*dst) < maxBufferedEvents {
		*dst = append(*dst, msg)
	}
}

func consoleText(ev *runtime.EventConsoleAPICalled) string {
	var parts []string
	for _, arg := range ev.Args {
		switch {
		case arg.Value != nil:
			parts = append(parts, string(arg.Value))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	if len(parts) == 0 {
		return "console.error"
	}
	return strings.Join(parts, " ")
}
