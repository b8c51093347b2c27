package api

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/furisto/seyal/backend/event"
	"github.com/furisto/seyal/backend/memory"
	"github.com/maypok86/otter"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
	NoticeToast   NoticeKind = "toast"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Flash is what one page view shows once and then forgets.
type Flash struct {
	Notices      []Notice
	PlannerReply string
	Report       string
}

// Notices holds per-session flash state until the next page view picks it
// up. Entries expire on their own when nobody comes back for them.
type Notices struct {
	mu    sync.Mutex
	cache otter.Cache[string, *Flash]
	sub   *event.Subscription
}

func NewNotices(ttl time.Duration) (*Notices, error) {
	cache, err := otter.MustBuilder[string, *Flash](10_000).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create notice cache: %w", err)
	}
	return &Notices{cache: cache}, nil
}

// Watch raises the compaction toast for every MemoryCompactedEvent on bus.
func (n *Notices) Watch(bus *event.Bus) {
	n.sub = event.Subscribe(bus, func(ctx context.Context, e event.MemoryCompactedEvent) {
		n.Add(e.SessionID, Notice{Kind: NoticeToast, Text: memory.CompactionToast})
	}, nil)
}

func (n *Notices) update(sessionID string, fn func(f *Flash)) {
	n.mu.Lock()
	defer n.mu.Unlock()

	flash, ok := n.cache.Get(sessionID)
	if !ok {
		flash = &Flash{}
	}
	fn(flash)
	n.cache.Set(sessionID, flash)
}

func (n *Notices) Add(sessionID string, notice Notice) {
	n.update(sessionID, func(f *Flash) {
		f.Notices = append(f.Notices, notice)
	})
}

func (n *Notices) SetPlannerReply(sessionID, reply string) {
	n.update(sessionID, func(f *Flash) {
		f.PlannerReply = reply
	})
}

func (n *Notices) SetReport(sessionID, report string) {
	n.update(sessionID, func(f *Flash) {
		f.Report = report
	})
}

// Pop returns and clears the pending flash of a session.
func (n *Notices) Pop(sessionID string) Flash {
	n.mu.Lock()
	defer n.mu.Unlock()

	flash, ok := n.cache.Get(sessionID)
	if !ok {
		return Flash{}
	}
	n.cache.Delete(sessionID)
	return *flash
}

// Drain removes and returns the pending notices of a session. With kinds
// given only those are taken and the rest stay queued. The planner reply and
// the report stay for the next page view either way.
func (n *Notices) Drain(sessionID string, kinds ...NoticeKind) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	flash, ok := n.cache.Get(sessionID)
	if !ok {
		return nil
	}

	var taken, rest []Notice
	for _, notice := range flash.Notices {
		if len(kinds) == 0 || slices.Contains(kinds, notice.Kind) {
			taken = append(taken, notice)
		} else {
			rest = append(rest, notice)
		}
	}
	flash.Notices = rest
	n.cache.Set(sessionID, flash)
	return taken
}

func (n *Notices) Close() {
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	n.cache.Close()
}
