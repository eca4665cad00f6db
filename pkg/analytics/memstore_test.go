package analytics

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
)

// memStore is an in-memory implementation of all store interfaces, with
// per-operation failure injection.
type memStore struct {
	mu            sync.Mutex
	extractions   []RawExtractionEvent
	usage         []RawAPIUsageEvent
	windows       []MetricWindow
	alerts        []AlertRecord
	notifications []NotificationRecord

	failListExtractions    bool
	failListUsage          bool
	failInsertWindow       bool
	failInsertAlert        bool
	failCountAlerts        bool
	failInsertNotification bool
	failDeleteUsage        bool
}

var errInjected = fmt.Errorf("injected store failure")

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) InsertExtractionEvent(ctx context.Context, ev RawExtractionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions = append(m.extractions, ev)
	return nil
}

func (m *memStore) ListExtractionEvents(ctx context.Context, from, to time.Time) ([]RawExtractionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListExtractions {
		return nil, errInjected
	}
	var out []RawExtractionEvent
	for _, ev := range m.extractions {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) DeleteExtractionEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []RawExtractionEvent
	var deleted int64
	for _, ev := range m.extractions {
		if ev.Timestamp.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, ev)
		}
	}
	m.extractions = kept
	return deleted, nil
}

func (m *memStore) InsertAPIUsageEvent(ctx context.Context, ev RawAPIUsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, ev)
	return nil
}

func (m *memStore) ListAPIUsageEvents(ctx context.Context, from, to time.Time) ([]RawAPIUsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListUsage {
		return nil, errInjected
	}
	var out []RawAPIUsageEvent
	for _, ev := range m.usage {
		if !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) DeleteAPIUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeleteUsage {
		return 0, errInjected
	}
	var kept []RawAPIUsageEvent
	var deleted int64
	for _, ev := range m.usage {
		if ev.Timestamp.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, ev)
		}
	}
	m.usage = kept
	return deleted, nil
}

func (m *memStore) WindowExists(ctx context.Context, windowStart time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.windows {
		if w.WindowStart.Equal(windowStart) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertWindow(ctx context.Context, w MetricWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertWindow {
		return errInjected
	}
	m.windows = append(m.windows, w)
	return nil
}

func (m *memStore) ListWindowsSince(ctx context.Context, since time.Time) ([]MetricWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MetricWindow
	for _, w := range m.windows {
		if !w.WindowStart.Before(since) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.After(out[j].WindowStart)
	})
	return out, nil
}

func (m *memStore) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []MetricWindow
	var deleted int64
	for _, w := range m.windows {
		if w.WindowStart.Before(cutoff) {
			deleted++
		} else {
			kept = append(kept, w)
		}
	}
	m.windows = kept
	return deleted, nil
}

func (m *memStore) InsertAlert(ctx context.Context, a AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertAlert {
		return errInjected
	}
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) CountAlertsSince(ctx context.Context, ruleName string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCountAlerts {
		return 0, errInjected
	}
	var count int64
	for _, a := range m.alerts {
		if a.RuleName == ruleName && !a.TriggeredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AlertRecord
	for _, a := range m.alerts {
		if !a.TriggeredAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountAlertsBySeverity(ctx context.Context, since time.Time) (map[Severity]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Severity]int64)
	for _, a := range m.alerts {
		if !a.TriggeredAt.Before(since) {
			out[a.Severity]++
		}
	}
	return out, nil
}

func (m *memStore) InsertNotification(ctx context.Context, n NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertNotification {
		return errInjected
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func int64Ptr(v int64) *int64 {
	return &v
}
