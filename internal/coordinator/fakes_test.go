package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"fulfill/internal/coordinator"
	"fulfill/internal/fulfillment"
	"fulfill/internal/ledger"
	"fulfill/internal/notifications"
	"fulfill/internal/session"
)

type fakeAuth struct {
	system   string
	loginErr error
	logins   atomic.Int32
}

func (a *fakeAuth) System() string { return a.system }

func (a *fakeAuth) Login(context.Context, session.Credential) error {
	a.logins.Add(1)
	return a.loginErr
}

func (a *fakeAuth) CheckValidity(context.Context) bool { return false }
func (a *fakeAuth) PersistSession() error              { return nil }
func (a *fakeAuth) RestoreSession() (bool, error)      { return false, nil }

type fakeExporter struct {
	write func(category fulfillment.Category, dest string) error
	calls []fulfillment.Category
}

func (e *fakeExporter) Export(_ context.Context, category fulfillment.Category, dest string) error {
	e.calls = append(e.calls, category)
	if e.write == nil {
		return errors.New("export not scripted")
	}
	return e.write(category, dest)
}

type fakePicker struct {
	result  func(item fulfillment.WorkItem) fulfillment.PickResult
	batches [][]fulfillment.WorkItem
}

func (p *fakePicker) PickBatch(_ context.Context, items []fulfillment.WorkItem) []fulfillment.PickResult {
	p.batches = append(p.batches, items)
	results := make([]fulfillment.PickResult, 0, len(items))
	for _, item := range items {
		if p.result != nil {
			results = append(results, p.result(item))
			continue
		}
		results = append(results, fulfillment.PickResult{SN: item.SN, Success: true, Message: fulfillment.MessagePicked})
	}
	return results
}

type fakeShipper struct {
	pending    []fulfillment.ShipmentCandidate
	pendingErr error
	queries    int
	names      []map[string]string
}

func (s *fakeShipper) GetPending(context.Context, int) ([]fulfillment.ShipmentCandidate, error) {
	s.queries++
	return s.pending, s.pendingErr
}

func (s *fakeShipper) ShipBatch(_ context.Context, cands []fulfillment.ShipmentCandidate, names map[string]string) []fulfillment.ShipResult {
	s.names = append(s.names, names)
	results := make([]fulfillment.ShipResult, 0, len(cands))
	for _, c := range cands {
		results = append(results, fulfillment.ShipResult{SN: c.InvSN, SONo: c.SONo, Success: true, CustomerName: names[c.InvSN]})
	}
	return results
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *recordingNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) last(event notifications.Event) notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i] == event {
			return n.payloads[i]
		}
	}
	return nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	runs    []ledger.RunRecord
	orphans []ledger.Orphan
}

func (r *memoryRecorder) RecordRun(_ context.Context, run ledger.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRecorder) RecordOrphan(_ context.Context, o ledger.Orphan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, o)
	return nil
}

type fakeSet struct {
	auths    []*fakeAuth
	exporter *fakeExporter
	picker   *fakePicker
	shipper  *fakeShipper
}

func newFakeSet() *fakeSet {
	return &fakeSet{
		auths: []*fakeAuth{
			{system: "workorder"},
			{system: "asd"},
			{system: "logistics"},
		},
		exporter: &fakeExporter{},
		picker:   &fakePicker{},
		shipper:  &fakeShipper{},
	}
}

func (f *fakeSet) loginAttempts(i int) int {
	return int(f.auths[i].logins.Load())
}

func (f *fakeSet) factory() coordinator.BackendFactory {
	return func(context.Context) (*coordinator.Backends, error) {
		logins := make([]coordinator.Login, 0, len(f.auths))
		for _, a := range f.auths {
			logins = append(logins, coordinator.Login{Auth: a, Credential: session.Credential{Username: a.system + "-user", Password: "secret"}})
		}
		return &coordinator.Backends{
			Logins:   logins,
			Exporter: f.exporter,
			Picker:   f.picker,
			Shipper:  f.shipper,
		}, nil
	}
}
