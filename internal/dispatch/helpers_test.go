package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/internal/carrier"
	"github.com/wolfman30/charter-notify/internal/consent"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/store"
)

type stubCarrier struct {
	mu       sync.Mutex
	sent     []carrier.Message
	err      error
	provider string
}

func (s *stubCarrier) Send(ctx context.Context, msg carrier.Message) (carrier.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	receipt := carrier.Receipt{Provider: s.provider, Attempts: 1}
	if s.err != nil {
		return receipt, s.err
	}
	receipt.MessageID = "SM" + uuid.NewString()[:8]
	return receipt, nil
}

func (s *stubCarrier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubConsent struct {
	mu        sync.Mutex
	optedOut  map[string]bool
	checked   int
	decision  *consent.Decision
	lastPairs [][2]string
}

func (s *stubConsent) Check(ctx context.Context, siteID, raw, normalized string) consent.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked++
	s.lastPairs = append(s.lastPairs, [2]string{raw, normalized})
	if s.decision != nil {
		return *s.decision
	}
	return consent.Decision{Suppressed: s.optedOut[normalized] || s.optedOut[raw]}
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
	ctxErrs []error
}

func (m *memoryAudit) Append(ctx context.Context, e audit.Entry) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.err != nil {
		return uuid.Nil, m.err
	}
	e.ID = uuid.New()
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *memoryAudit) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...)
}

type fakeReference struct {
	mu         sync.Mutex
	business   *store.Business
	address    *store.Address
	fleet      map[string]store.FleetType
	slots      map[string]store.TimeSlot
	failAll    bool
	sitesAsked []string
}

var errBackend = errors.New("backend unavailable")

func (f *fakeReference) asked(siteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sitesAsked = append(f.sitesAsked, siteID)
	if f.failAll {
		return errBackend
	}
	return nil
}

func (f *fakeReference) GetBusiness(ctx context.Context, siteID string) (*store.Business, error) {
	if err := f.asked(siteID); err != nil {
		return nil, err
	}
	if f.business == nil {
		return nil, store.ErrNotFound
	}
	return f.business, nil
}

func (f *fakeReference) GetAddress(ctx context.Context, siteID string) (*store.Address, error) {
	if err := f.asked(siteID); err != nil {
		return nil, err
	}
	if f.address == nil {
		return nil, store.ErrNotFound
	}
	return f.address, nil
}

func (f *fakeReference) GetFleetType(ctx context.Context, siteID, id string) (*store.FleetType, error) {
	if err := f.asked(siteID); err != nil {
		return nil, err
	}
	ft, ok := f.fleet[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ft, nil
}

func (f *fakeReference) GetTimeSlot(ctx context.Context, siteID, id string) (*store.TimeSlot, error) {
	if err := f.asked(siteID); err != nil {
		return nil, err
	}
	ts, ok := f.slots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ts, nil
}

type staticTemplates struct {
	set templates.Set
	err error
}

func (s staticTemplates) Template(ctx context.Context, siteID string, kind templates.Kind) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.set[kind], nil
}
