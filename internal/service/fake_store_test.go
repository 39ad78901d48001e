package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// memStore is a transactional in-memory store.  InTx holds one mutex
// for the whole transaction, which is stricter than row locks but
// gives the same serial outcomes, and restores a snapshot when fn
// fails.
type memStore struct {
	mu           sync.Mutex
	guests       map[uint64]model.GuestPass
	sessions     map[uint64]model.PatientSession
	sectionRooms map[[2]uint64]bool
	logs         []model.GuestLog
	scans        []model.QrScan
	nextID       uint64

	// raceOnce makes the next guarded write fail as if a concurrent
	// transaction had committed first.
	raceOnce error
	txs      int
}

func newMemStore() *memStore {
	return &memStore{
		guests:       map[uint64]model.GuestPass{},
		sessions:     map[uint64]model.PatientSession{},
		sectionRooms: map[[2]uint64]bool{},
		nextID:       1000,
	}
}

type memSnapshot struct {
	guests   map[uint64]model.GuestPass
	sessions map[uint64]model.PatientSession
	logs     []model.GuestLog
	scans    []model.QrScan
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		guests:   make(map[uint64]model.GuestPass, len(m.guests)),
		sessions: make(map[uint64]model.PatientSession, len(m.sessions)),
		logs:     append([]model.GuestLog(nil), m.logs...),
		scans:    append([]model.QrScan(nil), m.scans...),
	}
	for k, v := range m.guests {
		s.guests[k] = v
	}
	for k, v := range m.sessions {
		s.sessions[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.guests, m.sessions, m.logs, m.scans = s.guests, s.sessions, s.logs, s.scans
}

func (m *memStore) run(ctx context.Context, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := m.snapshot()
	if err := fn(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) Access() AccessStore { return memAccess{m} }
func (m *memStore) Passes() PassStore   { return memPasses{m} }

type memAccess struct{ m *memStore }

func (a memAccess) InTx(ctx context.Context, fn func(AccessTx) error) error {
	return a.m.run(ctx, func() error { return fn(a.m) })
}

type memPasses struct{ m *memStore }

func (p memPasses) InTx(ctx context.Context, fn func(PassTx) error) error {
	return p.m.run(ctx, func() error { return fn(p.m) })
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

// raced consumes raceOnce when it matches want.
func (m *memStore) raced(want error) bool {
	if m.raceOnce != nil && m.raceOnce == want {
		m.raceOnce = nil
		return true
	}
	return false
}

// locked accessors used by tests outside a transaction

func (m *memStore) guest(id uint64) model.GuestPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guests[id]
}

func (m *memStore) allLogs() []model.GuestLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.GuestLog(nil), m.logs...)
}

func (m *memStore) allScans() []model.QrScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.QrScan(nil), m.scans...)
}

// AccessTx

func (m *memStore) LockGuestByID(_ context.Context, id uint64) (model.GuestPass, error) {
	g, ok := m.guests[id]
	if !ok {
		return g, repository.ErrNotFound
	}
	return g, nil
}

func (m *memStore) LockGuestByQR(_ context.Context, qr string) (model.GuestPass, error) {
	for _, g := range m.guests {
		if g.QRCode == qr {
			return g, nil
		}
	}
	return model.GuestPass{}, repository.ErrNotFound
}

func (m *memStore) Session(_ context.Context, id uint64) (*model.PatientSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) SectionReachesRoom(_ context.Context, sectionID, roomID uint64) (bool, error) {
	return m.sectionRooms[[2]uint64{sectionID, roomID}], nil
}

func (m *memStore) IsInside(_ context.Context, guestID uint64) (bool, error) {
	for _, l := range m.logs {
		if l.GuestID == guestID && l.CurrentlyInside {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ConsumeScan(_ context.Context, guestID uint64) error {
	if m.raced(repository.ErrScanLimit) {
		return repository.ErrScanLimit
	}
	g := m.guests[guestID]
	if g.QRScanLimit == nil {
		return nil
	}
	if g.QRScansUsed >= *g.QRScanLimit {
		return repository.ErrScanLimit
	}
	g.QRScansUsed++
	m.guests[guestID] = g
	return nil
}

func (m *memStore) InsertLog(_ context.Context, l *model.GuestLog) error {
	if l.CurrentlyInside {
		if m.raced(repository.ErrAlreadyInside) {
			return repository.ErrAlreadyInside
		}
		for _, o := range m.logs {
			if o.GuestID == l.GuestID && o.CurrentlyInside {
				return repository.ErrAlreadyInside
			}
		}
	}
	l.ID = m.id()
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memStore) CloseOpenLog(_ context.Context, guestID uint64, exit time.Time, notes *string) (uint64, error) {
	if m.raced(repository.ErrNoOpenLog) {
		return 0, repository.ErrNoOpenLog
	}
	for i := range m.logs {
		if m.logs[i].GuestID == guestID && m.logs[i].CurrentlyInside {
			m.logs[i].CurrentlyInside = false
			m.logs[i].ExitTime = &exit
			if notes != nil {
				m.logs[i].Notes = notes
			}
			return m.logs[i].ID, nil
		}
	}
	return 0, repository.ErrNoOpenLog
}

func (m *memStore) InsertScan(_ context.Context, s *model.QrScan) error {
	s.ID = m.id()
	m.scans = append(m.scans, *s)
	return nil
}

// PassTx

func (m *memStore) LockSession(_ context.Context, id uint64) (model.PatientSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return s, repository.ErrNotFound
	}
	return s, nil
}

func (m *memStore) GetGuest(ctx context.Context, id uint64) (model.GuestPass, error) {
	return m.LockGuestByID(ctx, id)
}

func (m *memStore) LockGuest(ctx context.Context, id uint64) (model.GuestPass, error) {
	return m.LockGuestByID(ctx, id)
}

func (m *memStore) CountActiveApproved(_ context.Context, sessionID uint64, at time.Time) (int, error) {
	n := 0
	for _, g := range m.guests {
		if g.SessionID == sessionID && g.IsActive && g.Status == model.PassApproved && !g.ValidUntil.Before(at) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateGuest(_ context.Context, g *model.GuestPass) error {
	for _, o := range m.guests {
		if o.QRCode == g.QRCode {
			return repository.ErrDuplicate
		}
	}
	g.ID = m.id()
	m.guests[g.ID] = *g
	return nil
}

func (m *memStore) SetGuestStatus(_ context.Context, id uint64, status string, adminID uint64, at time.Time) error {
	g := m.guests[id]
	g.Status = status
	g.ApprovedByAdminID = &adminID
	if status == model.PassApproved {
		g.ApprovedAt = &at
	}
	m.guests[id] = g
	return nil
}
