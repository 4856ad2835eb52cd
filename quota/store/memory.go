// Package store provides quota.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quayops/weighbridge-engine/quota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	allocations map[quota.AllocationID]quota.Allocation
	weighings   map[quota.RecordID]quota.WeighingRecord
	trips       map[quota.TripID]quota.TripRecord
	projects    map[quota.ProjectID]quota.ProjectContext
	notices     []quota.Notice

	nextAllocation quota.AllocationID
	nextWeighing   quota.RecordID
	nextTrip       quota.TripID
	nextNotice     int64
}

func NewMemory() *Memory {
	return &Memory{
		allocations: make(map[quota.AllocationID]quota.Allocation),
		weighings:   make(map[quota.RecordID]quota.WeighingRecord),
		trips:       make(map[quota.TripID]quota.TripRecord),
		projects:    make(map[quota.ProjectID]quota.ProjectContext),
	}
}

// -----------------------------------------------------------------------------
// Allocations
// -----------------------------------------------------------------------------

func (m *Memory) SaveAllocation(_ context.Context, a *quota.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == 0 {
		m.nextAllocation++
		a.ID = m.nextAllocation
	} else if a.ID > m.nextAllocation {
		m.nextAllocation = a.ID
	}
	m.allocations[a.ID] = *a
	return nil
}

func (m *Memory) GetAllocation(_ context.Context, id quota.AllocationID) (*quota.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocations[id]
	if !ok {
		return nil, quota.ErrAllocationNotFound
	}
	return &a, nil
}

func (m *Memory) FindAllocation(_ context.Context, project quota.ProjectID, ben quota.BeneficiaryRef) (*quota.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range sortedAllocations(m.allocations) {
		if a.ProjectID == project && a.Beneficiary.Equal(ben) {
			return &a, nil
		}
	}
	return nil, quota.ErrAllocationNotFound
}

func (m *Memory) ListAllocations(_ context.Context, project quota.ProjectID) ([]quota.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.Allocation
	for _, a := range sortedAllocations(m.allocations) {
		if a.ProjectID == project {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *Memory) DeleteAllocation(_ context.Context, id quota.AllocationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.allocations[id]; !ok {
		return quota.ErrAllocationNotFound
	}
	delete(m.allocations, id)
	return nil
}

// -----------------------------------------------------------------------------
// Weighings
// -----------------------------------------------------------------------------

func (m *Memory) SaveWeighing(_ context.Context, r *quota.WeighingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == 0 {
		m.nextWeighing++
		r.ID = m.nextWeighing
	} else if r.ID > m.nextWeighing {
		m.nextWeighing = r.ID
	}
	m.weighings[r.ID] = *r
	return nil
}

func (m *Memory) GetWeighing(_ context.Context, id quota.RecordID) (*quota.WeighingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.weighings[id]
	if !ok {
		return nil, quota.ErrRecordNotFound
	}
	return &r, nil
}

func (m *Memory) DeleteWeighing(_ context.Context, id quota.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.weighings[id]; !ok {
		return quota.ErrRecordNotFound
	}
	delete(m.weighings, id)
	return nil
}

func (m *Memory) ListWeighings(_ context.Context, project quota.ProjectID) ([]quota.WeighingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.WeighingRecord
	for _, r := range sortedWeighings(m.weighings) {
		if r.ProjectID == project {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *Memory) ListWeighingsByBeneficiary(_ context.Context, project quota.ProjectID, ben quota.BeneficiaryRef) ([]quota.WeighingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.WeighingRecord
	for _, r := range sortedWeighings(m.weighings) {
		if r.ProjectID == project && r.Beneficiary.Equal(ben) {
			result = append(result, r)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Trips
// -----------------------------------------------------------------------------

func (m *Memory) SaveTrip(_ context.Context, t *quota.TripRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == 0 {
		m.nextTrip++
		t.ID = m.nextTrip
	} else if t.ID > m.nextTrip {
		m.nextTrip = t.ID
	}
	m.trips[t.ID] = *t
	return nil
}

func (m *Memory) GetTrip(_ context.Context, id quota.TripID) (*quota.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.trips[id]
	if !ok {
		return nil, quota.ErrTripNotFound
	}
	return &t, nil
}

func (m *Memory) DeleteTrip(_ context.Context, id quota.TripID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trips[id]; !ok {
		return quota.ErrTripNotFound
	}
	delete(m.trips, id)
	return nil
}

func (m *Memory) ListTrips(_ context.Context, project quota.ProjectID) ([]quota.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.TripRecord
	for _, t := range sortedTrips(m.trips) {
		if t.ProjectID == project {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *Memory) FindTripByKeys(_ context.Context, ticketNo, deliveryNoteNo string) (*quota.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range sortedTrips(m.trips) {
		if t.TicketNo == ticketNo && t.DeliveryNoteNo == deliveryNoteNo {
			return &t, nil
		}
	}
	return nil, quota.ErrTripNotFound
}

func (m *Memory) FindTripByEitherKey(_ context.Context, ticketNo, deliveryNoteNo string) (*quota.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range sortedTrips(m.trips) {
		if (ticketNo != "" && t.TicketNo == ticketNo) ||
			(deliveryNoteNo != "" && t.DeliveryNoteNo == deliveryNoteNo) {
			return &t, nil
		}
	}
	return nil, quota.ErrTripNotFound
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

func (m *Memory) SaveProject(_ context.Context, p *quota.ProjectContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ProjectID] = *p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id quota.ProjectID) (*quota.ProjectContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, quota.ErrProjectNotFound
	}
	return &p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]quota.ProjectContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]quota.ProjectContext, 0, len(m.projects))
	for _, p := range m.projects {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProjectID < result[j].ProjectID })
	return result, nil
}

// -----------------------------------------------------------------------------
// Notices
// -----------------------------------------------------------------------------

func (m *Memory) SaveNotice(_ context.Context, n *quota.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNotice++
	n.ID = m.nextNotice
	m.notices = append(m.notices, *n)
	return nil
}

func (m *Memory) ListNotices(_ context.Context, since time.Time) ([]quota.Notice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []quota.Notice
	for _, n := range m.notices {
		if !n.CreatedAt.Before(since) {
			result = append(result, n)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Deterministic iteration order for map-backed sets
// -----------------------------------------------------------------------------

func sortedAllocations(m map[quota.AllocationID]quota.Allocation) []quota.Allocation {
	result := make([]quota.Allocation, 0, len(m))
	for _, a := range m {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func sortedWeighings(m map[quota.RecordID]quota.WeighingRecord) []quota.WeighingRecord {
	result := make([]quota.WeighingRecord, 0, len(m))
	for _, r := range m {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func sortedTrips(m map[quota.TripID]quota.TripRecord) []quota.TripRecord {
	result := make([]quota.TripRecord, 0, len(m))
	for _, t := range m {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
