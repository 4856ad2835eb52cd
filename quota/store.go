/*
store.go - Persistence interfaces for the quota engine

PURPOSE:
  Defines the storage contracts the engine operates against. Two
  implementations exist: an in-memory store for tests and a SQLite store
  for the server. The engine never talks to a database directly.

DESIGN:
  - All methods take context.Context for cancellation
  - List methods return the COMPLETE matching set; the aggregator's
    correctness depends on never paginating consumption queries
  - Not-found is reported with the sentinel errors in errors.go

SEE ALSO:
  - store/memory.go: In-memory implementation
  - ../store/sqlite/sqlite.go: SQLite implementation
*/
package quota

import (
	"context"
	"time"
)

// AllocationStore persists beneficiary allocations.
type AllocationStore interface {
	SaveAllocation(ctx context.Context, a *Allocation) error
	GetAllocation(ctx context.Context, id AllocationID) (*Allocation, error)
	FindAllocation(ctx context.Context, project ProjectID, ben BeneficiaryRef) (*Allocation, error)
	ListAllocations(ctx context.Context, project ProjectID) ([]Allocation, error)
	DeleteAllocation(ctx context.Context, id AllocationID) error
}

// WeighingStore persists weighing records.
type WeighingStore interface {
	SaveWeighing(ctx context.Context, r *WeighingRecord) error
	GetWeighing(ctx context.Context, id RecordID) (*WeighingRecord, error)
	DeleteWeighing(ctx context.Context, id RecordID) error

	// ListWeighings returns every record of the project. Unpaginated on
	// purpose: consumption sums must see the whole set.
	ListWeighings(ctx context.Context, project ProjectID) ([]WeighingRecord, error)
	ListWeighingsByBeneficiary(ctx context.Context, project ProjectID, ben BeneficiaryRef) ([]WeighingRecord, error)
}

// TripStore persists trip records and the lookups the synchronizer needs.
type TripStore interface {
	SaveTrip(ctx context.Context, t *TripRecord) error
	GetTrip(ctx context.Context, id TripID) (*TripRecord, error)
	DeleteTrip(ctx context.Context, id TripID) error
	ListTrips(ctx context.Context, project ProjectID) ([]TripRecord, error)

	// FindTripByKeys matches on both identifiers, used for update syncs
	// that search by the keys the trip was created under.
	FindTripByKeys(ctx context.Context, ticketNo, deliveryNoteNo string) (*TripRecord, error)

	// FindTripByEitherKey matches on ticket OR delivery note, the looser
	// lookup used by delete cascades.
	FindTripByEitherKey(ctx context.Context, ticketNo, deliveryNoteNo string) (*TripRecord, error)
}

// ProjectStore persists project contexts.
type ProjectStore interface {
	SaveProject(ctx context.Context, p *ProjectContext) error
	GetProject(ctx context.Context, id ProjectID) (*ProjectContext, error)
	ListProjects(ctx context.Context) ([]ProjectContext, error)
}

// NoticeStore persists operator-facing notices.
type NoticeStore interface {
	SaveNotice(ctx context.Context, n *Notice) error
	ListNotices(ctx context.Context, since time.Time) ([]Notice, error)
}

// Store is the full contract the server wires together.
type Store interface {
	AllocationStore
	WeighingStore
	TripStore
	ProjectStore
	NoticeStore
}
