package weighing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/quota/store"
	"github.com/quayops/weighbridge-engine/weighing"
)

func newTestSync(t *testing.T) (*weighing.Synchronizer, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return weighing.NewSynchronizer(mem, nil), mem
}

func TestOnCreate_AppliesNetWeightToClientSide(t *testing.T) {
	// GIVEN: A trip opened by the loading side with driver and truck set
	// WHEN: A client weighing with matching keys is created
	// THEN: The trip carries the net weight on the client side and keeps
	//       its operator fields

	sync, mem := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-1",
		DriverID:       "drv-9",
		TruckID:        "trk-4",
	}))

	rec := ticket(quota.ClientRef(7), "2", 1400, 1000, "T-1", "BL-1")
	rec.ID = 1
	rec.Company = "ACME Shipping"
	require.NoError(t, sync.OnCreate(ctx, &rec))

	trip, err := mem.FindTripByKeys(ctx, "T-1", "BL-1")
	require.NoError(t, err)
	assert.Equal(t, quota.ClientID(7), trip.ClientID)
	assert.True(t, trip.ClientWeight.Equal(kg(400)))
	assert.Equal(t, quota.DepotID(0), trip.DepotID)
	assert.True(t, trip.DepotWeight.IsZero())
	assert.Equal(t, "2", trip.Code)
	assert.Equal(t, "ACME Shipping", trip.Company)
	assert.Equal(t, "drv-9", trip.DriverID)
	assert.Equal(t, "trk-4", trip.TruckID)
}

func TestOnCreate_MissingTripIsTolerated(t *testing.T) {
	sync, _ := newTestSync(t)
	rec := ticket(quota.ClientRef(7), "1", 1400, 1000, "T-1", "BL-1")
	assert.NoError(t, sync.OnCreate(context.Background(), &rec))
}

func TestOnUpdate_SearchesByOldKeys(t *testing.T) {
	// GIVEN: A trip stored under the original ticket numbers
	// WHEN: The weighing is renumbered and updated
	// THEN: The trip is found via the old keys and carries the new ones

	sync, mem := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		TicketNo:       "T-OLD",
		DeliveryNoteNo: "BL-OLD",
	}))

	rec := ticket(quota.ClientRef(7), "1", 1400, 1000, "T-NEW", "BL-NEW")
	rec.ID = 1
	require.NoError(t, sync.OnUpdate(ctx, &rec, "T-OLD", "BL-OLD"))

	trip, err := mem.FindTripByKeys(ctx, "T-NEW", "BL-NEW")
	require.NoError(t, err)
	assert.True(t, trip.ClientWeight.Equal(kg(400)))

	_, err = mem.FindTripByKeys(ctx, "T-OLD", "BL-OLD")
	assert.ErrorIs(t, err, quota.ErrTripNotFound)
}

func TestOnUpdate_RetargetClearsOldSideCompletely(t *testing.T) {
	// A ticket moved from a client to a depot must not leave the client
	// weight behind on the trip.

	sync, mem := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-1",
		ClientID:       7,
		ClientWeight:   kg(400),
	}))

	rec := ticket(quota.DepotRef(3), "1", 1600, 1000, "T-1", "BL-1")
	rec.ID = 1
	require.NoError(t, sync.OnUpdate(ctx, &rec, "T-1", "BL-1"))

	trip, err := mem.FindTripByKeys(ctx, "T-1", "BL-1")
	require.NoError(t, err)
	assert.Equal(t, quota.ClientID(0), trip.ClientID)
	assert.True(t, trip.ClientWeight.IsZero())
	assert.Equal(t, quota.DepotID(3), trip.DepotID)
	assert.True(t, trip.DepotWeight.Equal(kg(600)))
}

func TestOnUpdate_MissingTripIsDivergence(t *testing.T) {
	sync, _ := newTestSync(t)
	rec := ticket(quota.ClientRef(7), "1", 1400, 1000, "T-1", "BL-1")
	rec.ID = 5

	err := sync.OnUpdate(context.Background(), &rec, "T-GONE", "BL-GONE")
	var div *quota.SyncDivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, "update", div.Op)
	assert.Equal(t, quota.RecordID(5), div.RecordID)
	assert.Equal(t, "T-GONE", div.TicketNo)
}

func TestOnDelete_MatchesEitherKey(t *testing.T) {
	// Delete uses the looser lookup: a trip whose delivery note was
	// renamed still cascades via the ticket number.

	sync, mem := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-RENAMED",
	}))

	rec := ticket(quota.ClientRef(7), "1", 1400, 1000, "T-1", "BL-1")
	rec.ID = 1
	require.NoError(t, sync.OnDelete(ctx, &rec))

	_, err := mem.FindTripByEitherKey(ctx, "T-1", "BL-RENAMED")
	assert.ErrorIs(t, err, quota.ErrTripNotFound)
}

func TestSync_StampsRemainingSnapshot(t *testing.T) {
	sync, mem := newTestSync(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)

	require.NoError(t, mem.SaveAllocation(ctx, &quota.Allocation{
		ProjectID:      1,
		Beneficiary:    ben,
		Authorizations: []quota.Authorization{{Code: "1", Quantity: kg(1000)}},
	}))
	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-1",
	}))

	rec := ticket(ben, "1", 1400, 1000, "T-1", "BL-1")
	rec.ID = 1
	rec.RecordedAt = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, mem.SaveWeighing(ctx, &rec))
	require.NoError(t, sync.OnCreate(ctx, &rec))

	trip, err := mem.FindTripByKeys(ctx, "T-1", "BL-1")
	require.NoError(t, err)
	assert.True(t, trip.RemainingSnapshot.Equal(kg(600)),
		"snapshot = %v, want 600 after the 400kg ticket", trip.RemainingSnapshot.Value)
}
