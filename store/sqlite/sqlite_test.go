package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAllocation_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alloc := &quota.Allocation{
		ProjectID:   1,
		Beneficiary: quota.ClientRef(7),
		Authorizations: []quota.Authorization{
			{Code: "1", Quantity: quota.NewQuantity(600)},
			{Code: "2", Quantity: quota.NewQuantity(400)},
		},
	}
	require.NoError(t, store.SaveAllocation(ctx, alloc))
	require.NotZero(t, alloc.ID)

	got, err := store.GetAllocation(ctx, alloc.ID)
	require.NoError(t, err)
	assert.Equal(t, quota.ClientID(7), got.Beneficiary.ClientID)
	require.Len(t, got.Authorizations, 2)
	assert.True(t, got.TotalAuthorized().Equal(quota.NewQuantity(1000)))

	found, err := store.FindAllocation(ctx, 1, quota.ClientRef(7))
	require.NoError(t, err)
	assert.Equal(t, alloc.ID, found.ID)

	_, err = store.FindAllocation(ctx, 1, quota.DepotRef(7))
	assert.ErrorIs(t, err, quota.ErrAllocationNotFound)
}

func TestAllocation_OnePerBeneficiaryPerProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &quota.Allocation{ProjectID: 1, Beneficiary: quota.ClientRef(7), LegacyQuantity: quota.NewQuantity(100)}
	require.NoError(t, store.SaveAllocation(ctx, first))

	dup := &quota.Allocation{ProjectID: 1, Beneficiary: quota.ClientRef(7), LegacyQuantity: quota.NewQuantity(200)}
	assert.Error(t, store.SaveAllocation(ctx, dup))

	// Same client in another project is fine.
	other := &quota.Allocation{ProjectID: 2, Beneficiary: quota.ClientRef(7), LegacyQuantity: quota.NewQuantity(200)}
	assert.NoError(t, store.SaveAllocation(ctx, other))
}

func TestWeighing_RoundTripAndDuplicateTicket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &quota.WeighingRecord{
		ProjectID:      1,
		Beneficiary:    quota.ClientRef(7),
		Code:           "1",
		GrossWeight:    quota.NewQuantity(1400.5),
		TareWeight:     quota.NewQuantity(1000),
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-1",
		RecordedAt:     time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveWeighing(ctx, rec))
	require.NotZero(t, rec.ID)

	got, err := store.GetWeighing(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.NetWeight().Equal(quota.NewQuantity(400.5)),
		"net = %v", got.NetWeight().Value)
	assert.Equal(t, "T-1", got.TicketNo)

	dup := &quota.WeighingRecord{
		ProjectID:      1,
		Beneficiary:    quota.ClientRef(8),
		GrossWeight:    quota.NewQuantity(1200),
		TareWeight:     quota.NewQuantity(1000),
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-2",
		RecordedAt:     time.Now(),
	}
	assert.Error(t, store.SaveWeighing(ctx, dup), "duplicate ticket in same project")
}

func TestWeighing_ListByBeneficiaryReturnsCompleteSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := &quota.WeighingRecord{
			ProjectID:      1,
			Beneficiary:    quota.ClientRef(7),
			GrossWeight:    quota.NewQuantity(1100),
			TareWeight:     quota.NewQuantity(1000),
			TicketNo:       "T-" + string(rune('A'+i)),
			DeliveryNoteNo: "BL-" + string(rune('A'+i)),
			RecordedAt:     base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.SaveWeighing(ctx, rec))
	}
	other := &quota.WeighingRecord{
		ProjectID:      1,
		Beneficiary:    quota.DepotRef(3),
		GrossWeight:    quota.NewQuantity(1100),
		TareWeight:     quota.NewQuantity(1000),
		TicketNo:       "T-X",
		DeliveryNoteNo: "BL-X",
		RecordedAt:     base,
	}
	require.NoError(t, store.SaveWeighing(ctx, other))

	records, err := store.ListWeighingsByBeneficiary(ctx, 1, quota.ClientRef(7))
	require.NoError(t, err)
	assert.Len(t, records, 5)

	all, err := store.ListWeighings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestTrip_KeyLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	trip := &quota.TripRecord{
		ProjectID:      1,
		TicketNo:       "T-1",
		DeliveryNoteNo: "BL-1",
		DriverID:       "drv-9",
		TruckID:        "trk-4",
		ClientID:       7,
		ClientWeight:   quota.NewQuantity(400),
	}
	require.NoError(t, store.SaveTrip(ctx, trip))

	// Strict lookup needs both keys.
	_, err := store.FindTripByKeys(ctx, "T-1", "BL-OTHER")
	assert.ErrorIs(t, err, quota.ErrTripNotFound)

	got, err := store.FindTripByKeys(ctx, "T-1", "BL-1")
	require.NoError(t, err)
	assert.Equal(t, "drv-9", got.DriverID)

	// Loose lookup matches on either.
	got, err = store.FindTripByEitherKey(ctx, "T-1", "BL-OTHER")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)

	got, err = store.FindTripByEitherKey(ctx, "T-OTHER", "BL-1")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)

	require.NoError(t, store.DeleteTrip(ctx, trip.ID))
	_, err = store.GetTrip(ctx, trip.ID)
	assert.ErrorIs(t, err, quota.ErrTripNotFound)
}

func TestNotices_SinceFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &quota.Notice{
		Level: quota.NoticeInfo, Kind: "test", Entity: "weighing", EntityID: 1,
		Message: "old", CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := &quota.Notice{
		Level: quota.NoticeDanger, Kind: "test", Entity: "weighing", EntityID: 2,
		Message: "recent", CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveNotice(ctx, old))
	require.NoError(t, store.SaveNotice(ctx, recent))

	notices, err := store.ListNotices(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "recent", notices[0].Message)
}

func TestProject_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &quota.ProjectContext{
		ProjectID:      1,
		Name:           "North Quay",
		TotalQuota:     quota.NewQuantity(50000),
		RemainingQuota: quota.NewQuantity(20000),
		Active:         true,
	}
	require.NoError(t, store.SaveProject(ctx, p))

	p.RemainingQuota = quota.NewQuantity(18000)
	require.NoError(t, store.SaveProject(ctx, p))

	got, err := store.GetProject(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.RemainingQuota.Equal(quota.NewQuantity(18000)))
	assert.True(t, got.Active)
}
