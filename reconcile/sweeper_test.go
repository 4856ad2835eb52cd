package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/quota/store"
	"github.com/quayops/weighbridge-engine/reconcile"
)

func seedProject(t *testing.T, mem *store.Memory) {
	t.Helper()
	require.NoError(t, mem.SaveProject(context.Background(), &quota.ProjectContext{
		ProjectID: 1, Name: "North Quay", Active: true,
	}))
}

func TestRunOnce_CleanProject(t *testing.T) {
	mem := store.NewMemory()
	seedProject(t, mem)
	ctx := context.Background()

	rec := &quota.WeighingRecord{
		ProjectID: 1, Beneficiary: quota.ClientRef(7),
		GrossWeight: quota.NewQuantity(1400), TareWeight: quota.NewQuantity(1000),
		TicketNo: "T-1", DeliveryNoteNo: "BL-1", RecordedAt: time.Now(),
	}
	require.NoError(t, mem.SaveWeighing(ctx, rec))
	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		ProjectID: 1, TicketNo: "T-1", DeliveryNoteNo: "BL-1",
		ClientID: 7, ClientWeight: quota.NewQuantity(400),
	}))

	report, err := reconcile.NewSweeper(mem, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Projects)
	assert.Zero(t, report.OrphanWeighings)
	assert.Zero(t, report.OrphanTrips)

	notices, err := mem.ListNotices(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestRunOnce_FlagsOrphanWeighing(t *testing.T) {
	mem := store.NewMemory()
	seedProject(t, mem)
	ctx := context.Background()

	rec := &quota.WeighingRecord{
		ProjectID: 1, Beneficiary: quota.ClientRef(7),
		GrossWeight: quota.NewQuantity(1400), TareWeight: quota.NewQuantity(1000),
		TicketNo: "T-LOST", DeliveryNoteNo: "BL-LOST", RecordedAt: time.Now(),
	}
	require.NoError(t, mem.SaveWeighing(ctx, rec))

	report, err := reconcile.NewSweeper(mem, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanWeighings)

	notices, err := mem.ListNotices(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "reconcile_orphan", notices[0].Kind)
	assert.Equal(t, "weighing", notices[0].Entity)
}

func TestRunOnce_FlagsWeightedOrphanTripOnly(t *testing.T) {
	// A trip still waiting for its truck carries no weight and is not
	// divergent. One that carries weight with no weighing is.

	mem := store.NewMemory()
	seedProject(t, mem)
	ctx := context.Background()

	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		ProjectID: 1, TicketNo: "T-WAITING", DeliveryNoteNo: "BL-WAITING",
	}))
	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		ProjectID: 1, TicketNo: "T-LOST", DeliveryNoteNo: "BL-LOST",
		DepotID: 3, DepotWeight: quota.NewQuantity(600),
	}))

	report, err := reconcile.NewSweeper(mem, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanTrips)

	notices, err := mem.ListNotices(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "trip", notices[0].Entity)
}
