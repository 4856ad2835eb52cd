package weighing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/quota/store"
	"github.com/quayops/weighbridge-engine/weighing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestSaver(t *testing.T) (*weighing.Saver, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	sync := weighing.NewSynchronizer(mem, nil)
	saver := weighing.NewSaver(mem, sync, nil, nil)
	return saver, mem
}

func kg(n float64) quota.Quantity {
	return quota.NewQuantity(n)
}

func seedAllocation(t *testing.T, mem *store.Memory, ben quota.BeneficiaryRef, code string, authorized float64) {
	t.Helper()
	err := mem.SaveAllocation(context.Background(), &quota.Allocation{
		ProjectID:      1,
		Beneficiary:    ben,
		Authorizations: []quota.Authorization{{Code: code, Quantity: kg(authorized)}},
	})
	require.NoError(t, err)
}

func ticket(ben quota.BeneficiaryRef, code string, gross, tare float64, ticketNo, noteNo string) quota.WeighingRecord {
	return quota.WeighingRecord{
		ProjectID:      1,
		Beneficiary:    ben,
		Code:           code,
		GrossWeight:    kg(gross),
		TareWeight:     kg(tare),
		TicketNo:       ticketNo,
		DeliveryNoteNo: noteNo,
		RecordedAt:     time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestBegin_AcceptsTicketWithinQuota(t *testing.T) {
	// GIVEN: 1000kg authorized, nothing consumed
	// WHEN: Beginning a save of a 400kg net ticket
	// THEN: The attempt lands in Accepted

	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1400, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, weighing.StateAccepted, attempt.State)
	assert.True(t, attempt.Remaining.Equal(kg(1000)))
}

func TestBegin_ExactFitIsAccepted(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 400)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1400, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, weighing.StateAccepted, attempt.State)
}

func TestBegin_RejectsMissingFields(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	rec := ticket(ben, "1", 1400, 1000, "", "BL-1")
	_, err := saver.Begin(ctx, rec, nil)
	var verr *quota.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ticket_no", verr.Field)

	rec = ticket(ben, "1", 900, 1000, "T-1", "BL-1")
	_, err = saver.Begin(ctx, rec, nil)
	require.ErrorAs(t, err, &verr, "tare above gross must be rejected")
}

func TestBegin_RejectsAmbiguousBeneficiary(t *testing.T) {
	saver, _ := newTestSaver(t)
	ctx := context.Background()

	rec := ticket(quota.BeneficiaryRef{ClientID: 7, DepotID: 3}, "1", 1400, 1000, "T-1", "BL-1")
	_, err := saver.Begin(ctx, rec, nil)
	assert.ErrorIs(t, err, quota.ErrNoBeneficiary)
}

// =============================================================================
// OVERRUN FLOW
// =============================================================================

func TestBegin_OverrunPendingWithExcess(t *testing.T) {
	// GIVEN: 300kg remaining under code 1
	// WHEN: Beginning a save of a 350kg net ticket
	// THEN: The attempt pauses in OverrunPending with excess 50kg

	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 300)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1350, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, weighing.StateOverrunPending, attempt.State)
	assert.True(t, attempt.Excess.Equal(kg(50)), "excess = %v", attempt.Excess.Value)
}

func TestConfirm_AllowsPersistingOverrun(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 300)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1350, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	require.NoError(t, saver.Confirm(attempt))
	assert.Equal(t, weighing.StateConfirmed, attempt.State)

	require.NoError(t, saver.Persist(ctx, attempt))
	assert.Equal(t, weighing.StatePersisted, attempt.State)

	// The override leaves an operator notice behind.
	notices, err := mem.ListNotices(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "overrun_override", notices[0].Kind)
}

func TestCancel_IsTerminalAndWritesNothing(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 300)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1350, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	require.NoError(t, saver.Cancel(attempt))
	assert.Equal(t, weighing.StateCancelled, attempt.State)
	assert.True(t, attempt.State.Terminal())

	err = saver.Persist(ctx, attempt)
	assert.Error(t, err, "cancelled attempt must not persist")

	records, err := mem.ListWeighings(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConfirm_OnlyFromOverrunPending(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1400, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)
	assert.Error(t, saver.Confirm(attempt), "accepted attempt has nothing to confirm")
	assert.Error(t, saver.Cancel(attempt))
}

// =============================================================================
// EDIT MODE
// =============================================================================

func TestBegin_EditExcludesOwnPriorWeight(t *testing.T) {
	// GIVEN: 1000kg authorized and a stored 400kg ticket
	// WHEN: Editing that ticket up to 900kg net
	// THEN: It validates against 1000kg, not 600kg, and is accepted

	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	prior := ticket(ben, "1", 1400, 1000, "T-1", "BL-1")
	require.NoError(t, mem.SaveWeighing(ctx, &prior))

	edited := prior
	edited.GrossWeight = kg(1900)
	attempt, err := saver.Begin(ctx, edited, &prior)
	require.NoError(t, err)
	assert.Equal(t, weighing.StateAccepted, attempt.State)
	assert.True(t, attempt.Remaining.Equal(kg(1000)))
}

func TestBegin_EditToNewBeneficiaryKeepsFullConsumption(t *testing.T) {
	// Retargeting a ticket means the prior weight belongs to someone else,
	// so no self-exclusion applies against the new beneficiary.

	saver, mem := newTestSaver(t)
	ctx := context.Background()
	oldBen := quota.ClientRef(7)
	newBen := quota.ClientRef(8)
	seedAllocation(t, mem, oldBen, "1", 1000)
	seedAllocation(t, mem, newBen, "1", 500)

	prior := ticket(oldBen, "1", 1400, 1000, "T-1", "BL-1")
	require.NoError(t, mem.SaveWeighing(ctx, &prior))

	existing := ticket(newBen, "1", 1300, 1000, "T-2", "BL-2")
	require.NoError(t, mem.SaveWeighing(ctx, &existing))

	edited := prior
	edited.Beneficiary = newBen
	attempt, err := saver.Begin(ctx, edited, &prior)
	require.NoError(t, err)

	// New beneficiary has 500 authorized, 300 consumed; prior record's 400
	// belongs to client 7 and is filtered by beneficiary anyway, so 200
	// remain and the 400kg edit overruns by 200.
	assert.Equal(t, weighing.StateOverrunPending, attempt.State)
	assert.True(t, attempt.Excess.Equal(kg(200)), "excess = %v", attempt.Excess.Value)
}

// =============================================================================
// PERSISTENCE AND UPSTREAM
// =============================================================================

type rejectingUpstream struct{}

func (rejectingUpstream) CreateWeighing(context.Context, *quota.WeighingRecord) error {
	return quota.ErrOverrunRejected
}
func (rejectingUpstream) UpdateWeighing(context.Context, *quota.WeighingRecord) error {
	return quota.ErrOverrunRejected
}
func (rejectingUpstream) DeleteWeighing(context.Context, quota.RecordID) error { return nil }

func TestPersist_UpstreamRejectionIsTerminal(t *testing.T) {
	mem := store.NewMemory()
	sync := weighing.NewSynchronizer(mem, nil)
	saver := weighing.NewSaver(mem, sync, rejectingUpstream{}, nil)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	attempt, err := saver.Begin(ctx, ticket(ben, "1", 1400, 1000, "T-1", "BL-1"), nil)
	require.NoError(t, err)

	err = saver.Persist(ctx, attempt)
	assert.ErrorIs(t, err, quota.ErrOverrunRejected)
	assert.Equal(t, weighing.StateRejected, attempt.State)
	assert.True(t, attempt.State.Terminal())

	// Nothing reached the local store.
	records, err := mem.ListWeighings(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDelete_CascadesToTripWithDangerNotice(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	rec := ticket(ben, "1", 1400, 1000, "T-1", "BL-1")
	require.NoError(t, mem.SaveWeighing(ctx, &rec))
	require.NoError(t, mem.SaveTrip(ctx, &quota.TripRecord{
		ProjectID: 1, TicketNo: "T-1", DeliveryNoteNo: "BL-1", ClientID: 7,
	}))

	warning, err := saver.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, warning)

	_, err = mem.GetWeighing(ctx, rec.ID)
	assert.ErrorIs(t, err, quota.ErrRecordNotFound)
	_, err = mem.FindTripByEitherKey(ctx, "T-1", "BL-1")
	assert.ErrorIs(t, err, quota.ErrTripNotFound)

	notices, err := mem.ListNotices(ctx, time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, notices)
	assert.Equal(t, quota.NoticeDanger, notices[0].Level)
}

func TestDelete_MissingTripSurfacesDivergenceWarning(t *testing.T) {
	saver, mem := newTestSaver(t)
	ctx := context.Background()
	ben := quota.ClientRef(7)
	seedAllocation(t, mem, ben, "1", 1000)

	rec := ticket(ben, "1", 1400, 1000, "T-1", "BL-1")
	require.NoError(t, mem.SaveWeighing(ctx, &rec))

	warning, err := saver.Delete(ctx, rec.ID)
	require.NoError(t, err, "the weighing deletion itself must succeed")
	require.NotNil(t, warning)
	assert.Equal(t, "delete", warning.Op)
	assert.True(t, errors.Is(warning, quota.ErrTripNotFound))

	_, err = mem.GetWeighing(ctx, rec.ID)
	assert.ErrorIs(t, err, quota.ErrRecordNotFound)
}
