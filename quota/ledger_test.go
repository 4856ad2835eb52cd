package quota_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/quota/store"
)

func newTestLedger() (*quota.Ledger, *store.Memory) {
	mem := store.NewMemory()
	return quota.NewLedger(mem, nil), mem
}

func TestCreateAllocation_WithinHeadroom(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	alloc, err := ledger.CreateAllocation(ctx, 1, quota.ClientRef(7),
		[]quota.Authorization{
			{Code: "1", Quantity: kg(600)},
			{Code: "2", Quantity: kg(400)},
		}, kg(1000))
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}
	if !alloc.TotalAuthorized().Equal(kg(1000)) {
		t.Errorf("total = %v, want 1000", alloc.TotalAuthorized().Value)
	}
}

func TestCreateAllocation_RejectsNegativeQuantity(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.CreateAllocation(ctx, 1, quota.ClientRef(7),
		[]quota.Authorization{{Code: "1", Quantity: kg(-5)}}, kg(1000))
	if !errors.Is(err, quota.ErrNegativeQuantity) {
		t.Errorf("err = %v, want ErrNegativeQuantity", err)
	}
}

func TestCreateAllocation_RejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.CreateAllocation(ctx, 1, quota.ClientRef(7),
		[]quota.Authorization{
			{Code: "1", Quantity: kg(100)},
			{Code: "1", Quantity: kg(200)},
		}, kg(1000))
	if !errors.Is(err, quota.ErrDuplicateCode) {
		t.Errorf("err = %v, want ErrDuplicateCode", err)
	}
}

func TestCreateAllocation_RejectsExceedingHeadroom(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.CreateAllocation(ctx, 1, quota.ClientRef(7),
		[]quota.Authorization{{Code: "1", Quantity: kg(1200)}}, kg(1000))

	var perr *quota.ProjectOverrunError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProjectOverrunError", err)
	}
	if !perr.Requested.Equal(kg(1200)) {
		t.Errorf("requested = %v, want 1200", perr.Requested.Value)
	}
}

func TestCreateAllocation_RequiresExactlyOneBeneficiary(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.CreateAllocation(ctx, 1, quota.BeneficiaryRef{},
		[]quota.Authorization{{Code: "1", Quantity: kg(100)}}, kg(1000))
	if !errors.Is(err, quota.ErrNoBeneficiary) {
		t.Errorf("err = %v, want ErrNoBeneficiary", err)
	}
}

func TestReplaceAuthorizations_CreditsBackPreviousTotal(t *testing.T) {
	// GIVEN: An allocation holding 800kg with only 100kg of project headroom left
	// WHEN: Resizing it to 850kg
	// THEN: The resize passes, because the old 800kg returns to the pool first

	ctx := context.Background()
	ledger, _ := newTestLedger()

	alloc, err := ledger.CreateAllocation(ctx, 1, quota.ClientRef(7),
		[]quota.Authorization{{Code: "1", Quantity: kg(800)}}, kg(900))
	if err != nil {
		t.Fatalf("CreateAllocation: %v", err)
	}

	updated, err := ledger.ReplaceAuthorizations(ctx, alloc.ID,
		[]quota.Authorization{{Code: "1", Quantity: kg(850)}}, kg(100))
	if err != nil {
		t.Fatalf("ReplaceAuthorizations: %v", err)
	}
	if !updated.TotalAuthorized().Equal(kg(850)) {
		t.Errorf("total = %v, want 850", updated.TotalAuthorized().Value)
	}

	// But 950kg exceeds headroom 100 + previous 850.
	_, err = ledger.ReplaceAuthorizations(ctx, alloc.ID,
		[]quota.Authorization{{Code: "1", Quantity: kg(1000)}}, kg(100))
	var perr *quota.ProjectOverrunError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want ProjectOverrunError", err)
	}
}

func TestReplaceAuthorizations_ClearsLegacyScalar(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger()

	legacy := &quota.Allocation{
		ProjectID:      1,
		Beneficiary:    quota.ClientRef(7),
		LegacyQuantity: kg(500),
	}
	if err := mem.SaveAllocation(ctx, legacy); err != nil {
		t.Fatalf("SaveAllocation: %v", err)
	}

	updated, err := ledger.ReplaceAuthorizations(ctx, legacy.ID,
		[]quota.Authorization{{Code: "1", Quantity: kg(400)}}, kg(0))
	if err != nil {
		t.Fatalf("ReplaceAuthorizations: %v", err)
	}
	if !updated.LegacyQuantity.IsZero() {
		t.Errorf("legacy quantity should be cleared, got %v", updated.LegacyQuantity.Value)
	}
	if !updated.TotalAuthorized().Equal(kg(400)) {
		t.Errorf("total = %v, want 400", updated.TotalAuthorized().Value)
	}
}

func TestAuthorizedFor_FirstOccurrenceWins(t *testing.T) {
	// Duplicate codes are rejected on write, but rows imported from the
	// upstream service can still carry them. Reads take the first line.
	alloc := quota.Allocation{
		Authorizations: []quota.Authorization{
			{Code: "1", Quantity: kg(300)},
			{Code: "1", Quantity: kg(900)},
		},
	}
	if got := alloc.AuthorizedFor("1"); !got.Equal(kg(300)) {
		t.Errorf("AuthorizedFor = %v, want 300", got.Value)
	}
}
