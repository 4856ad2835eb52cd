/*
sync.go - Weighing/trip dual-record synchronizer

PURPOSE:
  Every weighing has a logistics mirror in the trip table, created when
  the truck was loaded and completed when it unloads. The two tables are
  owned by different upstream modules with no shared transaction, so this
  synchronizer applies the weighing's state onto the matching trip after
  every committed write and reports divergence instead of failing the
  primary write.

LOOKUP RULES:
  - create/update: match on (ticket, delivery note) together; an update
    searches by the keys the trip was stored under BEFORE the edit,
    otherwise renumbering a ticket orphans its trip
  - delete: match on ticket OR delivery note, the looser rule, so a
    half-renamed pair still cascades

PAYLOAD RULES:
  - exactly one of client/depot carries the net weight, the other side
    is cleared entirely
  - driver and truck belong to the trip side and survive the sync when
    the weighing has no values for them
*/
package weighing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/quota"
)

// Synchronizer keeps trip records aligned with weighings.
type Synchronizer struct {
	Store quota.Store

	log *zap.Logger
}

func NewSynchronizer(store quota.Store, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{Store: store, log: log}
}

// OnCreate applies a freshly persisted weighing onto its trip. Trips are
// opened by the loading module before the truck arrives, so a missing trip
// on create is tolerated with a warning: the truck may have been loaded
// outside the system.
func (s *Synchronizer) OnCreate(ctx context.Context, rec *quota.WeighingRecord) error {
	trip, err := s.Store.FindTripByKeys(ctx, rec.TicketNo, rec.DeliveryNoteNo)
	if errors.Is(err, quota.ErrTripNotFound) {
		s.log.Warn("no trip found for new weighing",
			zap.Int64("record", int64(rec.ID)),
			zap.String("ticket", rec.TicketNo),
			zap.String("delivery_note", rec.DeliveryNoteNo))
		return nil
	}
	if err != nil {
		return err
	}
	return s.apply(ctx, trip, rec)
}

// OnUpdate applies an edited weighing onto its trip, searching by the keys
// the trip was stored under before the edit. A missing trip here is a
// divergence: the pair existed once and has been lost.
func (s *Synchronizer) OnUpdate(ctx context.Context, rec *quota.WeighingRecord, oldTicketNo, oldDeliveryNoteNo string) error {
	trip, err := s.Store.FindTripByKeys(ctx, oldTicketNo, oldDeliveryNoteNo)
	if errors.Is(err, quota.ErrTripNotFound) {
		return &quota.SyncDivergenceError{
			RecordID:       rec.ID,
			TicketNo:       oldTicketNo,
			DeliveryNoteNo: oldDeliveryNoteNo,
			Op:             "update",
			Cause:          err,
		}
	}
	if err != nil {
		return err
	}
	return s.apply(ctx, trip, rec)
}

// OnDelete removes the trip mirroring a deleted weighing, matching on
// either key. A missing trip is reported as divergence so the operator
// learns the cascade was incomplete; the weighing is already gone.
func (s *Synchronizer) OnDelete(ctx context.Context, rec *quota.WeighingRecord) error {
	trip, err := s.Store.FindTripByEitherKey(ctx, rec.TicketNo, rec.DeliveryNoteNo)
	if errors.Is(err, quota.ErrTripNotFound) {
		return &quota.SyncDivergenceError{
			RecordID:       rec.ID,
			TicketNo:       rec.TicketNo,
			DeliveryNoteNo: rec.DeliveryNoteNo,
			Op:             "delete",
			Cause:          err,
		}
	}
	if err != nil {
		return err
	}
	if err := s.Store.DeleteTrip(ctx, trip.ID); err != nil {
		return err
	}
	s.log.Info("trip cascade deleted",
		zap.Int64("trip", int64(trip.ID)),
		zap.Int64("record", int64(rec.ID)))
	return nil
}

// apply writes the weighing's state onto the trip.
func (s *Synchronizer) apply(ctx context.Context, trip *quota.TripRecord, rec *quota.WeighingRecord) error {
	net := rec.NetWeight()

	trip.TicketNo = rec.TicketNo
	trip.DeliveryNoteNo = rec.DeliveryNoteNo
	trip.ProjectID = rec.ProjectID
	trip.Code = rec.EffectiveCode()
	trip.Date = rec.RecordedAt
	if rec.Company != "" {
		trip.Company = rec.Company
	}

	// One side carries the weight, the other is cleared completely so a
	// retargeted ticket never leaves a stale weight behind.
	if rec.Beneficiary.IsClient() {
		trip.ClientID = rec.Beneficiary.ClientID
		trip.ClientWeight = net
		trip.DepotID = 0
		trip.DepotWeight = quota.ZeroQuantity()
	} else {
		trip.DepotID = rec.Beneficiary.DepotID
		trip.DepotWeight = net
		trip.ClientID = 0
		trip.ClientWeight = quota.ZeroQuantity()
	}

	if snapshot, ok := s.remainingSnapshot(ctx, rec); ok {
		trip.RemainingSnapshot = snapshot
	}

	if err := s.Store.SaveTrip(ctx, trip); err != nil {
		return err
	}
	s.log.Info("trip synced",
		zap.Int64("trip", int64(trip.ID)),
		zap.Int64("record", int64(rec.ID)),
		zap.Float64("net", net.Float64()))
	return nil
}

// remainingSnapshot computes the informational remaining figure stamped on
// the trip. Best effort: a failure leaves the previous snapshot alone and
// never blocks the sync.
func (s *Synchronizer) remainingSnapshot(ctx context.Context, rec *quota.WeighingRecord) (quota.Quantity, bool) {
	alloc, err := s.Store.FindAllocation(ctx, rec.ProjectID, rec.Beneficiary)
	if err != nil {
		return quota.ZeroQuantity(), false
	}
	records, err := s.Store.ListWeighings(ctx, rec.ProjectID)
	if err != nil {
		return quota.ZeroQuantity(), false
	}
	asOf := rec.RecordedAt.Add(time.Nanosecond)
	return quota.Remaining(*alloc, records, quota.RemainingQuery{
		Code:      rec.EffectiveCode(),
		AsOf:      &asOf,
		Inclusive: true,
	}), true
}
