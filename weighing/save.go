/*
Package weighing drives the lifecycle of a weighing record.

PURPOSE:
  Saving a ticket is not a single write. The net weight must validate
  against the beneficiary's remaining quota, an overrun must pause the
  save until an operator confirms or cancels the override, and an
  accepted write must propagate to the trip mirror. This package models
  that lifecycle as an explicit attempt state machine so a half-finished
  save can never silently commit.

STATES:
  Idle -> Validating -> OverrunPending -> Confirmed -> Persisting -> Persisted
                     |                 -> Cancelled                -> Rejected
                     -> Accepted       -> Persisting

  Cancelled, Persisted and Rejected are terminal. Only Accepted and
  Confirmed attempts may persist.

SEE ALSO:
  - sync.go: Trip propagation after a persisted write
  - ../quota/aggregator.go: The remaining-quota figure validated against
*/
package weighing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/quota"
)

// =============================================================================
// ATTEMPT - One in-flight save
// =============================================================================

type AttemptState string

const (
	StateIdle           AttemptState = "idle"
	StateValidating     AttemptState = "validating"
	StateOverrunPending AttemptState = "overrun_pending"
	StateConfirmed      AttemptState = "confirmed"
	StateCancelled      AttemptState = "cancelled"
	StateAccepted       AttemptState = "accepted"
	StatePersisting     AttemptState = "persisting"
	StatePersisted      AttemptState = "persisted"
	StateRejected       AttemptState = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s AttemptState) Terminal() bool {
	return s == StateCancelled || s == StatePersisted || s == StateRejected
}

// Attempt is one in-flight save of a weighing record.
type Attempt struct {
	ID    string
	State AttemptState

	Record quota.WeighingRecord

	// Prior is the stored record when this attempt edits an existing
	// ticket, nil for a fresh one. Its keys drive the update-mode trip
	// lookup and its beneficiary decides the self-exclusion rule.
	Prior *quota.WeighingRecord

	// Overrun context, set while State is OverrunPending and kept for the
	// audit notice when an override is confirmed.
	Remaining quota.Quantity
	Excess    quota.Quantity

	// SyncWarning is set when the record persisted but the trip mirror
	// diverged. The save still counts as Persisted.
	SyncWarning *quota.SyncDivergenceError

	CreatedAt time.Time
}

// =============================================================================
// SAVER - Runs attempts through the state machine
// =============================================================================

// Upstream pushes accepted writes to the remote service that owns the
// authoritative copy. Nil disables the push and the local store is
// authoritative; a configured upstream is consulted first and its verdict is
// final for the attempt.
type Upstream interface {
	CreateWeighing(ctx context.Context, r *quota.WeighingRecord) error
	UpdateWeighing(ctx context.Context, r *quota.WeighingRecord) error
	DeleteWeighing(ctx context.Context, id quota.RecordID) error
}

// Saver validates and persists weighing attempts.
type Saver struct {
	Store    quota.Store
	Sync     *Synchronizer
	Upstream Upstream

	log *zap.Logger
}

func NewSaver(store quota.Store, sync *Synchronizer, upstream Upstream, log *zap.Logger) *Saver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saver{Store: store, Sync: sync, Upstream: upstream, log: log}
}

// Begin validates a record and opens an attempt. The returned attempt is in
// StateAccepted when the net weight fits the remaining quota, or in
// StateOverrunPending when it doesn't; callers route the latter through
// Confirm or Cancel before persisting. Validation failures return an error
// and no attempt.
func (s *Saver) Begin(ctx context.Context, rec quota.WeighingRecord, prior *quota.WeighingRecord) (*Attempt, error) {
	attempt := &Attempt{
		ID:        uuid.NewString(),
		State:     StateValidating,
		Record:    rec,
		Prior:     prior,
		CreatedAt: time.Now(),
	}

	if err := s.validate(rec); err != nil {
		return nil, err
	}

	alloc, err := s.Store.FindAllocation(ctx, rec.ProjectID, rec.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("resolving allocation for %s: %w", rec.Beneficiary, err)
	}

	records, err := s.Store.ListWeighings(ctx, rec.ProjectID)
	if err != nil {
		return nil, err
	}

	// An edit doesn't count against itself, but only while it stays on the
	// same beneficiary. Retargeting the ticket validates against the new
	// beneficiary's full consumption.
	query := quota.RemainingQuery{Code: rec.EffectiveCode()}
	if prior != nil && prior.Beneficiary.Equal(rec.Beneficiary) {
		query.ExcludeID = prior.ID
	}
	remaining := quota.Remaining(*alloc, records, query)
	attempt.Remaining = remaining

	net := rec.NetWeight()
	if net.GreaterThan(remaining) {
		attempt.State = StateOverrunPending
		attempt.Excess = net.Sub(remaining)
		s.log.Warn("quota overrun pending confirmation",
			zap.String("attempt", attempt.ID),
			zap.String("beneficiary", rec.Beneficiary.String()),
			zap.String("code", rec.EffectiveCode()),
			zap.Float64("remaining", remaining.Float64()),
			zap.Float64("excess", attempt.Excess.Float64()))
		return attempt, nil
	}

	attempt.State = StateAccepted
	return attempt, nil
}

// Confirm approves the override on an overrun-pending attempt.
func (s *Saver) Confirm(attempt *Attempt) error {
	if attempt.State != StateOverrunPending {
		return fmt.Errorf("cannot confirm attempt in state %s", attempt.State)
	}
	attempt.State = StateConfirmed
	s.log.Info("overrun override confirmed",
		zap.String("attempt", attempt.ID),
		zap.Float64("excess", attempt.Excess.Float64()))
	return nil
}

// Cancel abandons an overrun-pending attempt. Terminal.
func (s *Saver) Cancel(attempt *Attempt) error {
	if attempt.State != StateOverrunPending {
		return fmt.Errorf("cannot cancel attempt in state %s", attempt.State)
	}
	attempt.State = StateCancelled
	return nil
}

// Persist writes an accepted or confirmed attempt. The upstream service is
// consulted first when configured; its rejection is terminal and leaves the
// local store untouched. After the local write the trip mirror is synced,
// and a sync failure degrades to a warning because the record is already
// committed.
func (s *Saver) Persist(ctx context.Context, attempt *Attempt) error {
	if attempt.State != StateAccepted && attempt.State != StateConfirmed {
		return fmt.Errorf("cannot persist attempt in state %s", attempt.State)
	}
	confirmed := attempt.State == StateConfirmed
	attempt.State = StatePersisting

	isUpdate := attempt.Prior != nil

	if s.Upstream != nil {
		var err error
		if isUpdate {
			err = s.Upstream.UpdateWeighing(ctx, &attempt.Record)
		} else {
			err = s.Upstream.CreateWeighing(ctx, &attempt.Record)
		}
		if err != nil {
			attempt.State = StateRejected
			s.log.Error("upstream rejected weighing",
				zap.String("attempt", attempt.ID),
				zap.Error(err))
			return err
		}
	}

	now := time.Now()
	attempt.Record.UpdatedAt = now
	if !isUpdate {
		attempt.Record.CreatedAt = now
	}
	if err := s.Store.SaveWeighing(ctx, &attempt.Record); err != nil {
		attempt.State = StateRejected
		return err
	}

	if confirmed {
		s.notice(ctx, quota.NoticeWarning, "overrun_override",
			"weighing", int64(attempt.Record.ID),
			fmt.Sprintf("quota override of %v kg confirmed for %s code %s",
				attempt.Excess.Value, attempt.Record.Beneficiary, attempt.Record.EffectiveCode()))
	}

	var syncErr error
	if isUpdate {
		syncErr = s.Sync.OnUpdate(ctx, &attempt.Record, attempt.Prior.TicketNo, attempt.Prior.DeliveryNoteNo)
	} else {
		syncErr = s.Sync.OnCreate(ctx, &attempt.Record)
	}
	if syncErr != nil {
		var div *quota.SyncDivergenceError
		if !errors.As(syncErr, &div) {
			div = &quota.SyncDivergenceError{
				RecordID:       attempt.Record.ID,
				TicketNo:       attempt.Record.TicketNo,
				DeliveryNoteNo: attempt.Record.DeliveryNoteNo,
				Op:             opName(isUpdate),
				Cause:          syncErr,
			}
		}
		attempt.SyncWarning = div
		s.log.Warn("weighing persisted but trip sync diverged",
			zap.String("attempt", attempt.ID),
			zap.Int64("record", int64(attempt.Record.ID)),
			zap.Error(div))
		s.notice(ctx, quota.NoticeWarning, "sync_divergence",
			"weighing", int64(attempt.Record.ID), div.Error())
	}

	attempt.State = StatePersisted
	return nil
}

// Delete removes a weighing and cascades to its trip mirror. A missing trip
// degrades to a warning on the returned attempt-free path: the caller gets
// the divergence error to surface while the weighing stays deleted.
func (s *Saver) Delete(ctx context.Context, id quota.RecordID) (*quota.SyncDivergenceError, error) {
	rec, err := s.Store.GetWeighing(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Upstream != nil {
		if err := s.Upstream.DeleteWeighing(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := s.Store.DeleteWeighing(ctx, id); err != nil {
		return nil, err
	}

	s.notice(ctx, quota.NoticeDanger, "weighing_deleted",
		"weighing", int64(id),
		fmt.Sprintf("weighing %d (ticket %s) deleted", id, rec.TicketNo))

	if err := s.Sync.OnDelete(ctx, rec); err != nil {
		var div *quota.SyncDivergenceError
		if !errors.As(err, &div) {
			div = &quota.SyncDivergenceError{
				RecordID:       rec.ID,
				TicketNo:       rec.TicketNo,
				DeliveryNoteNo: rec.DeliveryNoteNo,
				Op:             "delete",
				Cause:          err,
			}
		}
		s.notice(ctx, quota.NoticeWarning, "sync_divergence",
			"weighing", int64(id), div.Error())
		return div, nil
	}
	return nil, nil
}

func (s *Saver) validate(rec quota.WeighingRecord) error {
	if !rec.Beneficiary.Valid() {
		return quota.ErrNoBeneficiary
	}
	if rec.ProjectID == 0 {
		return &quota.ValidationError{Field: "project", Message: "project is required"}
	}
	if rec.TicketNo == "" {
		return &quota.ValidationError{Field: "ticket_no", Message: "ticket number is required"}
	}
	if rec.DeliveryNoteNo == "" {
		return &quota.ValidationError{Field: "delivery_note_no", Message: "delivery note number is required"}
	}
	if rec.GrossWeight.IsNegative() || rec.TareWeight.IsNegative() {
		return &quota.ValidationError{Field: "weight", Message: "weights cannot be negative"}
	}
	if rec.NetWeight().IsNegative() {
		return &quota.ValidationError{Field: "weight", Message: "tare exceeds gross weight"}
	}
	if rec.RecordedAt.IsZero() {
		return &quota.ValidationError{Field: "recorded_at", Message: "weighing time is required"}
	}
	return nil
}

func (s *Saver) notice(ctx context.Context, level quota.NoticeLevel, kind, entity string, entityID int64, msg string) {
	n := &quota.Notice{
		Level:     level,
		Kind:      kind,
		Entity:    entity,
		EntityID:  entityID,
		Message:   msg,
		CreatedAt: time.Now(),
	}
	if err := s.Store.SaveNotice(ctx, n); err != nil {
		s.log.Error("saving notice", zap.Error(err))
	}
}

func opName(isUpdate bool) string {
	if isUpdate {
		return "update"
	}
	return "create"
}
