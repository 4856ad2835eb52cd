/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request structs carry validator tags and are checked with
  go-playground/validator before any domain logic runs. Cross-field rules
  the tags can't express (exactly one of client/depot) live in handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - ../quota: The domain model these map onto
*/
package api

import (
	"time"

	"github.com/quayops/weighbridge-engine/quota"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AuthorizationInput is one (code, quantity) line of an allocation request.
type AuthorizationInput struct {
	Code     string  `json:"code" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
}

// CreateAllocationRequest grants a beneficiary an authorization list.
// Exactly one of ClientID/DepotID must be set; checked in the handler.
type CreateAllocationRequest struct {
	ClientID       int64                `json:"client_id"`
	DepotID        int64                `json:"depot_id"`
	Authorizations []AuthorizationInput `json:"authorizations" validate:"required,min=1,dive"`
}

// ReplaceAuthorizationsRequest swaps an allocation's authorization list.
type ReplaceAuthorizationsRequest struct {
	Authorizations []AuthorizationInput `json:"authorizations" validate:"required,min=1,dive"`
}

// SaveWeighingRequest creates or edits a weighing record.
type SaveWeighingRequest struct {
	ProjectID      int64   `json:"project_id" validate:"required"`
	ClientID       int64   `json:"client_id"`
	DepotID        int64   `json:"depot_id"`
	Code           string  `json:"code"`
	GrossWeight    float64 `json:"gross_weight" validate:"gte=0"`
	TareWeight     float64 `json:"tare_weight" validate:"gte=0"`
	TicketNo       string  `json:"ticket_no" validate:"required"`
	DeliveryNoteNo string  `json:"delivery_note_no" validate:"required"`
	LoadingRef     string  `json:"loading_ref"`
	Company        string  `json:"company"`
	RecordedAt     string  `json:"recorded_at" validate:"required"`
}

// SaveProjectRequest upserts a project context.
type SaveProjectRequest struct {
	ID             int64   `json:"id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	TotalQuota     float64 `json:"total_quota" validate:"gte=0"`
	RemainingQuota float64 `json:"remaining_quota"`
	Active         bool    `json:"active"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type AuthorizationDTO struct {
	Code     string  `json:"code"`
	Quantity float64 `json:"quantity"`
}

type AllocationDTO struct {
	ID              int64              `json:"id"`
	ProjectID       int64              `json:"project_id"`
	ClientID        int64              `json:"client_id,omitempty"`
	DepotID         int64              `json:"depot_id,omitempty"`
	Authorizations  []AuthorizationDTO `json:"authorizations"`
	TotalAuthorized float64            `json:"total_authorized"`
	UpdatedAt       string             `json:"updated_at"`
}

type RemainingDTO struct {
	AllocationID int64   `json:"allocation_id"`
	Code         string  `json:"code"`
	Authorized   float64 `json:"authorized"`
	Remaining    float64 `json:"remaining"`
}

type WeighingDTO struct {
	ID             int64   `json:"id"`
	ProjectID      int64   `json:"project_id"`
	ClientID       int64   `json:"client_id,omitempty"`
	DepotID        int64   `json:"depot_id,omitempty"`
	Code           string  `json:"code"`
	GrossWeight    float64 `json:"gross_weight"`
	TareWeight     float64 `json:"tare_weight"`
	NetWeight      float64 `json:"net_weight"`
	TicketNo       string  `json:"ticket_no"`
	DeliveryNoteNo string  `json:"delivery_note_no"`
	LoadingRef     string  `json:"loading_ref,omitempty"`
	Company        string  `json:"company,omitempty"`
	RecordedAt     string  `json:"recorded_at"`
}

// SaveWeighingResponse reports a persisted save, including the divergence
// warning when the trip mirror could not follow.
type SaveWeighingResponse struct {
	Record      WeighingDTO `json:"record"`
	SyncWarning string      `json:"sync_warning,omitempty"`
}

// OverrunResponse is returned with 409 when a save pauses for an operator
// override. The attempt ID routes the confirm/cancel follow-up.
type OverrunResponse struct {
	AttemptID string  `json:"attempt_id"`
	Remaining float64 `json:"remaining"`
	Requested float64 `json:"requested"`
	Excess    float64 `json:"excess"`
	Message   string  `json:"message"`
}

type TripDTO struct {
	ID                int64   `json:"id"`
	ProjectID         int64   `json:"project_id"`
	TicketNo          string  `json:"ticket_no"`
	DeliveryNoteNo    string  `json:"delivery_note_no"`
	ClientID          int64   `json:"client_id,omitempty"`
	DepotID           int64   `json:"depot_id,omitempty"`
	ClientWeight      float64 `json:"client_weight"`
	DepotWeight       float64 `json:"depot_weight"`
	Code              string  `json:"code,omitempty"`
	Company           string  `json:"company,omitempty"`
	DriverID          string  `json:"driver_id,omitempty"`
	TruckID           string  `json:"truck_id,omitempty"`
	RemainingSnapshot float64 `json:"remaining_snapshot"`
	Date              string  `json:"date,omitempty"`
}

type ProjectDTO struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	TotalQuota     float64 `json:"total_quota"`
	RemainingQuota float64 `json:"remaining_quota"`
	Active         bool    `json:"active"`
}

type NoticeDTO struct {
	ID        int64  `json:"id"`
	Level     string `json:"level"`
	Kind      string `json:"kind"`
	Entity    string `json:"entity"`
	EntityID  int64  `json:"entity_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type SweepReportDTO struct {
	Projects        int    `json:"projects"`
	OrphanWeighings int    `json:"orphan_weighings"`
	OrphanTrips     int    `json:"orphan_trips"`
	SweptAt         string `json:"swept_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toAllocationDTO(a quota.Allocation) AllocationDTO {
	auths := a.Normalized()
	dtos := make([]AuthorizationDTO, 0, len(auths))
	for _, auth := range auths {
		dtos = append(dtos, AuthorizationDTO{Code: auth.Code, Quantity: auth.Quantity.Float64()})
	}
	return AllocationDTO{
		ID:              int64(a.ID),
		ProjectID:       int64(a.ProjectID),
		ClientID:        int64(a.Beneficiary.ClientID),
		DepotID:         int64(a.Beneficiary.DepotID),
		Authorizations:  dtos,
		TotalAuthorized: a.TotalAuthorized().Float64(),
		UpdatedAt:       a.UpdatedAt.Format(time.RFC3339),
	}
}

func toWeighingDTO(r quota.WeighingRecord) WeighingDTO {
	return WeighingDTO{
		ID:             int64(r.ID),
		ProjectID:      int64(r.ProjectID),
		ClientID:       int64(r.Beneficiary.ClientID),
		DepotID:        int64(r.Beneficiary.DepotID),
		Code:           r.EffectiveCode(),
		GrossWeight:    r.GrossWeight.Float64(),
		TareWeight:     r.TareWeight.Float64(),
		NetWeight:      r.NetWeight().Float64(),
		TicketNo:       r.TicketNo,
		DeliveryNoteNo: r.DeliveryNoteNo,
		LoadingRef:     r.LoadingRef,
		Company:        r.Company,
		RecordedAt:     r.RecordedAt.Format(time.RFC3339),
	}
}

func toTripDTO(t quota.TripRecord) TripDTO {
	dto := TripDTO{
		ID:                int64(t.ID),
		ProjectID:         int64(t.ProjectID),
		TicketNo:          t.TicketNo,
		DeliveryNoteNo:    t.DeliveryNoteNo,
		ClientID:          int64(t.ClientID),
		DepotID:           int64(t.DepotID),
		ClientWeight:      t.ClientWeight.Float64(),
		DepotWeight:       t.DepotWeight.Float64(),
		Code:              t.Code,
		Company:           t.Company,
		DriverID:          t.DriverID,
		TruckID:           t.TruckID,
		RemainingSnapshot: t.RemainingSnapshot.Float64(),
	}
	if !t.Date.IsZero() {
		dto.Date = t.Date.Format(time.RFC3339)
	}
	return dto
}

func toProjectDTO(p quota.ProjectContext) ProjectDTO {
	return ProjectDTO{
		ID:             int64(p.ProjectID),
		Name:           p.Name,
		TotalQuota:     p.TotalQuota.Float64(),
		RemainingQuota: p.RemainingQuota.Float64(),
		Active:         p.Active,
	}
}

func toNoticeDTO(n quota.Notice) NoticeDTO {
	return NoticeDTO{
		ID:        n.ID,
		Level:     string(n.Level),
		Kind:      n.Kind,
		Entity:    n.Entity,
		EntityID:  n.EntityID,
		Message:   n.Message,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
