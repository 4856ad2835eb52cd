/*
Package gateway talks to the legacy logistics service.

PURPOSE:
  The upstream service owns the authoritative copy of weighings, trips and
  authorized quantities; this engine validates locally and then pushes
  accepted writes through here. The service's API is the old French one
  (dechargement, voyage, quantite-autorisee) and its payloads come in
  three historical shapes, all normalized in this package so nothing else
  ever sees them.

PAYLOAD SHAPES:
  The autorisation field of an allocation arrived in three generations:
    1. a JSON array of {code, quantite} objects
    2. the same array serialized into a JSON string
    3. absent, with a single scalar in quantiteAutorisee
  decodeAuthorizations handles all three.

SEE ALSO:
  - classify.go: Maps upstream failures to engine errors
  - ../weighing/save.go: The Upstream interface this client implements
*/
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/internal/config"
	"github.com/quayops/weighbridge-engine/quota"
)

// Client is a resty-backed client for the legacy logistics service.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// NewClient builds a gateway client from the upstream configuration.
func NewClient(cfg config.UpstreamConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Token)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{http: restyClient, log: log}
}

// =============================================================================
// WIRE TYPES - The legacy service's field names
// =============================================================================

type allocationDTO struct {
	ID               int64           `json:"id"`
	ClientID         int64           `json:"clientId"`
	DepotID          int64           `json:"depotId"`
	ProjectID        int64           `json:"projetId"`
	Authorization    json.RawMessage `json:"autorisation"`
	AuthorizedScalar float64         `json:"quantiteAutorisee"`
}

type authorizationDTO struct {
	Code     string  `json:"code"`
	Quantity float64 `json:"quantite"`
}

type weighingDTO struct {
	ID             int64   `json:"id"`
	ProjectID      int64   `json:"projetId"`
	ClientID       int64   `json:"clientId,omitempty"`
	DepotID        int64   `json:"depotId,omitempty"`
	Code           string  `json:"code,omitempty"`
	GrossWeight    float64 `json:"poidComplet"`
	TareWeight     float64 `json:"poidCamionVide"`
	TicketNo       string  `json:"numTicket"`
	DeliveryNoteNo string  `json:"numBonLivraison"`
	LoadingRef     string  `json:"refChargement,omitempty"`
	Company        string  `json:"societe,omitempty"`
	RecordedAt     string  `json:"dechDate"`
}

type projectDTO struct {
	ID             int64   `json:"id"`
	Name           string  `json:"nom"`
	TotalQuota     float64 `json:"quantiteTotale"`
	RemainingQuota float64 `json:"quantiteRestante"`
	Active         bool    `json:"actif"`
}

type tripDTO struct {
	ID             int64   `json:"id"`
	ProjectID      int64   `json:"projetId"`
	TicketNo       string  `json:"numTicket"`
	DeliveryNoteNo string  `json:"numBonLivraison"`
	ClientID       int64   `json:"clientId,omitempty"`
	DepotID        int64   `json:"depotId,omitempty"`
	ClientWeight   float64 `json:"poidClient"`
	DepotWeight    float64 `json:"poidDepot"`
	Code           string  `json:"code,omitempty"`
	Company        string  `json:"societe,omitempty"`
	DriverID       string  `json:"chauffeurId,omitempty"`
	TruckID        string  `json:"camionId,omitempty"`
	Remaining      float64 `json:"quantiteRestante"`
	Date           string  `json:"dateVoyage,omitempty"`
}

// =============================================================================
// UPSTREAM IMPLEMENTATION - weighing.Upstream
// =============================================================================

// CreateWeighing pushes a new weighing. The service assigns the ID and the
// record is updated in place with it.
func (c *Client) CreateWeighing(ctx context.Context, r *quota.WeighingRecord) error {
	created := new(weighingDTO)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(toWeighingDTO(r)).
		SetResult(created).
		Post("/api/dechargement")
	if err != nil {
		return fmt.Errorf("create weighing upstream: %w", err)
	}
	if err := c.failure(http.MethodPost, "/api/dechargement", resp); err != nil {
		return err
	}
	if created.ID != 0 {
		r.ID = quota.RecordID(created.ID)
	}
	return nil
}

// UpdateWeighing pushes an edited weighing.
func (c *Client) UpdateWeighing(ctx context.Context, r *quota.WeighingRecord) error {
	path := fmt.Sprintf("/api/dechargement/%d", r.ID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(toWeighingDTO(r)).
		Put(path)
	if err != nil {
		return fmt.Errorf("update weighing upstream: %w", err)
	}
	return c.failure(http.MethodPut, path, resp)
}

// DeleteWeighing removes a weighing upstream.
func (c *Client) DeleteWeighing(ctx context.Context, id quota.RecordID) error {
	path := fmt.Sprintf("/api/dechargement/%d", id)
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(path)
	if err != nil {
		return fmt.Errorf("delete weighing upstream: %w", err)
	}
	return c.failure(http.MethodDelete, path, resp)
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// FetchAllocations pulls the project's allocations, normalizing the three
// payload generations into the engine's list form.
func (c *Client) FetchAllocations(ctx context.Context, project quota.ProjectID) ([]quota.Allocation, error) {
	var dtos []allocationDTO
	path := fmt.Sprintf("/api/quantite-autorisee/projet/%d", project)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&dtos).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch allocations: %w", err)
	}
	if err := c.failure(http.MethodGet, path, resp); err != nil {
		return nil, err
	}

	allocations := make([]quota.Allocation, 0, len(dtos))
	for _, dto := range dtos {
		alloc, err := c.normalizeAllocation(dto)
		if err != nil {
			c.log.Warn("skipping malformed allocation payload",
				zap.Int64("allocation", dto.ID),
				zap.Error(err))
			continue
		}
		allocations = append(allocations, alloc)
	}
	return allocations, nil
}

// PushAuthorizations replaces an allocation's authorization list upstream.
func (c *Client) PushAuthorizations(ctx context.Context, id quota.AllocationID, auths []quota.Authorization) error {
	dtos := make([]authorizationDTO, 0, len(auths))
	for _, a := range auths {
		dtos = append(dtos, authorizationDTO{Code: a.Code, Quantity: a.Quantity.Float64()})
	}

	path := fmt.Sprintf("/api/quantite-autorisee/%d", id)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"autorisation": dtos}).
		Put(path)
	if err != nil {
		return fmt.Errorf("push authorizations: %w", err)
	}
	return c.failure(http.MethodPut, path, resp)
}

func (c *Client) normalizeAllocation(dto allocationDTO) (quota.Allocation, error) {
	ben := quota.BeneficiaryRef{
		ClientID: quota.ClientID(dto.ClientID),
		DepotID:  quota.DepotID(dto.DepotID),
	}
	if !ben.Valid() {
		return quota.Allocation{}, quota.ErrNoBeneficiary
	}

	alloc := quota.Allocation{
		ID:          quota.AllocationID(dto.ID),
		ProjectID:   quota.ProjectID(dto.ProjectID),
		Beneficiary: ben,
	}

	auths, err := decodeAuthorizations(dto.Authorization)
	if err != nil {
		return quota.Allocation{}, err
	}
	if len(auths) > 0 {
		alloc.Authorizations = auths
	} else {
		alloc.LegacyQuantity = quota.NewQuantity(dto.AuthorizedScalar)
	}
	return alloc, nil
}

// decodeAuthorizations accepts the field as a JSON array, as that array
// serialized into a string, or as null/absent.
func decodeAuthorizations(raw json.RawMessage) ([]quota.Authorization, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	payload := raw
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		payload = json.RawMessage(asString)
	}

	var dtos []authorizationDTO
	if err := json.Unmarshal(payload, &dtos); err != nil {
		return nil, fmt.Errorf("decoding autorisation payload: %w", err)
	}

	auths := make([]quota.Authorization, 0, len(dtos))
	for _, d := range dtos {
		code := d.Code
		if code == "" {
			code = quota.DefaultCode
		}
		auths = append(auths, quota.Authorization{
			Code:     code,
			Quantity: quota.NewQuantity(d.Quantity),
		})
	}
	return auths, nil
}

// PushDepotQuantity replaces a depot allocation's quantity upstream. The
// depot endpoint predates coded authorizations and only accepts the scalar,
// so the allocation's total is what goes over the wire.
func (c *Client) PushDepotQuantity(ctx context.Context, id quota.AllocationID, qty quota.Quantity) error {
	path := fmt.Sprintf("/api/projet-depot/%d", id)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"quantiteAutorisee": qty.Float64()}).
		Put(path)
	if err != nil {
		return fmt.Errorf("push depot quantity: %w", err)
	}
	return c.failure(http.MethodPut, path, resp)
}

// =============================================================================
// TRIPS
// =============================================================================

// FetchTrips pulls the project's trip records.
func (c *Client) FetchTrips(ctx context.Context, project quota.ProjectID) ([]quota.TripRecord, error) {
	var dtos []tripDTO
	path := fmt.Sprintf("/api/voyage/projet/%d", project)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&dtos).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch trips: %w", err)
	}
	if err := c.failure(http.MethodGet, path, resp); err != nil {
		return nil, err
	}

	trips := make([]quota.TripRecord, 0, len(dtos))
	for _, dto := range dtos {
		trip := quota.TripRecord{
			ID:                quota.TripID(dto.ID),
			ProjectID:         quota.ProjectID(dto.ProjectID),
			TicketNo:          dto.TicketNo,
			DeliveryNoteNo:    dto.DeliveryNoteNo,
			ClientID:          quota.ClientID(dto.ClientID),
			DepotID:           quota.DepotID(dto.DepotID),
			ClientWeight:      quota.NewQuantity(dto.ClientWeight),
			DepotWeight:       quota.NewQuantity(dto.DepotWeight),
			Code:              dto.Code,
			Company:           dto.Company,
			DriverID:          dto.DriverID,
			TruckID:           dto.TruckID,
			RemainingSnapshot: quota.NewQuantity(dto.Remaining),
		}
		if dto.Date != "" {
			if parsed, err := time.Parse(time.RFC3339, dto.Date); err == nil {
				trip.Date = parsed
			}
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// FetchProject pulls the project context, including the advisory remaining
// quota figure used by the ledger's headroom guard.
func (c *Client) FetchProject(ctx context.Context, id quota.ProjectID) (*quota.ProjectContext, error) {
	dto := new(projectDTO)
	path := fmt.Sprintf("/api/projet/%d", id)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(dto).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	if err := c.failure(http.MethodGet, path, resp); err != nil {
		return nil, err
	}

	return &quota.ProjectContext{
		ProjectID:      quota.ProjectID(dto.ID),
		Name:           dto.Name,
		TotalQuota:     quota.NewQuantity(dto.TotalQuota),
		RemainingQuota: quota.NewQuantity(dto.RemainingQuota),
		Active:         dto.Active,
	}, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// failure maps a non-success response to an engine error via Classify.
func (c *Client) failure(method, path string, resp *resty.Response) error {
	kind := Classify(method, path, resp.StatusCode(), string(resp.Body()))
	switch kind {
	case KindNone:
		return nil
	case KindAuth:
		return fmt.Errorf("%s %s: %w", method, path, quota.ErrAuthExpired)
	case KindNotFound:
		return fmt.Errorf("%s %s: %w", method, path, quota.ErrRecordNotFound)
	case KindBusiness:
		return fmt.Errorf("%s %s: %s: %w", method, path,
			strings.TrimSpace(string(resp.Body())), quota.ErrOverrunRejected)
	default:
		return fmt.Errorf("upstream %s %s failed with status %d", method, path, resp.StatusCode())
	}
}

func toWeighingDTO(r *quota.WeighingRecord) weighingDTO {
	return weighingDTO{
		ID:             int64(r.ID),
		ProjectID:      int64(r.ProjectID),
		ClientID:       int64(r.Beneficiary.ClientID),
		DepotID:        int64(r.Beneficiary.DepotID),
		Code:           r.EffectiveCode(),
		GrossWeight:    r.GrossWeight.Float64(),
		TareWeight:     r.TareWeight.Float64(),
		TicketNo:       r.TicketNo,
		DeliveryNoteNo: r.DeliveryNoteNo,
		LoadingRef:     r.LoadingRef,
		Company:        r.Company,
		RecordedAt:     r.RecordedAt.Format(time.RFC3339),
	}
}
