/*
handlers.go - HTTP API handlers for the weighbridge quota engine

PURPOSE:
  Exposes the quota engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Projects:
    GET    /api/projects                     List projects
    PUT    /api/projects                     Upsert a project
    GET    /api/projects/{id}                Get project details
    POST   /api/projects/{id}/import         Pull project state from upstream

  Allocations:
    GET    /api/projects/{id}/allocations    List a project's allocations
    POST   /api/projects/{id}/allocations    Grant an allocation
    PUT    /api/allocations/{id}             Replace authorizations
    DELETE /api/allocations/{id}             Revoke an allocation
    GET    /api/allocations/{id}/remaining   Remaining per code

  Weighings:
    GET    /api/projects/{id}/weighings      List a project's weighings
    POST   /api/weighings                    Save a new weighing
    PUT    /api/weighings/{id}               Edit a weighing
    DELETE /api/weighings/{id}               Delete a weighing (cascades)

  Attempts:
    POST   /api/attempts/{id}/confirm        Confirm an overrun override
    POST   /api/attempts/{id}/cancel         Abandon an overrun save

  Trips:
    GET    /api/projects/{id}/trips          List a project's trip mirror

  Notices:
    GET    /api/notices                      Operator notices (since=RFC3339)

  Reconcile:
    POST   /api/reconcile/run                Run the divergence sweep now

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator plus cross-field checks)
  3. Call domain logic (ledger, saver, sweeper)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (overrun pending confirmation, duplicates)
  - 502: Upstream rejected or unreachable
  - 500: Internal errors

OVERRUN PROTOCOL:
  A save that exceeds the remaining quota does not fail. It parks as an
  attempt and the response is 409 with an OverrunResponse carrying the
  attempt ID. The client confirms or cancels through the attempts
  endpoints. Unconfirmed attempts expire after attemptTTL.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ../weighing/save.go: The attempt state machine
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/quayops/weighbridge-engine/quota"
	"github.com/quayops/weighbridge-engine/reconcile"
	"github.com/quayops/weighbridge-engine/weighing"
)

// attemptTTL bounds how long an unconfirmed overrun attempt stays valid.
// The remaining figure shown to the operator goes stale as other records
// land, so an old confirmation should not be honored.
const attemptTTL = 10 * time.Minute

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Remote is the slice of the gateway the handlers use directly: pulling a
// project's state into the local store and pushing authorization changes
// back. Nil when running standalone.
type Remote interface {
	FetchProject(ctx context.Context, id quota.ProjectID) (*quota.ProjectContext, error)
	FetchAllocations(ctx context.Context, project quota.ProjectID) ([]quota.Allocation, error)
	FetchTrips(ctx context.Context, project quota.ProjectID) ([]quota.TripRecord, error)
	PushAuthorizations(ctx context.Context, id quota.AllocationID, auths []quota.Authorization) error
	PushDepotQuantity(ctx context.Context, id quota.AllocationID, qty quota.Quantity) error
}

// Handler holds all dependencies for API handlers.
type Handler struct {
	Store   quota.Store
	Ledger  *quota.Ledger
	Saver   *weighing.Saver
	Sweeper *reconcile.Sweeper
	Remote  Remote

	validate *validator.Validate
	log      *zap.Logger

	mu       sync.Mutex
	attempts map[string]*weighing.Attempt
}

func NewHandler(store quota.Store, ledger *quota.Ledger, saver *weighing.Saver, sweeper *reconcile.Sweeper, remote Remote, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Ledger:   ledger,
		Saver:    saver,
		Sweeper:  sweeper,
		Remote:   remote,
		validate: validator.New(),
		log:      log,
		attempts: make(map[string]*weighing.Attempt),
	}
}

// =============================================================================
// PROJECT ENDPOINTS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	project := quota.ProjectContext{
		ProjectID:      quota.ProjectID(req.ID),
		Name:           req.Name,
		TotalQuota:     quota.NewQuantity(req.TotalQuota),
		RemainingQuota: quota.NewQuantity(req.RemainingQuota),
		Active:         req.Active,
	}
	if err := h.Store.SaveProject(r.Context(), &project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(project))
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}
	project, err := h.Store.GetProject(r.Context(), quota.ProjectID(id))
	if err != nil {
		writeStoreError(w, "project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*project))
}

// ImportProject pulls a project's authoritative state from the upstream
// service into the local store: the project context, its allocations and
// its trip records. Weighings are not pulled; they originate locally.
func (h *Handler) ImportProject(w http.ResponseWriter, r *http.Request) {
	if h.Remote == nil {
		writeError(w, http.StatusServiceUnavailable, "no upstream configured", nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}
	projectID := quota.ProjectID(id)

	project, err := h.Remote.FetchProject(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, "failed to fetch project", err)
		return
	}
	if err := h.Store.SaveProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}

	allocs, err := h.Remote.FetchAllocations(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, "failed to fetch allocations", err)
		return
	}
	for i := range allocs {
		if err := h.Store.SaveAllocation(r.Context(), &allocs[i]); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save allocation", err)
			return
		}
	}

	trips, err := h.Remote.FetchTrips(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, "failed to fetch trips", err)
		return
	}
	for i := range trips {
		if err := h.Store.SaveTrip(r.Context(), &trips[i]); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save trip", err)
			return
		}
	}

	h.log.Info("project imported from upstream",
		zap.Int64("project", id),
		zap.Int("allocations", len(allocs)),
		zap.Int("trips", len(trips)))
	writeJSON(w, http.StatusOK, map[string]any{
		"project":     toProjectDTO(*project),
		"allocations": len(allocs),
		"trips":       len(trips),
	})
}

// =============================================================================
// ALLOCATION ENDPOINTS
// =============================================================================

func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}
	allocs, err := h.Store.ListAllocations(r.Context(), quota.ProjectID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list allocations", err)
		return
	}
	dtos := make([]AllocationDTO, 0, len(allocs))
	for _, a := range allocs {
		dtos = append(dtos, toAllocationDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}

	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	ben := beneficiaryOf(req.ClientID, req.DepotID)
	if !ben.Valid() {
		writeError(w, http.StatusBadRequest, "exactly one of client_id or depot_id is required", nil)
		return
	}

	headroom, err := h.projectHeadroom(r, quota.ProjectID(projectID))
	if err != nil {
		writeStoreError(w, "project", err)
		return
	}

	alloc, err := h.Ledger.CreateAllocation(r.Context(), quota.ProjectID(projectID), ben, toAuthorizations(req.Authorizations), headroom)
	if err != nil {
		writeDomainError(w, "failed to create allocation", err)
		return
	}
	h.pushAllocation(r.Context(), alloc)
	writeJSON(w, http.StatusCreated, toAllocationDTO(*alloc))
}

func (h *Handler) ReplaceAuthorizations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation id", err)
		return
	}

	var req ReplaceAuthorizationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	existing, err := h.Store.GetAllocation(r.Context(), quota.AllocationID(id))
	if err != nil {
		writeStoreError(w, "allocation", err)
		return
	}
	headroom, err := h.projectHeadroom(r, existing.ProjectID)
	if err != nil {
		writeStoreError(w, "project", err)
		return
	}

	alloc, err := h.Ledger.ReplaceAuthorizations(r.Context(), quota.AllocationID(id), toAuthorizations(req.Authorizations), headroom)
	if err != nil {
		writeDomainError(w, "failed to replace authorizations", err)
		return
	}
	h.pushAllocation(r.Context(), alloc)
	writeJSON(w, http.StatusOK, toAllocationDTO(*alloc))
}

// pushAllocation mirrors an allocation change to the upstream service. Best
// effort: the local write already happened, a push failure leaves a notice
// for the operator. Depots go through the scalar endpoint.
func (h *Handler) pushAllocation(ctx context.Context, alloc *quota.Allocation) {
	if h.Remote == nil {
		return
	}
	var err error
	if alloc.Beneficiary.IsDepot() {
		err = h.Remote.PushDepotQuantity(ctx, alloc.ID, alloc.TotalAuthorized())
	} else {
		err = h.Remote.PushAuthorizations(ctx, alloc.ID, alloc.Normalized())
	}
	if err == nil {
		return
	}
	h.log.Warn("allocation push to upstream failed",
		zap.Int64("allocation", int64(alloc.ID)),
		zap.Error(err))
	n := &quota.Notice{
		Level:     quota.NoticeWarning,
		Kind:      "allocation_push_failed",
		Entity:    "allocation",
		EntityID:  int64(alloc.ID),
		Message:   "allocation saved locally but the upstream push failed: " + err.Error(),
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveNotice(ctx, n); err != nil {
		h.log.Error("saving notice", zap.Error(err))
	}
}

func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation id", err)
		return
	}
	if err := h.Store.DeleteAllocation(r.Context(), quota.AllocationID(id)); err != nil {
		writeStoreError(w, "allocation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRemaining reports every code's remaining balance for an allocation.
// With ?code= it narrows to one code.
func (h *Handler) GetRemaining(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation id", err)
		return
	}
	alloc, err := h.Store.GetAllocation(r.Context(), quota.AllocationID(id))
	if err != nil {
		writeStoreError(w, "allocation", err)
		return
	}
	records, err := h.Store.ListWeighings(r.Context(), alloc.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list weighings", err)
		return
	}

	codes := alloc.Codes()
	if code := r.URL.Query().Get("code"); code != "" {
		codes = []string{code}
	}
	dtos := make([]RemainingDTO, 0, len(codes))
	for _, code := range codes {
		remaining := quota.Remaining(*alloc, records, quota.RemainingQuery{Code: code})
		dtos = append(dtos, RemainingDTO{
			AllocationID: int64(alloc.ID),
			Code:         code,
			Authorized:   alloc.AuthorizedFor(code).Float64(),
			Remaining:    remaining.Float64(),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WEIGHING ENDPOINTS
// =============================================================================

func (h *Handler) ListWeighings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}
	records, err := h.Store.ListWeighings(r.Context(), quota.ProjectID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list weighings", err)
		return
	}
	dtos := make([]WeighingDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toWeighingDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWeighing(w http.ResponseWriter, r *http.Request) {
	h.saveWeighing(w, r, nil)
}

func (h *Handler) UpdateWeighing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid weighing id", err)
		return
	}
	prior, err := h.Store.GetWeighing(r.Context(), quota.RecordID(id))
	if err != nil {
		writeStoreError(w, "weighing", err)
		return
	}
	h.saveWeighing(w, r, prior)
}

// saveWeighing runs the shared create/edit flow. An accepted attempt
// persists immediately; an overrun parks and answers 409 with the attempt
// ID so the operator can decide.
func (h *Handler) saveWeighing(w http.ResponseWriter, r *http.Request, prior *quota.WeighingRecord) {
	var req SaveWeighingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	rec, err := toWeighingRecord(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid weighing", err)
		return
	}
	if prior != nil {
		rec.ID = prior.ID
		rec.CreatedAt = prior.CreatedAt
	}

	attempt, err := h.Saver.Begin(r.Context(), rec, prior)
	if err != nil {
		writeDomainError(w, "failed to validate weighing", err)
		return
	}

	if attempt.State == weighing.StateOverrunPending {
		h.parkAttempt(attempt)
		writeJSON(w, http.StatusConflict, OverrunResponse{
			AttemptID: attempt.ID,
			Remaining: attempt.Remaining.Float64(),
			Requested: attempt.Record.NetWeight().Float64(),
			Excess:    attempt.Excess.Float64(),
			Message:   "net weight exceeds remaining quota, confirm to override",
		})
		return
	}

	h.persistAttempt(w, r, attempt, prior == nil)
}

func (h *Handler) DeleteWeighing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid weighing id", err)
		return
	}
	warning, err := h.Saver.Delete(r.Context(), quota.RecordID(id))
	if err != nil {
		writeDomainError(w, "failed to delete weighing", err)
		return
	}
	resp := map[string]string{"status": "deleted"}
	if warning != nil {
		resp["sync_warning"] = warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ATTEMPT ENDPOINTS
// =============================================================================

func (h *Handler) ConfirmAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.takeAttempt(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "attempt not found or expired", nil)
		return
	}
	if err := h.Saver.Confirm(attempt); err != nil {
		writeError(w, http.StatusConflict, "cannot confirm attempt", err)
		return
	}
	h.persistAttempt(w, r, attempt, attempt.Prior == nil)
}

func (h *Handler) CancelAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, ok := h.takeAttempt(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "attempt not found or expired", nil)
		return
	}
	if err := h.Saver.Cancel(attempt); err != nil {
		writeError(w, http.StatusConflict, "cannot cancel attempt", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) persistAttempt(w http.ResponseWriter, r *http.Request, attempt *weighing.Attempt, created bool) {
	if err := h.Saver.Persist(r.Context(), attempt); err != nil {
		if errors.Is(err, quota.ErrOverrunRejected) || errors.Is(err, quota.ErrAuthExpired) {
			writeError(w, http.StatusBadGateway, "upstream rejected the save", err)
			return
		}
		writeDomainError(w, "failed to persist weighing", err)
		return
	}

	resp := SaveWeighingResponse{Record: toWeighingDTO(attempt.Record)}
	if attempt.SyncWarning != nil {
		resp.SyncWarning = attempt.SyncWarning.Error()
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// parkAttempt stores an overrun-pending attempt for a later confirm or
// cancel, pruning expired ones while it holds the lock.
func (h *Handler) parkAttempt(attempt *weighing.Attempt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-attemptTTL)
	for id, a := range h.attempts {
		if a.CreatedAt.Before(cutoff) {
			delete(h.attempts, id)
		}
	}
	h.attempts[attempt.ID] = attempt
}

func (h *Handler) takeAttempt(id string) (*weighing.Attempt, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	attempt, ok := h.attempts[id]
	if !ok {
		return nil, false
	}
	delete(h.attempts, id)
	if attempt.CreatedAt.Before(time.Now().Add(-attemptTTL)) {
		return nil, false
	}
	return attempt, true
}

// =============================================================================
// TRIP ENDPOINTS
// =============================================================================

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id", err)
		return
	}
	trips, err := h.Store.ListTrips(r.Context(), quota.ProjectID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list trips", err)
		return
	}
	dtos := make([]TripDTO, 0, len(trips))
	for _, t := range trips {
		dtos = append(dtos, toTripDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// NOTICE ENDPOINTS
// =============================================================================

func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp", err)
			return
		}
		since = parsed
	}
	notices, err := h.Store.ListNotices(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notices", err)
		return
	}
	dtos := make([]NoticeDTO, 0, len(notices))
	for _, n := range notices {
		dtos = append(dtos, toNoticeDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECONCILE ENDPOINTS
// =============================================================================

func (h *Handler) RunReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Sweeper.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reconcile sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepReportDTO{
		Projects:        report.Projects,
		OrphanWeighings: report.OrphanWeighings,
		OrphanTrips:     report.OrphanTrips,
		SweptAt:         report.SweptAt.Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps a lookup failure to 404 or 500.
func writeStoreError(w http.ResponseWriter, entity string, err error) {
	if quota.IsNotFound(err) {
		writeError(w, http.StatusNotFound, entity+" not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load "+entity, err)
}

// writeDomainError maps domain failures to client or server status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case quota.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, quota.ErrDuplicateCode):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, quota.ErrOverrun):
		writeError(w, http.StatusConflict, message, err)
	case quota.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected positive integer, got %q", raw)
	}
	return id, nil
}

func beneficiaryOf(clientID, depotID int64) quota.BeneficiaryRef {
	return quota.BeneficiaryRef{
		ClientID: quota.ClientID(clientID),
		DepotID:  quota.DepotID(depotID),
	}
}

func toAuthorizations(inputs []AuthorizationInput) []quota.Authorization {
	auths := make([]quota.Authorization, 0, len(inputs))
	for _, in := range inputs {
		auths = append(auths, quota.Authorization{
			Code:     in.Code,
			Quantity: quota.NewQuantity(in.Quantity),
		})
	}
	return auths
}

func toWeighingRecord(req SaveWeighingRequest) (quota.WeighingRecord, error) {
	ben := beneficiaryOf(req.ClientID, req.DepotID)
	if !ben.Valid() {
		return quota.WeighingRecord{}, fmt.Errorf("exactly one of client_id or depot_id is required")
	}
	recordedAt, err := time.Parse(time.RFC3339, req.RecordedAt)
	if err != nil {
		return quota.WeighingRecord{}, fmt.Errorf("recorded_at: %w", err)
	}
	return quota.WeighingRecord{
		ProjectID:      quota.ProjectID(req.ProjectID),
		Beneficiary:    ben,
		Code:           req.Code,
		GrossWeight:    quota.NewQuantity(req.GrossWeight),
		TareWeight:     quota.NewQuantity(req.TareWeight),
		TicketNo:       req.TicketNo,
		DeliveryNoteNo: req.DeliveryNoteNo,
		LoadingRef:     req.LoadingRef,
		Company:        req.Company,
		RecordedAt:     recordedAt,
	}, nil
}

// projectHeadroom reads the stored project's advisory remaining figure,
// tolerating an unregistered project by treating headroom as unlimited.
func (h *Handler) projectHeadroom(r *http.Request, id quota.ProjectID) (quota.Quantity, error) {
	project, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		if quota.IsNotFound(err) {
			return quota.NewQuantityFromInt(1 << 40), nil
		}
		return quota.ZeroQuantity(), err
	}
	return project.RemainingQuota, nil
}
