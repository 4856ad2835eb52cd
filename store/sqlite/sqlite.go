/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements quota.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  projects:     Project contexts with total and advisory remaining quota
  allocations:  Per-beneficiary authorization lists (stored as JSON)
  weighings:    Unloading tickets with raw scale readings
  trips:        Logistics mirrors of weighings
  notices:      Operator-facing events

INDEXES:
  - idx_weighings_project_beneficiary: Consumption sums (hot path)
  - idx_weighings_ticket: Duplicate ticket detection per project
  - idx_trips_keys: Synchronizer lookups by ticket/delivery note

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/weighbridge.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ../../quota/store.go: Interface definitions
  - ../../quota/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quayops/weighbridge-engine/quota"
)

// Store implements quota.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		total_quota TEXT NOT NULL,
		remaining_quota TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	-- Allocations (authorization lists stored as JSON)
	CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		client_id INTEGER,
		depot_id INTEGER,
		authorizations_json TEXT,
		legacy_quantity TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One allocation per beneficiary per project
	CREATE UNIQUE INDEX IF NOT EXISTS idx_allocations_beneficiary
		ON allocations(project_id, IFNULL(client_id, 0), IFNULL(depot_id, 0));

	-- Weighings (raw scale readings, net weight always derived)
	CREATE TABLE IF NOT EXISTS weighings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		client_id INTEGER,
		depot_id INTEGER,
		code TEXT,
		gross_weight TEXT NOT NULL,
		tare_weight TEXT NOT NULL,
		ticket_no TEXT NOT NULL,
		delivery_note_no TEXT NOT NULL,
		loading_ref TEXT,
		company TEXT,
		recorded_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Consumption sums filter on these columns (hot path)
	CREATE INDEX IF NOT EXISTS idx_weighings_project_beneficiary
		ON weighings(project_id, client_id, depot_id);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_weighings_ticket
		ON weighings(project_id, ticket_no);

	CREATE INDEX IF NOT EXISTS idx_weighings_recorded_at
		ON weighings(recorded_at);

	-- Trips
	CREATE TABLE IF NOT EXISTS trips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER,
		ticket_no TEXT,
		delivery_note_no TEXT,
		client_id INTEGER,
		depot_id INTEGER,
		client_weight TEXT NOT NULL DEFAULT '0',
		depot_weight TEXT NOT NULL DEFAULT '0',
		code TEXT,
		company TEXT,
		driver_id TEXT,
		truck_id TEXT,
		remaining_snapshot TEXT NOT NULL DEFAULT '0',
		date TEXT
	);

	-- Synchronizer lookups
	CREATE INDEX IF NOT EXISTS idx_trips_keys
		ON trips(ticket_no, delivery_note_no);

	-- Notices
	CREATE TABLE IF NOT EXISTS notices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		level TEXT NOT NULL,
		kind TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notices_created_at
		ON notices(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (s *Store) SaveAllocation(ctx context.Context, a *quota.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var authsJSON sql.NullString
	if len(a.Authorizations) > 0 {
		encoded, err := json.Marshal(a.Authorizations)
		if err != nil {
			return fmt.Errorf("encoding authorizations: %w", err)
		}
		authsJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if a.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO allocations (project_id, client_id, depot_id, authorizations_json, legacy_quantity, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(a.ProjectID),
			nullID(int64(a.Beneficiary.ClientID)),
			nullID(int64(a.Beneficiary.DepotID)),
			authsJSON,
			a.LegacyQuantity.Value.String(),
			a.CreatedAt.Format(time.RFC3339),
			a.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("beneficiary already holds an allocation in project %d: %w", a.ProjectID, err)
			}
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = quota.AllocationID(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocations (id, project_id, client_id, depot_id, authorizations_json, legacy_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			client_id = excluded.client_id,
			depot_id = excluded.depot_id,
			authorizations_json = excluded.authorizations_json,
			legacy_quantity = excluded.legacy_quantity,
			updated_at = excluded.updated_at`,
		int64(a.ID),
		int64(a.ProjectID),
		nullID(int64(a.Beneficiary.ClientID)),
		nullID(int64(a.Beneficiary.DepotID)),
		authsJSON,
		a.LegacyQuantity.Value.String(),
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetAllocation(ctx context.Context, id quota.AllocationID) (*quota.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allocs, err := s.queryAllocations(ctx, selectAllocations+` WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, quota.ErrAllocationNotFound
	}
	return &allocs[0], nil
}

func (s *Store) FindAllocation(ctx context.Context, project quota.ProjectID, ben quota.BeneficiaryRef) (*quota.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allocs, err := s.queryAllocations(ctx,
		selectAllocations+` WHERE project_id = ? AND IFNULL(client_id, 0) = ? AND IFNULL(depot_id, 0) = ? ORDER BY id LIMIT 1`,
		int64(project), int64(ben.ClientID), int64(ben.DepotID))
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, quota.ErrAllocationNotFound
	}
	return &allocs[0], nil
}

func (s *Store) ListAllocations(ctx context.Context, project quota.ProjectID) ([]quota.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAllocations(ctx, selectAllocations+` WHERE project_id = ? ORDER BY id`, int64(project))
}

func (s *Store) DeleteAllocation(ctx context.Context, id quota.AllocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM allocations WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrAllocationNotFound
	}
	return nil
}

const selectAllocations = `
	SELECT id, project_id, client_id, depot_id, authorizations_json, legacy_quantity, created_at, updated_at
	FROM allocations`

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]quota.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []quota.Allocation
	for rows.Next() {
		var (
			a         quota.Allocation
			clientID  sql.NullInt64
			depotID   sql.NullInt64
			authsJSON sql.NullString
			legacy    string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&a.ID, &a.ProjectID, &clientID, &depotID, &authsJSON, &legacy, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.Beneficiary = quota.BeneficiaryRef{
			ClientID: quota.ClientID(clientID.Int64),
			DepotID:  quota.DepotID(depotID.Int64),
		}
		if authsJSON.Valid && authsJSON.String != "" {
			if err := json.Unmarshal([]byte(authsJSON.String), &a.Authorizations); err != nil {
				return nil, fmt.Errorf("decoding authorizations for allocation %d: %w", a.ID, err)
			}
		}
		a.LegacyQuantity = quota.MustParseQuantity(legacy)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// WEIGHINGS
// =============================================================================

func (s *Store) SaveWeighing(ctx context.Context, r *quota.WeighingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	if r.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO weighings (project_id, client_id, depot_id, code, gross_weight, tare_weight,
				ticket_no, delivery_note_no, loading_ref, company, recorded_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(r.ProjectID),
			nullID(int64(r.Beneficiary.ClientID)),
			nullID(int64(r.Beneficiary.DepotID)),
			nullString(r.Code),
			r.GrossWeight.Value.String(),
			r.TareWeight.Value.String(),
			r.TicketNo,
			r.DeliveryNoteNo,
			nullString(r.LoadingRef),
			nullString(r.Company),
			r.RecordedAt.Format(time.RFC3339),
			r.CreatedAt.Format(time.RFC3339),
			r.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("ticket %s already recorded in project %d: %w", r.TicketNo, r.ProjectID, err)
			}
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		r.ID = quota.RecordID(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weighings (id, project_id, client_id, depot_id, code, gross_weight, tare_weight,
			ticket_no, delivery_note_no, loading_ref, company, recorded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			client_id = excluded.client_id,
			depot_id = excluded.depot_id,
			code = excluded.code,
			gross_weight = excluded.gross_weight,
			tare_weight = excluded.tare_weight,
			ticket_no = excluded.ticket_no,
			delivery_note_no = excluded.delivery_note_no,
			loading_ref = excluded.loading_ref,
			company = excluded.company,
			recorded_at = excluded.recorded_at,
			updated_at = excluded.updated_at`,
		int64(r.ID),
		int64(r.ProjectID),
		nullID(int64(r.Beneficiary.ClientID)),
		nullID(int64(r.Beneficiary.DepotID)),
		nullString(r.Code),
		r.GrossWeight.Value.String(),
		r.TareWeight.Value.String(),
		r.TicketNo,
		r.DeliveryNoteNo,
		nullString(r.LoadingRef),
		nullString(r.Company),
		r.RecordedAt.Format(time.RFC3339),
		r.CreatedAt.Format(time.RFC3339),
		r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil && isUniqueConstraintError(err) {
		return fmt.Errorf("ticket %s already recorded in project %d: %w", r.TicketNo, r.ProjectID, err)
	}
	return err
}

func (s *Store) GetWeighing(ctx context.Context, id quota.RecordID) (*quota.WeighingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.queryWeighings(ctx, selectWeighings+` WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, quota.ErrRecordNotFound
	}
	return &records[0], nil
}

func (s *Store) DeleteWeighing(ctx context.Context, id quota.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM weighings WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListWeighings(ctx context.Context, project quota.ProjectID) ([]quota.WeighingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryWeighings(ctx,
		selectWeighings+` WHERE project_id = ? ORDER BY recorded_at, id`, int64(project))
}

func (s *Store) ListWeighingsByBeneficiary(ctx context.Context, project quota.ProjectID, ben quota.BeneficiaryRef) ([]quota.WeighingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryWeighings(ctx,
		selectWeighings+` WHERE project_id = ? AND IFNULL(client_id, 0) = ? AND IFNULL(depot_id, 0) = ? ORDER BY recorded_at, id`,
		int64(project), int64(ben.ClientID), int64(ben.DepotID))
}

const selectWeighings = `
	SELECT id, project_id, client_id, depot_id, code, gross_weight, tare_weight,
		ticket_no, delivery_note_no, loading_ref, company, recorded_at, created_at, updated_at
	FROM weighings`

func (s *Store) queryWeighings(ctx context.Context, query string, args ...any) ([]quota.WeighingRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []quota.WeighingRecord
	for rows.Next() {
		var (
			r          quota.WeighingRecord
			clientID   sql.NullInt64
			depotID    sql.NullInt64
			code       sql.NullString
			gross      string
			tare       string
			loadingRef sql.NullString
			company    sql.NullString
			recordedAt string
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &clientID, &depotID, &code, &gross, &tare,
			&r.TicketNo, &r.DeliveryNoteNo, &loadingRef, &company, &recordedAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Beneficiary = quota.BeneficiaryRef{
			ClientID: quota.ClientID(clientID.Int64),
			DepotID:  quota.DepotID(depotID.Int64),
		}
		r.Code = code.String
		r.GrossWeight = quota.MustParseQuantity(gross)
		r.TareWeight = quota.MustParseQuantity(tare)
		r.LoadingRef = loadingRef.String
		r.Company = company.String
		r.RecordedAt = parseTime(recordedAt)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// TRIPS
// =============================================================================

func (s *Store) SaveTrip(ctx context.Context, t *quota.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var date sql.NullString
	if !t.Date.IsZero() {
		date = sql.NullString{String: t.Date.Format(time.RFC3339), Valid: true}
	}

	if t.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO trips (project_id, ticket_no, delivery_note_no, client_id, depot_id,
				client_weight, depot_weight, code, company, driver_id, truck_id, remaining_snapshot, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullID(int64(t.ProjectID)),
			nullString(t.TicketNo),
			nullString(t.DeliveryNoteNo),
			nullID(int64(t.ClientID)),
			nullID(int64(t.DepotID)),
			t.ClientWeight.Value.String(),
			t.DepotWeight.Value.String(),
			nullString(t.Code),
			nullString(t.Company),
			nullString(t.DriverID),
			nullString(t.TruckID),
			t.RemainingSnapshot.Value.String(),
			date,
		)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = quota.TripID(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trips (id, project_id, ticket_no, delivery_note_no, client_id, depot_id,
			client_weight, depot_weight, code, company, driver_id, truck_id, remaining_snapshot, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			ticket_no = excluded.ticket_no,
			delivery_note_no = excluded.delivery_note_no,
			client_id = excluded.client_id,
			depot_id = excluded.depot_id,
			client_weight = excluded.client_weight,
			depot_weight = excluded.depot_weight,
			code = excluded.code,
			company = excluded.company,
			driver_id = excluded.driver_id,
			truck_id = excluded.truck_id,
			remaining_snapshot = excluded.remaining_snapshot,
			date = excluded.date`,
		int64(t.ID),
		nullID(int64(t.ProjectID)),
		nullString(t.TicketNo),
		nullString(t.DeliveryNoteNo),
		nullID(int64(t.ClientID)),
		nullID(int64(t.DepotID)),
		t.ClientWeight.Value.String(),
		t.DepotWeight.Value.String(),
		nullString(t.Code),
		nullString(t.Company),
		nullString(t.DriverID),
		nullString(t.TruckID),
		t.RemainingSnapshot.Value.String(),
		date,
	)
	return err
}

func (s *Store) GetTrip(ctx context.Context, id quota.TripID) (*quota.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trips, err := s.queryTrips(ctx, selectTrips+` WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, quota.ErrTripNotFound
	}
	return &trips[0], nil
}

func (s *Store) DeleteTrip(ctx context.Context, id quota.TripID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return quota.ErrTripNotFound
	}
	return nil
}

func (s *Store) ListTrips(ctx context.Context, project quota.ProjectID) ([]quota.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTrips(ctx, selectTrips+` WHERE project_id = ? ORDER BY id`, int64(project))
}

func (s *Store) FindTripByKeys(ctx context.Context, ticketNo, deliveryNoteNo string) (*quota.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trips, err := s.queryTrips(ctx,
		selectTrips+` WHERE ticket_no = ? AND delivery_note_no = ? ORDER BY id LIMIT 1`,
		ticketNo, deliveryNoteNo)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, quota.ErrTripNotFound
	}
	return &trips[0], nil
}

func (s *Store) FindTripByEitherKey(ctx context.Context, ticketNo, deliveryNoteNo string) (*quota.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trips, err := s.queryTrips(ctx,
		selectTrips+` WHERE (ticket_no = ? AND ticket_no != '') OR (delivery_note_no = ? AND delivery_note_no != '') ORDER BY id LIMIT 1`,
		ticketNo, deliveryNoteNo)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, quota.ErrTripNotFound
	}
	return &trips[0], nil
}

const selectTrips = `
	SELECT id, project_id, ticket_no, delivery_note_no, client_id, depot_id,
		client_weight, depot_weight, code, company, driver_id, truck_id, remaining_snapshot, date
	FROM trips`

func (s *Store) queryTrips(ctx context.Context, query string, args ...any) ([]quota.TripRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []quota.TripRecord
	for rows.Next() {
		var (
			t         quota.TripRecord
			projectID sql.NullInt64
			ticketNo  sql.NullString
			noteNo    sql.NullString
			clientID  sql.NullInt64
			depotID   sql.NullInt64
			clientW   string
			depotW    string
			code      sql.NullString
			company   sql.NullString
			driverID  sql.NullString
			truckID   sql.NullString
			snapshot  string
			date      sql.NullString
		)
		if err := rows.Scan(&t.ID, &projectID, &ticketNo, &noteNo, &clientID, &depotID,
			&clientW, &depotW, &code, &company, &driverID, &truckID, &snapshot, &date); err != nil {
			return nil, err
		}
		t.ProjectID = quota.ProjectID(projectID.Int64)
		t.TicketNo = ticketNo.String
		t.DeliveryNoteNo = noteNo.String
		t.ClientID = quota.ClientID(clientID.Int64)
		t.DepotID = quota.DepotID(depotID.Int64)
		t.ClientWeight = quota.MustParseQuantity(clientW)
		t.DepotWeight = quota.MustParseQuantity(depotW)
		t.Code = code.String
		t.Company = company.String
		t.DriverID = driverID.String
		t.TruckID = truckID.String
		t.RemainingSnapshot = quota.MustParseQuantity(snapshot)
		if date.Valid {
			t.Date = parseTime(date.String)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p *quota.ProjectContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, total_quota, remaining_quota, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			total_quota = excluded.total_quota,
			remaining_quota = excluded.remaining_quota,
			active = excluded.active`,
		int64(p.ProjectID),
		p.Name,
		p.TotalQuota.Value.String(),
		p.RemainingQuota.Value.String(),
		boolToInt(p.Active),
	)
	return err
}

func (s *Store) GetProject(ctx context.Context, id quota.ProjectID) (*quota.ProjectContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, total_quota, remaining_quota, active FROM projects WHERE id = ?`, int64(id))

	var (
		p         quota.ProjectContext
		total     string
		remaining string
		active    int
	)
	if err := row.Scan(&p.ProjectID, &p.Name, &total, &remaining, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, quota.ErrProjectNotFound
		}
		return nil, err
	}
	p.TotalQuota = quota.MustParseQuantity(total)
	p.RemainingQuota = quota.MustParseQuantity(remaining)
	p.Active = active != 0
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]quota.ProjectContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, total_quota, remaining_quota, active FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []quota.ProjectContext
	for rows.Next() {
		var (
			p         quota.ProjectContext
			total     string
			remaining string
			active    int
		)
		if err := rows.Scan(&p.ProjectID, &p.Name, &total, &remaining, &active); err != nil {
			return nil, err
		}
		p.TotalQuota = quota.MustParseQuantity(total)
		p.RemainingQuota = quota.MustParseQuantity(remaining)
		p.Active = active != 0
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// =============================================================================
// NOTICES
// =============================================================================

func (s *Store) SaveNotice(ctx context.Context, n *quota.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO notices (level, kind, entity, entity_id, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(n.Level), n.Kind, n.Entity, n.EntityID, n.Message,
		n.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (s *Store) ListNotices(ctx context.Context, since time.Time) ([]quota.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, kind, entity, entity_id, message, created_at
		FROM notices WHERE created_at >= ? ORDER BY created_at, id`,
		since.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []quota.Notice
	for rows.Next() {
		var (
			n         quota.Notice
			level     string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &level, &n.Kind, &n.Entity, &n.EntityID, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		n.Level = quota.NoticeLevel(level)
		n.CreatedAt = parseTime(createdAt)
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// Reset clears all tables (for testing).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"notices", "trips", "weighings", "allocations", "projects"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
