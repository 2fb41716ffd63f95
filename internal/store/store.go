// Package store is the row-oriented persistence layer for cases,
// timeline events, and scraped listings. It wraps database/sql directly
// and supports sqlite, postgres, and mysql behind one dialect switch.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/dccp/internal/errs"
)

// Store provides upsert, filtered-read, and atomic-counter operations
// over the control plane's tables. It is safe for concurrent use; the
// listings tables are single-writer per category by convention of the
// scraping cache (internal/cache), not by a lock held here.
type Store struct {
	db     *sql.DB
	driver string
}

// New wraps db for dialect-aware queries. driver is the same driver name
// passed to dbpool ("sqlite3", "postgres", "mysql").
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Migrate runs the embedded schema's CREATE TABLE IF NOT EXISTS
// statements, one at a time. The DDL is written to the portable subset
// all three backends accept (see schema.go), so no per-dialect DDL
// branching is needed; unknown drivers are rejected up front rather
// than failing statement-by-statement.
func (s *Store) Migrate(ctx context.Context) error {
	switch s.driver {
	case "sqlite3", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("store: unsupported driver %q (supported: sqlite3, postgres, mysql)", s.driver)
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites "?" placeholders to lib/pq's "$1, $2, ..." form when the
// backend is postgres; sqlite3 and mysql both accept "?" natively.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// --- Case -------------------------------------------------------------

// caseTimestampLayout is RFC 3339 with fixed-width nanoseconds: updated_at
// values then sort correctly as strings, and two writes within the same
// second still order.
const caseTimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// UpsertCase inserts or replaces the Case row, updating UpdatedAt.
func (s *Store) UpsertCase(ctx context.Context, c *Case) error {
	contact, err := json.Marshal(c.Contact)
	if err != nil {
		return &errs.Internal{Detail: "marshal contact", Err: err}
	}
	discharge, err := json.Marshal(c.Discharge)
	if err != nil {
		return &errs.Internal{Detail: "marshal discharge", Err: err}
	}
	clinical, err := json.Marshal(c.Clinical)
	if err != nil {
		return &errs.Internal{Detail: "marshal clinical", Err: err}
	}
	followUp, err := json.Marshal(c.FollowUp)
	if err != nil {
		return &errs.Internal{Detail: "marshal follow_up", Err: err}
	}
	benefits, err := json.Marshal(c.AssignedBenefits)
	if err != nil {
		return &errs.Internal{Detail: "marshal benefits", Err: err}
	}

	var completedAt interface{}
	if c.CompletedAt != nil {
		completedAt = c.CompletedAt.UTC().Format(time.RFC3339)
	}

	// Every UpsertCase call represents a mutation happening now. Callers
	// (internal/workflow) only populate the Case's domain fields, not its
	// timestamps, so default them here rather than forcing every call site
	// to stamp CreatedAt/UpdatedAt itself. created_at is excluded from the
	// ON CONFLICT update below, so the first insert's value sticks.
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := time.Now()

	query := s.upsertQuery("cases",
		[]string{"case_id", "patient_name", "patient_dob", "contact_json", "discharge_json",
			"clinical_json", "follow_up_json", "workflow_status", "current_step",
			"assigned_shelter_id", "assigned_transport_provider", "assigned_benefits_json",
			"created_at", "updated_at", "completed_at"},
		"case_id",
		[]string{"patient_name", "patient_dob", "contact_json", "discharge_json", "clinical_json",
			"follow_up_json", "workflow_status", "current_step", "assigned_shelter_id",
			"assigned_transport_provider", "assigned_benefits_json", "updated_at", "completed_at"},
	)

	_, err = s.exec(ctx, query,
		c.CaseID, c.PatientName, c.PatientDOB, string(contact), string(discharge),
		string(clinical), string(followUp), string(c.WorkflowStatus), c.CurrentStep,
		nullString(c.AssignedShelterID), nullString(c.AssignedTransportProvider), string(benefits),
		createdAt.UTC().Format(time.RFC3339), updatedAt.UTC().Format(caseTimestampLayout), completedAt,
	)
	if err != nil {
		return &errs.Internal{Detail: "upsert case", Err: err}
	}
	return nil
}

// GetCase loads a Case by id.
func (s *Store) GetCase(ctx context.Context, caseID string) (*Case, error) {
	row := s.queryRow(ctx, `
		SELECT case_id, patient_name, patient_dob, contact_json, discharge_json, clinical_json,
		       follow_up_json, workflow_status, current_step, assigned_shelter_id,
		       assigned_transport_provider, assigned_benefits_json, created_at, updated_at, completed_at
		FROM cases WHERE case_id = ?`, caseID)

	c := &Case{}
	var dob, shelterID, transportProvider, completedAt sql.NullString
	var contact, discharge, clinical, followUp, benefits string
	var createdAt, updatedAt string

	err := row.Scan(&c.CaseID, &c.PatientName, &dob, &contact, &discharge, &clinical, &followUp,
		&c.WorkflowStatus, &c.CurrentStep, &shelterID, &transportProvider, &benefits,
		&createdAt, &updatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, &errs.NotFound{Kind: "case", Key: caseID}
	}
	if err != nil {
		return nil, &errs.Internal{Detail: "scan case", Err: err}
	}

	c.PatientDOB = dob.String
	c.AssignedShelterID = shelterID.String
	c.AssignedTransportProvider = transportProvider.String
	if err := json.Unmarshal([]byte(contact), &c.Contact); err != nil {
		return nil, &errs.Internal{Detail: "unmarshal contact", Err: err}
	}
	if err := json.Unmarshal([]byte(discharge), &c.Discharge); err != nil {
		return nil, &errs.Internal{Detail: "unmarshal discharge", Err: err}
	}
	if err := json.Unmarshal([]byte(clinical), &c.Clinical); err != nil {
		return nil, &errs.Internal{Detail: "unmarshal clinical", Err: err}
	}
	if err := json.Unmarshal([]byte(followUp), &c.FollowUp); err != nil {
		return nil, &errs.Internal{Detail: "unmarshal follow_up", Err: err}
	}
	if benefits != "" {
		_ = json.Unmarshal([]byte(benefits), &c.AssignedBenefits)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if completedAt.Valid && completedAt.String != "" {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		c.CompletedAt = &t
	}
	return c, nil
}

// ListCases returns a summary of every case, most recently updated first.
func (s *Store) ListCases(ctx context.Context) ([]*Case, error) {
	rows, err := s.query(ctx, `SELECT case_id FROM cases ORDER BY updated_at DESC`)
	if err != nil {
		return nil, &errs.Internal{Detail: "list cases", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &errs.Internal{Detail: "scan case id", Err: err}
		}
		ids = append(ids, id)
	}

	cases := make([]*Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCase(ctx, id)
		if err != nil {
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// --- TimelineEvent ------------------------------------------------------

// AppendEvent inserts the next densely-sequenced TimelineEvent for a case
// and bumps the Case's updated_at in the same transaction, so readers
// never observe an event referencing a Case that hasn't advanced.
func (s *Store) AppendEvent(ctx context.Context, ev *TimelineEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.Internal{Detail: "begin append event tx", Err: err}
	}
	defer tx.Rollback()

	var nextSeq int
	row := tx.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(MAX(seq)+1, 0) FROM timeline_events WHERE case_id = ?`), ev.CaseID)
	if err := row.Scan(&nextSeq); err != nil {
		return &errs.Internal{Detail: "compute next seq", Err: err}
	}
	ev.Seq = nextSeq

	details, err := json.Marshal(ev.Details)
	if err != nil {
		return &errs.Internal{Detail: "marshal event details", Err: err}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO timeline_events (case_id, seq, step, agent, status, description, details_json, transcription, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.CaseID, ev.Seq, ev.Step, ev.Agent, string(ev.Status), ev.Description,
		string(details), nullString(ev.Transcription), ev.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return &errs.Internal{Detail: "insert timeline event", Err: err}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE cases SET updated_at = ? WHERE case_id = ?`),
		ev.Timestamp.UTC().Format(caseTimestampLayout), ev.CaseID)
	if err != nil {
		return &errs.Internal{Detail: "bump case updated_at", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &errs.Internal{Detail: "commit append event tx", Err: err}
	}
	return nil
}

// ListEvents returns a case's timeline in strict seq order.
func (s *Store) ListEvents(ctx context.Context, caseID string) ([]*TimelineEvent, error) {
	rows, err := s.query(ctx, `
		SELECT case_id, seq, step, agent, status, description, details_json, transcription, timestamp
		FROM timeline_events WHERE case_id = ? ORDER BY seq ASC`, caseID)
	if err != nil {
		return nil, &errs.Internal{Detail: "list events", Err: err}
	}
	defer rows.Close()

	var events []*TimelineEvent
	for rows.Next() {
		ev := &TimelineEvent{}
		var details, timestamp string
		var transcription sql.NullString
		if err := rows.Scan(&ev.CaseID, &ev.Seq, &ev.Step, &ev.Agent, &ev.Status, &ev.Description,
			&details, &transcription, &timestamp); err != nil {
			return nil, &errs.Internal{Detail: "scan event", Err: err}
		}
		if details != "" {
			_ = json.Unmarshal([]byte(details), &ev.Details)
		}
		ev.Transcription = transcription.String
		ev.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		events = append(events, ev)
	}
	return events, nil
}

// --- ShelterListing ------------------------------------------------------

// ReplaceShelters atomically replaces every shelter row within a
// transaction: readers never observe a half-written scrape batch.
func (s *Store) ReplaceShelters(ctx context.Context, rows []ShelterListing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.Internal{Detail: "begin replace shelters tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shelters`); err != nil {
		return &errs.Internal{Detail: "clear shelters", Err: err}
	}
	for _, r := range rows {
		services, _ := json.Marshal(r.Services)
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO shelters (name, address, phone, capacity, available_beds, accessibility,
				services_json, hours, eligibility, website, latitude, longitude, source, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			r.Name, r.Address, r.Phone, r.Capacity, r.AvailableBeds, boolInt(r.Accessibility),
			string(services), r.Hours, r.Eligibility, r.Website, r.Latitude, r.Longitude,
			r.Source, r.LastUpdated.UTC().Format(time.RFC3339))
		if err != nil {
			return &errs.Internal{Detail: "insert shelter " + r.Name, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.Internal{Detail: "commit replace shelters tx", Err: err}
	}
	return nil
}

// ListShelters returns shelters with available_beds >= minBeds, optionally
// filtered to accessible-only.
func (s *Store) ListShelters(ctx context.Context, minBeds int, accessibleOnly bool) ([]ShelterListing, error) {
	query := `SELECT name, address, phone, capacity, available_beds, accessibility, services_json,
		hours, eligibility, website, latitude, longitude, source, last_updated
		FROM shelters WHERE available_beds >= ?`
	args := []interface{}{minBeds}
	if accessibleOnly {
		query += ` AND accessibility = ?`
		args = append(args, boolInt(true))
	}
	query += ` ORDER BY available_beds DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, &errs.Internal{Detail: "list shelters", Err: err}
	}
	defer rows.Close()

	var out []ShelterListing
	for rows.Next() {
		var r ShelterListing
		var services, lastUpdated string
		var accessibility int
		if err := rows.Scan(&r.Name, &r.Address, &r.Phone, &r.Capacity, &r.AvailableBeds,
			&accessibility, &services, &r.Hours, &r.Eligibility, &r.Website, &r.Latitude, &r.Longitude,
			&r.Source, &lastUpdated); err != nil {
			return nil, &errs.Internal{Detail: "scan shelter", Err: err}
		}
		r.Accessibility = accessibility != 0
		_ = json.Unmarshal([]byte(services), &r.Services)
		r.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		out = append(out, r)
	}
	return out, nil
}

// UpdateShelterAvailability updates one shelter's available_beds, used by
// POST /shelters/{name}/availability. The new value is clamped to
// [0, capacity] so the row invariant survives any caller.
func (s *Store) UpdateShelterAvailability(ctx context.Context, name string, availableBeds int) error {
	res, err := s.exec(ctx, `UPDATE shelters SET available_beds = CASE
			WHEN ? < 0 THEN 0
			WHEN ? > capacity THEN capacity
			ELSE ? END,
		last_updated = ? WHERE name = ?`,
		availableBeds, availableBeds, availableBeds, time.Now().UTC().Format(time.RFC3339), name)
	if err != nil {
		return &errs.Internal{Detail: "update shelter availability", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errs.NotFound{Kind: "shelter", Key: name}
	}
	return nil
}

// --- TransportListing ----------------------------------------------------

// ReplaceTransport atomically replaces every transport-provider row.
func (s *Store) ReplaceTransport(ctx context.Context, rows []TransportListing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.Internal{Detail: "begin replace transport tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transport_providers`); err != nil {
		return &errs.Internal{Detail: "clear transport providers", Err: err}
	}
	for _, r := range rows {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO transport_providers (provider, service_name, phone, vehicle_type, accessibility,
				service_area, hours, cost, source, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			r.Provider, r.ServiceName, r.Phone, r.VehicleType, boolInt(r.Accessibility),
			r.ServiceArea, r.Hours, r.Cost, r.Source, r.LastUpdated.UTC().Format(time.RFC3339))
		if err != nil {
			return &errs.Internal{Detail: "insert transport provider " + r.Provider, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.Internal{Detail: "commit replace transport tx", Err: err}
	}
	return nil
}

// ListTransport returns transport providers, optionally filtered to
// vehicle types containing "wheelchair".
func (s *Store) ListTransport(ctx context.Context, accessibleOnly bool) ([]TransportListing, error) {
	query := `SELECT provider, service_name, phone, vehicle_type, accessibility, service_area,
		hours, cost, source, last_updated FROM transport_providers`
	var args []interface{}
	if accessibleOnly {
		query += ` WHERE vehicle_type LIKE ?`
		args = append(args, "%wheelchair%")
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, &errs.Internal{Detail: "list transport", Err: err}
	}
	defer rows.Close()

	var out []TransportListing
	for rows.Next() {
		var r TransportListing
		var accessibility int
		var lastUpdated string
		if err := rows.Scan(&r.Provider, &r.ServiceName, &r.Phone, &r.VehicleType, &accessibility,
			&r.ServiceArea, &r.Hours, &r.Cost, &r.Source, &lastUpdated); err != nil {
			return nil, &errs.Internal{Detail: "scan transport", Err: err}
		}
		r.Accessibility = accessibility != 0
		r.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		out = append(out, r)
	}
	return out, nil
}

// --- BenefitProgram --------------------------------------------------------

// ReplaceBenefits atomically replaces every benefit-program row.
func (s *Store) ReplaceBenefits(ctx context.Context, rows []BenefitProgram) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.Internal{Detail: "begin replace benefits tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM benefit_programs`); err != nil {
		return &errs.Internal{Detail: "clear benefit programs", Err: err}
	}
	for _, r := range rows {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO benefit_programs (program_name, agency, description, eligibility_criteria,
				monthly_value, application_url, phone, source, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			r.ProgramName, r.Agency, r.Description, r.EligibilityCriteria, r.MonthlyValue,
			r.ApplicationURL, r.Phone, r.Source, r.LastUpdated.UTC().Format(time.RFC3339))
		if err != nil {
			return &errs.Internal{Detail: "insert benefit program " + r.ProgramName, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.Internal{Detail: "commit replace benefits tx", Err: err}
	}
	return nil
}

// ListBenefits returns every cached benefit program.
func (s *Store) ListBenefits(ctx context.Context) ([]BenefitProgram, error) {
	rows, err := s.query(ctx, `SELECT program_name, agency, description, eligibility_criteria,
		monthly_value, application_url, phone, source, last_updated FROM benefit_programs`)
	if err != nil {
		return nil, &errs.Internal{Detail: "list benefits", Err: err}
	}
	defer rows.Close()

	var out []BenefitProgram
	for rows.Next() {
		var r BenefitProgram
		var lastUpdated string
		if err := rows.Scan(&r.ProgramName, &r.Agency, &r.Description, &r.EligibilityCriteria,
			&r.MonthlyValue, &r.ApplicationURL, &r.Phone, &r.Source, &lastUpdated); err != nil {
			return nil, &errs.Internal{Detail: "scan benefit program", Err: err}
		}
		r.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		out = append(out, r)
	}
	return out, nil
}

// --- CommunityResource -----------------------------------------------------

// ReplaceResources atomically replaces every community-resource row.
func (s *Store) ReplaceResources(ctx context.Context, rows []CommunityResource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.Internal{Detail: "begin replace resources tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM community_resources`); err != nil {
		return &errs.Internal{Detail: "clear community resources", Err: err}
	}
	for _, r := range rows {
		services, _ := json.Marshal(r.Services)
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO community_resources (name, category, address, phone, services_json,
				dietary_accommodations, hours, source, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			r.Name, r.Category, r.Address, r.Phone, string(services),
			boolInt(r.DietaryAccommodations), r.Hours, r.Source, r.LastUpdated.UTC().Format(time.RFC3339))
		if err != nil {
			return &errs.Internal{Detail: "insert community resource " + r.Name, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.Internal{Detail: "commit replace resources tx", Err: err}
	}
	return nil
}

// ListResources returns community resources, optionally filtered by
// category (food, hygiene, clothing) and a dietary-accommodation requirement.
func (s *Store) ListResources(ctx context.Context, category string, requireDietary bool) ([]CommunityResource, error) {
	query := `SELECT name, category, address, phone, services_json, dietary_accommodations,
		hours, source, last_updated FROM community_resources WHERE 1=1`
	var args []interface{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if requireDietary {
		query += ` AND dietary_accommodations = ?`
		args = append(args, boolInt(true))
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, &errs.Internal{Detail: "list resources", Err: err}
	}
	defer rows.Close()

	var out []CommunityResource
	for rows.Next() {
		var r CommunityResource
		var services, lastUpdated string
		var dietary int
		if err := rows.Scan(&r.Name, &r.Category, &r.Address, &r.Phone, &services, &dietary,
			&r.Hours, &r.Source, &lastUpdated); err != nil {
			return nil, &errs.Internal{Detail: "scan community resource", Err: err}
		}
		r.DietaryAccommodations = dietary != 0
		_ = json.Unmarshal([]byte(services), &r.Services)
		r.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		out = append(out, r)
	}
	return out, nil
}

// --- CacheMetadata & ScrapeLog ---------------------------------------------

// UpsertCacheMetadata records a category's last refresh time and row count.
func (s *Store) UpsertCacheMetadata(ctx context.Context, m CacheMetadata) error {
	query := s.upsertQuery("cache_metadata",
		[]string{"category", "last_scraped_at", "items_count", "ttl_seconds"},
		"category",
		[]string{"last_scraped_at", "items_count", "ttl_seconds"})
	_, err := s.exec(ctx, query, m.Category, m.LastScrapedAt.UTC().Format(time.RFC3339), m.ItemsCount, m.TTLSeconds)
	if err != nil {
		return &errs.Internal{Detail: "upsert cache metadata", Err: err}
	}
	return nil
}

// GetCacheMetadata returns a category's staleness row, or errs.NotFound if
// the category has never been scraped.
func (s *Store) GetCacheMetadata(ctx context.Context, category string) (*CacheMetadata, error) {
	row := s.queryRow(ctx, `SELECT category, last_scraped_at, items_count, ttl_seconds
		FROM cache_metadata WHERE category = ?`, category)

	var m CacheMetadata
	var lastScraped string
	if err := row.Scan(&m.Category, &lastScraped, &m.ItemsCount, &m.TTLSeconds); err == sql.ErrNoRows {
		return nil, &errs.NotFound{Kind: "cache_metadata", Key: category}
	} else if err != nil {
		return nil, &errs.Internal{Detail: "scan cache metadata", Err: err}
	}
	m.LastScrapedAt, _ = time.Parse(time.RFC3339, lastScraped)
	return &m, nil
}

// AppendScrapeLog inserts one scrape-attempt record. The id is
// app-assigned (uuid) rather than database-generated, since the three
// backends spell identity columns differently.
func (s *Store) AppendScrapeLog(ctx context.Context, l ScrapeLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO scrape_logs (id, category, url, status, items_scraped,
		error_message, duration_seconds, scraped_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Category, l.URL, l.Status, l.ItemsScraped, nullString(l.ErrorMessage),
		l.DurationSeconds, l.ScrapedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return &errs.Internal{Detail: "append scrape log", Err: err}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- dialect helpers -----------------------------------------------------

// upsertQuery builds a dialect-aware INSERT ... ON CONFLICT/DUPLICATE KEY
// UPDATE statement. cols is the full insert column list, conflictCol the
// unique key, updateCols the subset to overwrite on conflict.
func (s *Store) upsertQuery(table string, cols []string, conflictCol string, updateCols []string) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}

	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if s.driver == "mysql" {
		sets := make([]string, len(updateCols))
		for i, c := range updateCols {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return base + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return base + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", conflictCol, strings.Join(sets, ", "))
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
