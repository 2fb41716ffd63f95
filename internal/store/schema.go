package store

// The DDL below is written to the portable subset all three supported
// backends accept, so one statement list serves every dialect: key
// columns are VARCHAR(255) rather than TEXT (MySQL refuses a TEXT
// column in a key without a prefix length), and there is no
// auto-increment column anywhere (the spelling differs per backend) —
// scrape_logs.id is an app-assigned uuid instead. Migrate executes the
// statements one at a time.
var schemaStatements = []string{`
CREATE TABLE IF NOT EXISTS cases (
	case_id VARCHAR(255) PRIMARY KEY,
	patient_name TEXT NOT NULL,
	patient_dob TEXT,
	contact_json TEXT NOT NULL,
	discharge_json TEXT NOT NULL,
	clinical_json TEXT NOT NULL,
	follow_up_json TEXT NOT NULL,
	workflow_status VARCHAR(32) NOT NULL,
	current_step VARCHAR(64) NOT NULL,
	assigned_shelter_id TEXT,
	assigned_transport_provider TEXT,
	assigned_benefits_json TEXT,
	created_at VARCHAR(64) NOT NULL,
	updated_at VARCHAR(64) NOT NULL,
	completed_at VARCHAR(64)
)`, `
CREATE TABLE IF NOT EXISTS timeline_events (
	case_id VARCHAR(255) NOT NULL,
	seq INTEGER NOT NULL,
	step VARCHAR(64) NOT NULL,
	agent VARCHAR(64) NOT NULL,
	status VARCHAR(32) NOT NULL,
	description TEXT NOT NULL,
	details_json TEXT,
	transcription TEXT,
	timestamp VARCHAR(64) NOT NULL,
	PRIMARY KEY (case_id, seq)
)`, `
CREATE TABLE IF NOT EXISTS shelters (
	name VARCHAR(255) PRIMARY KEY,
	address TEXT NOT NULL,
	phone TEXT,
	capacity INTEGER NOT NULL,
	available_beds INTEGER NOT NULL,
	accessibility INTEGER NOT NULL,
	services_json TEXT,
	hours TEXT,
	eligibility TEXT,
	website TEXT,
	latitude REAL,
	longitude REAL,
	source TEXT,
	last_updated VARCHAR(64) NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS transport_providers (
	provider VARCHAR(255) NOT NULL,
	service_name VARCHAR(255) NOT NULL,
	phone TEXT,
	vehicle_type TEXT,
	accessibility INTEGER NOT NULL,
	service_area TEXT,
	hours TEXT,
	cost TEXT,
	source TEXT,
	last_updated VARCHAR(64) NOT NULL,
	PRIMARY KEY (provider, service_name)
)`, `
CREATE TABLE IF NOT EXISTS benefit_programs (
	program_name VARCHAR(255) PRIMARY KEY,
	agency TEXT,
	description TEXT,
	eligibility_criteria TEXT,
	monthly_value TEXT,
	application_url TEXT,
	phone TEXT,
	source TEXT,
	last_updated VARCHAR(64) NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS community_resources (
	name VARCHAR(255) PRIMARY KEY,
	category VARCHAR(64) NOT NULL,
	address TEXT,
	phone TEXT,
	services_json TEXT,
	dietary_accommodations INTEGER NOT NULL DEFAULT 0,
	hours TEXT,
	source TEXT,
	last_updated VARCHAR(64) NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS cache_metadata (
	category VARCHAR(64) PRIMARY KEY,
	last_scraped_at VARCHAR(64) NOT NULL,
	items_count INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS scrape_logs (
	id VARCHAR(36) PRIMARY KEY,
	category VARCHAR(64) NOT NULL,
	url TEXT NOT NULL,
	status VARCHAR(32) NOT NULL,
	items_scraped INTEGER NOT NULL,
	error_message TEXT,
	duration_seconds REAL NOT NULL,
	scraped_at VARCHAR(64) NOT NULL
)`}
