package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// ErrNotFound is returned when no row has been stored yet.
var ErrNotFound = errors.New("database: not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS planning_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			pay_cycle_days INTEGER NOT NULL,
			average_paycheck REAL NOT NULL,
			accounts_per_paycycle INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS saved_plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_json TEXT NOT NULL,
			pay_cycle_days INTEGER NOT NULL,
			average_paycheck REAL NOT NULL,
			accounts_per_paycycle INTEGER NOT NULL,
			total_bonus REAL NOT NULL,
			saved_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_at ON saved_plans(saved_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// SaveInputs stores the last-used planning inputs.
func (db *DB) SaveInputs(req models.PlanRequest) error {
	query := `INSERT INTO planning_settings (
		id, pay_cycle_days, average_paycheck, accounts_per_paycycle, updated_at
	) VALUES (1, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		pay_cycle_days = excluded.pay_cycle_days,
		average_paycheck = excluded.average_paycheck,
		accounts_per_paycycle = excluded.accounts_per_paycycle,
		updated_at = excluded.updated_at`

	_, err := db.conn.Exec(
		query,
		req.PayCycleDays,
		req.AveragePaycheck,
		req.AccountsPerPaycycle,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save planning inputs: %w", err)
	}

	return nil
}

// LoadInputs returns the stored planning inputs, or ErrNotFound.
func (db *DB) LoadInputs() (models.PlanRequest, error) {
	var req models.PlanRequest
	err := db.conn.QueryRow(`SELECT pay_cycle_days, average_paycheck, accounts_per_paycycle
		FROM planning_settings WHERE id = 1`).Scan(
		&req.PayCycleDays,
		&req.AveragePaycheck,
		&req.AccountsPerPaycycle,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlanRequest{}, ErrNotFound
	}
	if err != nil {
		return models.PlanRequest{}, fmt.Errorf("failed to load planning inputs: %w", err)
	}

	return req, nil
}

// SavePlan appends a saved plan. The newest row is the one returned by
// LoadSavedPlan; older rows are kept as history.
func (db *DB) SavePlan(saved models.SavedPlan) error {
	planJSON, err := json.Marshal(saved.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO saved_plans (
		plan_json, pay_cycle_days, average_paycheck, accounts_per_paycycle, total_bonus, saved_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		string(planJSON),
		saved.Inputs.PayCycleDays,
		saved.Inputs.AveragePaycheck,
		saved.Inputs.AccountsPerPaycycle,
		saved.Plan.TotalBonus,
		saved.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return nil
}

// LoadSavedPlan returns the most recently saved plan, or ErrNotFound.
func (db *DB) LoadSavedPlan() (models.SavedPlan, error) {
	var (
		saved    models.SavedPlan
		planJSON string
		savedAt  string
	)

	err := db.conn.QueryRow(`SELECT plan_json, pay_cycle_days, average_paycheck, accounts_per_paycycle, saved_at
		FROM saved_plans ORDER BY id DESC LIMIT 1`).Scan(
		&planJSON,
		&saved.Inputs.PayCycleDays,
		&saved.Inputs.AveragePaycheck,
		&saved.Inputs.AccountsPerPaycycle,
		&savedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedPlan{}, ErrNotFound
	}
	if err != nil {
		return models.SavedPlan{}, fmt.Errorf("failed to load saved plan: %w", err)
	}

	if err := json.Unmarshal([]byte(planJSON), &saved.Plan); err != nil {
		return models.SavedPlan{}, fmt.Errorf("failed to decode saved plan: %w", err)
	}

	saved.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return models.SavedPlan{}, fmt.Errorf("failed to parse saved_at: %w", err)
	}

	return saved, nil
}

// ClearSavedPlans removes every saved plan and reports how many went.
func (db *DB) ClearSavedPlans() (int, error) {
	res, err := db.conn.Exec(`DELETE FROM saved_plans`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear saved plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared plans: %w", err)
	}
	return int(n), nil
}
