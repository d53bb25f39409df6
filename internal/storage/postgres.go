package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore persists run configs and run reports as JSONB documents keyed
// by plan name. Saving a report upserts, so the store holds the last-run view
// of each plan instead of append-only history.
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func InitStore(dbConnStr string) (*PostgresStore, error) {
	return NewPostgresStore(dbConnStr)
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveRunConfig upserts the configuration for a plan.
func (s *PostgresStore) SaveRunConfig(cfg models.RunConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO run_configs (plan_name, config, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (plan_name) DO UPDATE SET config = $2, updated_at = CURRENT_TIMESTAMP`,
		cfg.PlanName, doc)
	if err != nil {
		return fmt.Errorf("save run config '%s': %w", cfg.PlanName, err)
	}
	return nil
}

// GetRunConfig loads the configuration for a plan.
func (s *PostgresStore) GetRunConfig(planName string) (models.RunConfig, error) {
	var doc []byte
	err := s.db.Get(&doc, "SELECT config FROM run_configs WHERE plan_name = $1", planName)
	if err == sql.ErrNoRows {
		return models.RunConfig{}, storage.ErrNotFound
	}
	if err != nil {
		return models.RunConfig{}, fmt.Errorf("get run config '%s': %w", planName, err)
	}
	var cfg models.RunConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return models.RunConfig{}, fmt.Errorf("unmarshal run config '%s': %w", planName, err)
	}
	return cfg, nil
}

// SaveRunReport upserts the last-run report for a plan.
func (s *PostgresStore) SaveRunReport(rep models.RunReport) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO run_reports (plan_name, run_id, status, report, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (plan_name) DO UPDATE SET run_id = $2, status = $3, report = $4, updated_at = CURRENT_TIMESTAMP`,
		rep.PlanName, rep.RunID, rep.Status, doc)
	if err != nil {
		return fmt.Errorf("save run report '%s': %w", rep.PlanName, err)
	}
	return nil
}

// GetRunReport loads the last-run report for a plan.
func (s *PostgresStore) GetRunReport(planName string) (models.RunReport, error) {
	var doc []byte
	err := s.db.Get(&doc, "SELECT report FROM run_reports WHERE plan_name = $1", planName)
	if err == sql.ErrNoRows {
		return models.RunReport{}, storage.ErrNotFound
	}
	if err != nil {
		return models.RunReport{}, fmt.Errorf("get run report '%s': %w", planName, err)
	}
	var rep models.RunReport
	if err := json.Unmarshal(doc, &rep); err != nil {
		return models.RunReport{}, fmt.Errorf("unmarshal run report '%s': %w", planName, err)
	}
	return rep, nil
}

// ListRunReports returns the last-run report of every plan, most recent first.
func (s *PostgresStore) ListRunReports() ([]models.RunReport, error) {
	var docs [][]byte
	err := s.db.Select(&docs, "SELECT report FROM run_reports ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list run reports: %w", err)
	}
	reports := make([]models.RunReport, 0, len(docs))
	for _, doc := range docs {
		var rep models.RunReport
		if err := json.Unmarshal(doc, &rep); err != nil {
			return nil, fmt.Errorf("unmarshal run report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
