// Package store persists aggregated estimates in SQLite. Each subject
// (a vehicle, identified by plate or operator-assigned ID) owns an
// append-only history of estimates; records are never updated in place.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
)

// Record is one persisted aggregated estimate with its classification
// labels and snapshot reference.
type Record struct {
	ID             string
	SubjectID      string
	Estimate       estimate.AggregatedEstimate
	EquipmentClass estimate.TruckClass
	LoadGrade      string
	SnapshotPath   string
	CreatedAt      time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the estimate database.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles concurrent writes poorly; serialize through one
	// connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS estimates (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		truck_class TEXT NOT NULL,
		material_type TEXT NOT NULL,
		height REAL NOT NULL,
		fill_ratio_l REAL NOT NULL,
		fill_ratio_w REAL NOT NULL,
		fill_ratio_z REAL NOT NULL,
		packing_density REAL NOT NULL,
		confidence_score REAL NOT NULL,
		reasoning TEXT,
		capacity_reasoning TEXT,
		license_number TEXT,
		license_plate TEXT,
		estimated_max_capacity REAL,
		ensemble_count INTEGER NOT NULL,
		valid_count INTEGER NOT NULL,
		volume_m3 REAL NOT NULL,
		tonnage REAL NOT NULL,
		equipment_class TEXT NOT NULL,
		load_grade TEXT NOT NULL,
		snapshot_path TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_estimates_subject ON estimates(subject_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_estimates_equipment ON estimates(equipment_class, load_grade, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
