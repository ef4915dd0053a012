package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
)

// SaveEstimate appends a record to its subject's history.
func (s *Store) SaveEstimate(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID is empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO estimates (
			id, subject_id, truck_class, material_type,
			height, fill_ratio_l, fill_ratio_w, fill_ratio_z, packing_density,
			confidence_score, reasoning, capacity_reasoning,
			license_number, license_plate, estimated_max_capacity,
			ensemble_count, valid_count, volume_m3, tonnage,
			equipment_class, load_grade, snapshot_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	e := rec.Estimate
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SubjectID, string(e.TruckClass), string(e.MaterialType),
		e.Height, e.FillRatioL, e.FillRatioW, e.FillRatioZ, e.PackingDensity,
		e.ConfidenceScore, e.Reasoning, e.CapacityReasoning,
		e.LicenseNumber, e.LicensePlate, e.EstimatedMaxCapacity,
		e.EnsembleCount, e.ValidCount, e.VolumeM3, e.Tonnage,
		string(rec.EquipmentClass), rec.LoadGrade, rec.SnapshotPath, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save estimate: %w", err)
	}
	return nil
}

// ListBySubject returns a subject's history, newest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectColumns + `
		WHERE subject_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ReferencesByEquipmentClass returns at most one most-recent record per
// load grade within an equipment class. These serve as calibration
// references for subsequent inference requests on similar vehicles.
func (s *Store) ReferencesByEquipmentClass(ctx context.Context, class estimate.TruckClass) ([]*Record, error) {
	query := selectColumns + `
		WHERE equipment_class = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, string(class))
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	// Rows arrive newest first; keep the first hit per grade.
	seen := make(map[string]bool)
	var refs []*Record
	for _, rec := range records {
		if seen[rec.LoadGrade] {
			continue
		}
		seen[rec.LoadGrade] = true
		refs = append(refs, rec)
	}
	return refs, nil
}

// GetEstimate returns one record by ID.
func (s *Store) GetEstimate(ctx context.Context, id string) (*Record, error) {
	query := selectColumns + ` WHERE id = ?`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("estimate not found: %s", id)
	}
	return records[0], nil
}

// DeleteOlderThan removes records created before the cutoff and returns
// how many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM estimates WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old estimates: %w", err)
	}
	return res.RowsAffected()
}

// CountEstimates returns the total number of stored records.
func (s *Store) CountEstimates(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM estimates`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count estimates: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, subject_id, truck_class, material_type,
		height, fill_ratio_l, fill_ratio_w, fill_ratio_z, packing_density,
		confidence_score, reasoning, capacity_reasoning,
		license_number, license_plate, estimated_max_capacity,
		ensemble_count, valid_count, volume_m3, tonnage,
		equipment_class, load_grade, snapshot_path, created_at
	FROM estimates
`

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		var truckClass, materialType, equipmentClass string
		var reasoning, capacityReasoning, licenseNumber, licensePlate, snapshotPath sql.NullString
		err := rows.Scan(
			&rec.ID, &rec.SubjectID, &truckClass, &materialType,
			&rec.Estimate.Height, &rec.Estimate.FillRatioL, &rec.Estimate.FillRatioW,
			&rec.Estimate.FillRatioZ, &rec.Estimate.PackingDensity,
			&rec.Estimate.ConfidenceScore, &reasoning, &capacityReasoning,
			&licenseNumber, &licensePlate, &rec.Estimate.EstimatedMaxCapacity,
			&rec.Estimate.EnsembleCount, &rec.Estimate.ValidCount,
			&rec.Estimate.VolumeM3, &rec.Estimate.Tonnage,
			&equipmentClass, &rec.LoadGrade, &snapshotPath, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		rec.Estimate.IsTargetDetected = true
		rec.Estimate.TruckClass = estimate.TruckClass(truckClass)
		rec.Estimate.MaterialType = estimate.MaterialType(materialType)
		rec.Estimate.Reasoning = reasoning.String
		rec.Estimate.CapacityReasoning = capacityReasoning.String
		rec.Estimate.LicenseNumber = licenseNumber.String
		rec.Estimate.LicensePlate = licensePlate.String
		rec.EquipmentClass = estimate.TruckClass(equipmentClass)
		rec.SnapshotPath = snapshotPath.String
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estimates: %w", err)
	}
	return records, nil
}
