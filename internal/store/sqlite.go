package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hollisb/airgrid/internal/models"
	"github.com/hollisb/airgrid/internal/smoother"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (sensor_id, measured_at, latitude, longitude, value, qc_flags)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.SensorID, r.MeasuredAt, r.Latitude, r.Longitude, r.Value, r.QCFlags)
	return err
}

// InsertReadings loads a batch in a single transaction. Duplicate rows are
// intentionally allowed; the smoother makes no dedup promise either.
func (s *Store) InsertReadings(readings []models.Reading) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO readings (sensor_id, measured_at, latitude, longitude, value, qc_flags)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.Exec(r.SensorID, r.MeasuredAt, r.Latitude, r.Longitude, r.Value, r.QCFlags); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert reading: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetReadings(start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT id, sensor_id, measured_at, latitude, longitude, value, qc_flags, created_at
		FROM readings
		WHERE measured_at >= ? AND measured_at <= ?
		ORDER BY measured_at ASC, id ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func (s *Store) GetAllReadings() ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT id, sensor_id, measured_at, latitude, longitude, value, qc_flags, created_at
		FROM readings
		ORDER BY measured_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var sensorID, qcFlags sql.NullString
		if err := rows.Scan(&r.ID, &sensorID, &r.MeasuredAt, &r.Latitude, &r.Longitude, &r.Value, &qcFlags, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.SensorID = sensorID.String
		r.QCFlags = qcFlags.String
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// CreateRun persists a run header and its smoothed values in one transaction,
// returning the new run ID.
func (s *Store) CreateRun(spec smoother.GridSpec, result *smoother.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO smoothing_runs (bandwidth, x_min, x_max, x_step, y_min, y_max, y_step, steps, missing_cells, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.Bandwidth, spec.XMin, spec.XMax, spec.XStep, spec.YMin, spec.YMax, spec.YStep,
		len(result.Steps), result.Missing, time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO smoothed_values (run_id, step_index, measured_at, grid_id, latitude, longitude, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, sv := range result.Values {
		if _, err := stmt.Exec(runID, sv.StepIndex, sv.MeasuredAt, sv.GridID, sv.Latitude, sv.Longitude, sv.Value); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert smoothed value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *Store) GetRun(id int64) (*models.SmoothingRun, error) {
	row := s.db.QueryRow(`
		SELECT id, bandwidth, x_min, x_max, x_step, y_min, y_max, y_step, steps, missing_cells, created_at
		FROM smoothing_runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

func (s *Store) GetLatestRun() (*models.SmoothingRun, error) {
	row := s.db.QueryRow(`
		SELECT id, bandwidth, x_min, x_max, x_step, y_min, y_max, y_step, steps, missing_cells, created_at
		FROM smoothing_runs
		ORDER BY id DESC
		LIMIT 1
	`)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*models.SmoothingRun, error) {
	var run models.SmoothingRun
	err := row.Scan(&run.ID, &run.Bandwidth, &run.XMin, &run.XMax, &run.XStep,
		&run.YMin, &run.YMax, &run.YStep, &run.Steps, &run.MissingCells, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) GetSmoothedValues(runID int64) ([]models.SmoothedValue, error) {
	rows, err := s.db.Query(`
		SELECT run_id, step_index, measured_at, grid_id, latitude, longitude, value
		FROM smoothed_values
		WHERE run_id = ?
		ORDER BY step_index ASC, grid_id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []models.SmoothedValue
	for rows.Next() {
		var sv models.SmoothedValue
		if err := rows.Scan(&sv.RunID, &sv.StepIndex, &sv.MeasuredAt, &sv.GridID, &sv.Latitude, &sv.Longitude, &sv.Value); err != nil {
			return nil, err
		}
		values = append(values, sv)
	}
	return values, rows.Err()
}

// InsertSweep records every candidate's cross-validation outcome from one
// sweep, all stamped with the same time so a sweep can be read back as a unit.
func (s *Store) InsertSweep(sweptAt time.Time, sweep []smoother.CVResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO bandwidth_sweeps (swept_at, bandwidth, cv_error, excluded_splits, skipped_steps)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range sweep {
		cvError := sql.NullFloat64{Float64: r.Error, Valid: r.Defined}
		if _, err := stmt.Exec(sweptAt, r.Bandwidth, cvError, r.ExcludedSplits, r.SkippedSteps); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert sweep point: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetLatestSweep() ([]models.SweepPoint, error) {
	rows, err := s.db.Query(`
		SELECT id, swept_at, bandwidth, cv_error, excluded_splits, skipped_steps
		FROM bandwidth_sweeps
		WHERE swept_at = (SELECT MAX(swept_at) FROM bandwidth_sweeps)
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.SweepPoint
	for rows.Next() {
		var p models.SweepPoint
		if err := rows.Scan(&p.ID, &p.SweptAt, &p.Bandwidth, &p.CVError, &p.ExcludedSplits, &p.SkippedSteps); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
