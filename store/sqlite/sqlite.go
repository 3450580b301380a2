/*
Package sqlite provides SQLite-backed persistence for datasets and runs.

PURPOSE:
  Persists holdings tables (with their entitlement portfolios), the
  scenario runs executed against them, and the comparison statistics
  each run produced. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  datasets:         Named holdings tables with their reference aggregate
  holdings:         One row per holding per dataset
  entitlement_blocks: Per-holding entitlement portfolio blocks
  runs:             Executed scenarios with applied rate and totals
  run_amounts:      Per-holding amount columns of a run
  comparison_rows:  Aggregated statistics of a run, one JSON doc per row

PRECISION:
  All decimal quantities are stored as TEXT and re-parsed on load;
  REAL columns would silently corrupt the arithmetic the engine
  guarantees. An undefined eligible area is a SQL NULL, never a zero.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/subsidy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ../../holding: the row type persisted here
  - ../../api: the HTTP layer driving this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/entitlement"
	"github.com/warp/subsidy-engine/holding"
	"github.com/warp/subsidy-engine/stats"
)

// Store persists datasets, runs and comparisons in SQLite.
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
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		reference_aggregate TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holdings (
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		weight TEXT NOT NULL,
		eligible_area TEXT,
		baseline_amount TEXT NOT NULL,
		region TEXT NOT NULL,
		size_class TEXT NOT NULL,
		type_class TEXT NOT NULL,
		area_band TEXT NOT NULL,
		female_operators INTEGER NOT NULL DEFAULT 0,
		young_operators INTEGER NOT NULL DEFAULT 0,
		disadvantaged_zone BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (dataset_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_holdings_dataset
		ON holdings(dataset_id);

	CREATE TABLE IF NOT EXISTS entitlement_blocks (
		dataset_id TEXT NOT NULL,
		holding_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		block_count INTEGER NOT NULL,
		unit_value TEXT NOT NULL,
		PRIMARY KEY (dataset_id, holding_id, seq),
		FOREIGN KEY (dataset_id, holding_id)
			REFERENCES holdings(dataset_id, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		scenario_json TEXT NOT NULL,
		rate TEXT NOT NULL,
		calibrated BOOLEAN NOT NULL DEFAULT FALSE,
		total_baseline TEXT NOT NULL,
		total_simulated TEXT NOT NULL,
		total_area TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_dataset
		ON runs(dataset_id);

	CREATE TABLE IF NOT EXISTS run_amounts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		holding_id TEXT NOT NULL,
		baseline_amount TEXT NOT NULL,
		simulated_amount TEXT NOT NULL,
		PRIMARY KEY (run_id, holding_id)
	);

	CREATE TABLE IF NOT EXISTS comparison_rows (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		row_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DATASET STORE
// =============================================================================

// DatasetRecord is a stored holdings table header.
type DatasetRecord struct {
	ID                 string
	Name               string
	ReferenceAggregate decimal.Decimal
	CreatedAt          time.Time
}

// HoldingRecord pairs a holding with its entitlement portfolio blocks.
type HoldingRecord struct {
	Holding holding.Holding
	Blocks  []entitlement.Block
}

// SaveDataset stores a dataset header with its holdings atomically.
func (s *Store) SaveDataset(ctx context.Context, d DatasetRecord, hs []HoldingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, reference_aggregate, created_at)
		 VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, d.ReferenceAggregate.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	for _, hr := range hs {
		h := hr.Holding
		_, err = tx.ExecContext(ctx,
			`INSERT INTO holdings
			 (dataset_id, id, weight, eligible_area, baseline_amount,
			  region, size_class, type_class, area_band,
			  female_operators, young_operators, disadvantaged_zone)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, string(h.ID), h.Weight.String(),
			nullArea(h.EligibleArea), h.BaselineAmount.String(),
			h.Region.Raw(), h.SizeClass.Raw(), h.TypeClass.Raw(), h.AreaBand.Raw(),
			h.FemaleOperators, h.YoungOperators, h.DisadvantagedZone,
		)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.ID, err)
		}

		for seq, b := range hr.Blocks {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entitlement_blocks
				 (dataset_id, holding_id, seq, block_count, unit_value)
				 VALUES (?, ?, ?, ?, ?)`,
				d.ID, string(h.ID), seq, b.Count, b.UnitValue.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert block for holding %s: %w", h.ID, err)
			}
		}
	}

	return tx.Commit()
}

// GetDataset retrieves a dataset header by ID. Returns nil when absent.
func (s *Store) GetDataset(ctx context.Context, id string) (*DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d DatasetRecord
	var refAggregate, createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, reference_aggregate, created_at FROM datasets WHERE id = ?",
		id,
	).Scan(&d.ID, &d.Name, &refAggregate, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.ReferenceAggregate, err = decimal.NewFromString(refAggregate)
	if err != nil {
		return nil, fmt.Errorf("corrupt reference aggregate for dataset %s: %w", id, err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &d, nil
}

// ListDatasets returns all dataset headers.
func (s *Store) ListDatasets(ctx context.Context) ([]DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, reference_aggregate, created_at FROM datasets ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datasets []DatasetRecord
	for rows.Next() {
		var d DatasetRecord
		var refAggregate, createdAt string
		if err := rows.Scan(&d.ID, &d.Name, &refAggregate, &createdAt); err != nil {
			return nil, err
		}
		d.ReferenceAggregate, err = decimal.NewFromString(refAggregate)
		if err != nil {
			return nil, fmt.Errorf("corrupt reference aggregate for dataset %s: %w", d.ID, err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// LoadHoldings returns a dataset's holdings with their portfolio blocks,
// in insertion order.
func (s *Store) LoadHoldings(ctx context.Context, datasetID string) ([]HoldingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, weight, eligible_area, baseline_amount,
		        region, size_class, type_class, area_band,
		        female_operators, young_operators, disadvantaged_zone
		 FROM holdings WHERE dataset_id = ? ORDER BY rowid`,
		datasetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HoldingRecord
	index := make(map[holding.HoldingID]int)
	for rows.Next() {
		var (
			h                holding.Holding
			id               string
			weight, baseline string
			area             sql.NullString
			region, size     string
			typeCls, band    string
		)
		if err := rows.Scan(&id, &weight, &area, &baseline,
			&region, &size, &typeCls, &band,
			&h.FemaleOperators, &h.YoungOperators, &h.DisadvantagedZone); err != nil {
			return nil, err
		}

		h.ID = holding.HoldingID(id)
		if h.Weight, err = decimal.NewFromString(weight); err != nil {
			return nil, fmt.Errorf("corrupt weight for holding %s: %w", id, err)
		}
		if h.BaselineAmount, err = decimal.NewFromString(baseline); err != nil {
			return nil, fmt.Errorf("corrupt baseline for holding %s: %w", id, err)
		}
		if area.Valid {
			d, err := decimal.NewFromString(area.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt area for holding %s: %w", id, err)
			}
			h.EligibleArea = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		h.Region = holding.NewCategory(region)
		h.SizeClass = holding.NewCategory(size)
		h.TypeClass = holding.NewCategory(typeCls)
		h.AreaBand = holding.NewCategory(band)

		index[h.ID] = len(records)
		records = append(records, HoldingRecord{Holding: h})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	blockRows, err := s.db.QueryContext(ctx,
		`SELECT holding_id, block_count, unit_value
		 FROM entitlement_blocks WHERE dataset_id = ?
		 ORDER BY holding_id, seq`,
		datasetID,
	)
	if err != nil {
		return nil, err
	}
	defer blockRows.Close()

	for blockRows.Next() {
		var holdingID, unitValue string
		var count int64
		if err := blockRows.Scan(&holdingID, &count, &unitValue); err != nil {
			return nil, err
		}
		i, ok := index[holding.HoldingID(holdingID)]
		if !ok {
			continue
		}
		uv, err := decimal.NewFromString(unitValue)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit value for holding %s: %w", holdingID, err)
		}
		records[i].Blocks = append(records[i].Blocks,
			entitlement.Block{Count: count, UnitValue: uv})
	}
	return records, blockRows.Err()
}

// UpdateBaselines overwrites the baseline column of a dataset.
func (s *Store) UpdateBaselines(ctx context.Context, datasetID string, hs []holding.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, h := range hs {
		_, err := tx.ExecContext(ctx,
			"UPDATE holdings SET baseline_amount = ? WHERE dataset_id = ? AND id = ?",
			h.BaselineAmount.String(), datasetID, string(h.ID),
		)
		if err != nil {
			return fmt.Errorf("failed to update baseline for holding %s: %w", h.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteDataset removes a dataset and everything hanging off it.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", id)
	return err
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunRecord is a stored scenario execution.
type RunRecord struct {
	ID             string
	DatasetID      string
	Name           string
	ScenarioJSON   string
	Rate           decimal.Decimal
	Calibrated     bool
	TotalBaseline  decimal.Decimal
	TotalSimulated decimal.Decimal
	TotalArea      decimal.Decimal
	CreatedAt      time.Time
}

// SaveRun stores a run with its per-holding amounts and comparison rows
// atomically.
func (s *Store) SaveRun(ctx context.Context, r RunRecord, hs []holding.Holding, comparison []stats.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
		 (id, dataset_id, name, scenario_json, rate, calibrated,
		  total_baseline, total_simulated, total_area, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DatasetID, r.Name, r.ScenarioJSON,
		r.Rate.String(), r.Calibrated,
		r.TotalBaseline.String(), r.TotalSimulated.String(), r.TotalArea.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, h := range hs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_amounts (run_id, holding_id, baseline_amount, simulated_amount)
			 VALUES (?, ?, ?, ?)`,
			r.ID, string(h.ID), h.BaselineAmount.String(), h.SimulatedAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run amount for holding %s: %w", h.ID, err)
		}
	}

	for seq, row := range comparison {
		doc, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal comparison row: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO comparison_rows (run_id, seq, row_json) VALUES (?, ?, ?)",
			r.ID, seq, string(doc),
		)
		if err != nil {
			return fmt.Errorf("failed to insert comparison row: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID. Returns nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, name, scenario_json, rate, calibrated,
		        total_baseline, total_simulated, total_area, created_at
		 FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns all runs for a dataset, newest first.
func (s *Store) ListRuns(ctx context.Context, datasetID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, name, scenario_json, rate, calibrated,
		        total_baseline, total_simulated, total_area, created_at
		 FROM runs WHERE dataset_id = ? ORDER BY created_at DESC`,
		datasetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// LoadComparison returns a run's comparison rows in their stored order.
func (s *Store) LoadComparison(ctx context.Context, runID string) ([]stats.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT row_json FROM comparison_rows WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.Row
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r stats.Row
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("corrupt comparison row for run %s: %w", runID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its amounts and comparison rows.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"comparison_rows", "run_amounts", "runs",
		"entitlement_blocks", "holdings", "datasets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var r RunRecord
	var rate, totalBaseline, totalSimulated, totalArea, createdAt string

	err := row.Scan(&r.ID, &r.DatasetID, &r.Name, &r.ScenarioJSON,
		&rate, &r.Calibrated, &totalBaseline, &totalSimulated, &totalArea, &createdAt)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&r.Rate, rate},
		{&r.TotalBaseline, totalBaseline},
		{&r.TotalSimulated, totalSimulated},
		{&r.TotalArea, totalArea},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("corrupt decimal in run %s: %w", r.ID, err)
		}
		*f.dst = d
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

func nullArea(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
