// Package postgres persists fit runs for audit and reporting. It is an
// optional collaborator behind ports.FitRunRepository; the fitting pipeline
// never depends on it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gocure/domain/core"
	"gocure/domain/cure"
	"gocure/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS fit_runs (
	fit_id              TEXT PRIMARY KEY,
	survival_formula    TEXT NOT NULL,
	cure_formula        TEXT NOT NULL,
	n                   INTEGER NOT NULL,
	seed                BIGINT NOT NULL,
	bootstrap_requested INTEGER NOT NULL,
	bootstrap_failed    INTEGER NOT NULL,
	tolerance           DOUBLE PRECISION NOT NULL,
	confidence_level    DOUBLE PRECISION NOT NULL,
	runtime_ms          BIGINT NOT NULL,
	fingerprint         TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fit_coefficients (
	fit_id   TEXT NOT NULL REFERENCES fit_runs(fit_id) ON DELETE CASCADE,
	submodel TEXT NOT NULL,
	ord      INTEGER NOT NULL,
	term     TEXT NOT NULL,
	estimate DOUBLE PRECISION NOT NULL,
	std_err  DOUBLE PRECISION,
	z        DOUBLE PRECISION,
	p        DOUBLE PRECISION,
	ci_lower DOUBLE PRECISION,
	ci_upper DOUBLE PRECISION,
	PRIMARY KEY (fit_id, submodel, term)
);`

const (
	submodelSurvival = "survival"
	submodelCure     = "cure"
)

// fitRepository implements ports.FitRunRepository on Postgres.
type fitRepository struct {
	db *sqlx.DB
}

// NewFitRepository creates a fit-run repository.
func NewFitRepository(db *sqlx.DB) ports.FitRunRepository {
	return &fitRepository{db: db}
}

// EnsureSchema creates the repository tables when absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create fit schema: %w", err)
	}
	return nil
}

// Save stores the model's manifest and both coefficient tables in one
// transaction.
func (r *fitRepository) Save(ctx context.Context, model *cure.Model) error {
	m := model.Manifest()
	survival, cureLogit := model.Tables()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	survivalFormula, cureFormula := model.Formulas()
	_, err = tx.ExecContext(ctx, `INSERT INTO fit_runs (
		fit_id, survival_formula, cure_formula, n, seed, bootstrap_requested,
		bootstrap_failed, tolerance, confidence_level, runtime_ms, fingerprint, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.FitID, survivalFormula, cureFormula, m.N, m.Seed, m.BootstrapRequested,
		m.BootstrapFailed, m.Tolerance, m.ConfidenceLevel, m.RuntimeMs,
		m.Fingerprint, m.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fit run: %w", err)
	}

	if err := insertTable(ctx, tx, m.FitID, submodelSurvival, survival); err != nil {
		return err
	}
	if err := insertTable(ctx, tx, m.FitID, submodelCure, cureLogit); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTable(ctx context.Context, tx *sqlx.Tx, fitID core.FitID, submodel string, table cure.Table) error {
	for ord, row := range table.Rows {
		_, err := tx.ExecContext(ctx, `INSERT INTO fit_coefficients (
			fit_id, submodel, ord, term, estimate, std_err, z, p, ci_lower, ci_upper
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			fitID, submodel, ord, row.Term, row.Estimate,
			nullable(row.StdErr), nullable(row.Z), nullable(row.P),
			nullable(row.CILower), nullable(row.CIUpper),
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s coefficient %q: %w", submodel, row.Term, err)
		}
	}
	return nil
}

// GetManifest retrieves the stored manifest for a fit run.
func (r *fitRepository) GetManifest(ctx context.Context, fitID core.FitID) (*cure.Manifest, error) {
	query := `SELECT fit_id, survival_formula, cure_formula, n, seed,
		bootstrap_requested, bootstrap_failed, tolerance, confidence_level,
		runtime_ms, fingerprint, created_at
	FROM fit_runs WHERE fit_id = $1`

	m, err := scanManifest(r.db.QueryRowxContext(ctx, query, fitID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("fit run not found: %s", fitID)
		}
		return nil, fmt.Errorf("failed to get fit run: %w", err)
	}
	return m, nil
}

// GetTables retrieves the stored coefficient tables for a fit run.
func (r *fitRepository) GetTables(ctx context.Context, fitID core.FitID) (survival, cureLogit cure.Table, err error) {
	query := `SELECT submodel, term, estimate, std_err, z, p, ci_lower, ci_upper
	FROM fit_coefficients WHERE fit_id = $1 ORDER BY submodel, ord`

	rows, err := r.db.QueryContext(ctx, query, fitID)
	if err != nil {
		return cure.Table{}, cure.Table{}, fmt.Errorf("failed to get coefficients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var submodel string
		var row cure.TableRow
		var stdErr, z, p, ciLower, ciUpper sql.NullFloat64
		if err := rows.Scan(&submodel, &row.Term, &row.Estimate, &stdErr, &z, &p, &ciLower, &ciUpper); err != nil {
			return cure.Table{}, cure.Table{}, fmt.Errorf("failed to scan coefficient: %w", err)
		}
		row.StdErr = fromNullable(stdErr)
		row.Z = fromNullable(z)
		row.P = fromNullable(p)
		row.CILower = fromNullable(ciLower)
		row.CIUpper = fromNullable(ciUpper)

		switch submodel {
		case submodelSurvival:
			survival.Rows = append(survival.Rows, row)
		case submodelCure:
			cureLogit.Rows = append(cureLogit.Rows, row)
		}
	}
	return survival, cureLogit, rows.Err()
}

// ListRecent returns the most recent fit manifests, newest first.
func (r *fitRepository) ListRecent(ctx context.Context, limit int) ([]*cure.Manifest, error) {
	query := `SELECT fit_id, survival_formula, cure_formula, n, seed,
		bootstrap_requested, bootstrap_failed, tolerance, confidence_level,
		runtime_ms, fingerprint, created_at
	FROM fit_runs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fit runs: %w", err)
	}
	defer rows.Close()

	var out []*cure.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fit run: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanManifest(row rowScanner) (*cure.Manifest, error) {
	var m cure.Manifest
	var createdAt sql.NullTime
	err := row.Scan(&m.FitID, &m.SurvivalFormula, &m.CureFormula, &m.N, &m.Seed,
		&m.BootstrapRequested, &m.BootstrapFailed, &m.Tolerance, &m.ConfidenceLevel,
		&m.RuntimeMs, &m.Fingerprint, &createdAt)
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		m.CreatedAt = core.NewTimestamp(createdAt.Time)
	}
	return &m, nil
}

// nullable maps NaN (explicitly undefined statistics) to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
