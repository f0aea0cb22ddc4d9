package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantfold/driftlab/internal/report"
)

// execer is the slice of pgxpool.Pool the repository needs; pgxmock provides
// a compatible implementation for tests.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ReportRepository persists finished run reports. Persistence is optional;
// the pipeline itself holds no state between runs.
type ReportRepository struct {
	db execer
}

func NewReportRepository(db execer) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveReport writes the run row, one row per evaluation, and one row per
// failed series.
func (r *ReportRepository) SaveReport(ctx context.Context, rep *report.Report) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO analysis_runs (id, alpha, started_at, finished_at) VALUES ($1, $2, $3, $4)`,
		rep.RunID, rep.Alpha, rep.StartedAt, rep.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}

	for _, sr := range rep.Series {
		if sr.Failed() {
			_, err := r.db.Exec(ctx,
				`INSERT INTO analysis_failures (run_id, symbol, class, reason) VALUES ($1, $2, $3, $4)`,
				rep.RunID, sr.Symbol, sr.FailureClass, sr.FailureReason)
			if err != nil {
				return fmt.Errorf("insert failure for %s: %w", sr.Symbol, err)
			}
			continue
		}
		for _, e := range sr.Evaluations {
			_, err := r.db.Exec(ctx,
				`INSERT INTO evaluations (run_id, symbol, variant, family, model_order, horizon, rmse)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				rep.RunID, sr.Symbol, e.Variant, e.Family, e.Order, e.Horizon, e.RMSE)
			if err != nil {
				return fmt.Errorf("insert evaluation %s/%s/%s: %w", sr.Symbol, e.Variant, e.Family, err)
			}
		}
	}
	return nil
}
