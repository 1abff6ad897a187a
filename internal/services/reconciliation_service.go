package services

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/audit"
	"github.com/cccs/finance-portal/internal/metrics"
	"github.com/cccs/finance-portal/internal/models"
)

const reconcileTimeout = 2 * time.Minute

// ReconciliationService checks that every stored balance still equals the
// initial balance minus the account's payments.
type ReconciliationService struct {
	db      *sql.DB
	audit   *audit.Logger
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewReconciliationService(db *sql.DB, auditLogger *audit.Logger, collector *metrics.Collector, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		db:      db,
		audit:   auditLogger,
		metrics: collector,
		logger:  logger.Named("reconciliation"),
	}
}

// Reconcile returns every account whose balance has drifted, ordered by id.
func (s *ReconciliationService) Reconcile(ctx context.Context) ([]models.BalanceDrift, error) {
	drifts, err := s.findDrift(ctx)
	s.metrics.RecordReconciliation(len(drifts), err)
	if err != nil {
		s.logger.Error("reconciliation failed", zap.Error(err))
		return nil, err
	}

	for _, d := range drifts {
		s.logger.Warn("balance drift detected",
			zap.Int64("account_id", d.AccountID),
			zap.String("stored", d.Stored.StringFixed(2)),
			zap.String("expected", d.Expected.StringFixed(2)),
			zap.String("drift", d.Drift.StringFixed(2)))
		s.audit.LogOperation(audit.EventBalanceDrift, 0, d.AccountID, map[string]string{
			"stored":   d.Stored.StringFixed(2),
			"expected": d.Expected.StringFixed(2),
		})
	}
	s.logger.Info("reconciliation complete", zap.Int("drifting_accounts", len(drifts)))
	return drifts, nil
}

// Run is the scheduled entry point.
func (s *ReconciliationService) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	// Reconcile logs and records its own outcome
	_, _ = s.Reconcile(ctx)
}

func (s *ReconciliationService) findDrift(ctx context.Context) ([]models.BalanceDrift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.balance, a.initial_balance - COALESCE(SUM(p.amount_paid), 0) AS expected
		FROM accounts a
		LEFT JOIN payments p ON p.account_id = a.id
		GROUP BY a.id, a.balance, a.initial_balance
		HAVING a.balance <> a.initial_balance - COALESCE(SUM(p.amount_paid), 0)
		ORDER BY a.id`)
	if err != nil {
		return nil, NewStorageError("Failed to reconcile balances", err)
	}
	defer rows.Close()

	drifts := make([]models.BalanceDrift, 0)
	for rows.Next() {
		var d models.BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Stored, &d.Expected); err != nil {
			return nil, NewStorageError("Failed to reconcile balances", err)
		}
		d.Drift = d.Stored.Sub(d.Expected)
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("Failed to reconcile balances", err)
	}
	return drifts, nil
}
