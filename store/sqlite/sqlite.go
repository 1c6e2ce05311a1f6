/*
Package sqlite provides a SQLite-backed implementation of lending.Store.

PURPOSE:
  Persists one row per loan aggregate plus two insert-only sub-ledgers
  (loan_transactions, loan_changes) keyed by (loan_id, seq). In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  The sub-ledger tables see INSERT statements only:
  - No UPDATE statements on loan_transactions or loan_changes
  - No DELETE statements on either table
  Save computes the suffix of newly appended entries from the stored
  row counts (safe because the version check has already fenced out
  concurrent writers) and never touches existing rows.

OPTIMISTIC CONCURRENCY:
  The loans table carries a version column. Save updates
  WHERE id = ? AND version = ?; zero rows affected means another writer
  committed first and the whole transaction rolls back with
  lending.ErrConflictRetry so the caller can re-read and retry.

IDEMPOTENCY:
  A partial unique index on (loan_id, idempotency_key) backs the
  aggregate-level duplicate-payment check, so a resubmitted payment
  cannot append twice even across processes.

KEY TABLES:
  loans:             One row per application, never deleted
  loan_transactions: Immutable ledger of money movements
  loan_changes:      Immutable field-level audit trail

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/lending.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := lending.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - lending/store.go: Interface definition
  - lending/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

// Store implements lending.Store using SQLite.
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
	-- Loan aggregates (one row per application, never deleted)
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		emp_no TEXT NOT NULL,
		request_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		duration INTEGER NOT NULL,
		reason TEXT,
		remarks TEXT,
		status TEXT NOT NULL,
		applied_by TEXT,
		applied_at TEXT NOT NULL,

		-- amortization contract (loans only, frozen at approval)
		interest_rate TEXT,
		emi_amount TEXT,
		total_amount TEXT,
		emi_start_date TEXT,
		emi_end_date TEXT,

		-- deduction plan (salary advances only)
		deduction_cycles INTEGER,
		deduction_per_cycle TEXT,

		-- derived repayment state
		total_paid TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		installments_paid INTEGER NOT NULL,
		total_installments INTEGER NOT NULL,
		last_payment_date TEXT,
		next_payment_date TEXT,

		-- disbursement record
		disbursed_by TEXT,
		disbursed_at TEXT,
		disbursement_method TEXT,
		transaction_reference TEXT,
		disbursement_remarks TEXT,

		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_loans_status
		ON loans(status);
	CREATE INDEX IF NOT EXISTS idx_loans_emp_no
		ON loans(emp_no);
	CREATE INDEX IF NOT EXISTS idx_loans_type_status
		ON loans(request_type, status);
	CREATE INDEX IF NOT EXISTS idx_loans_applied_at
		ON loans(applied_at DESC);

	-- Money-movement sub-ledger (append-only)
	CREATE TABLE IF NOT EXISTS loan_transactions (
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tx_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		payroll_cycle TEXT,
		processed_by TEXT,
		remarks TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (loan_id, seq)
	);

	-- A resubmitted payment with the same client key must not append twice
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loan_tx_idempotency
		ON loan_transactions(loan_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL AND idempotency_key != '';

	-- Field-level change audit sub-ledger (append-only)
	CREATE TABLE IF NOT EXISTS loan_changes (
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		field TEXT NOT NULL,
		original_value TEXT,
		new_value TEXT,
		modified_by TEXT,
		modified_by_role TEXT,
		reason TEXT,
		modified_at TEXT NOT NULL,
		PRIMARY KEY (loan_id, seq)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Create persists a brand-new aggregate at version 1.
func (s *Store) Create(ctx context.Context, loan *lending.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	loan.Version = 1
	if err := insertLoanRow(ctx, sqlTx, loan); err != nil {
		return err
	}
	if err := insertTransactions(ctx, sqlTx, loan, 0); err != nil {
		return err
	}
	if err := insertChanges(ctx, sqlTx, loan, 0); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Get loads one aggregate with its full sub-ledgers.
func (s *Store) Get(ctx context.Context, id lending.LoanID) (*lending.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLoan(ctx, id)
}

// Save persists a mutated aggregate under the optimistic version check
// and appends the new sub-ledger entries in the same SQL transaction.
func (s *Store) Save(ctx context.Context, loan *lending.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE loans SET
			emp_no = ?, amount = ?, duration = ?, reason = ?, remarks = ?, status = ?,
			interest_rate = ?, emi_amount = ?, total_amount = ?, emi_start_date = ?, emi_end_date = ?,
			deduction_cycles = ?, deduction_per_cycle = ?,
			total_paid = ?, remaining_balance = ?, installments_paid = ?, total_installments = ?,
			last_payment_date = ?, next_payment_date = ?,
			disbursed_by = ?, disbursed_at = ?, disbursement_method = ?,
			transaction_reference = ?, disbursement_remarks = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		append(loanRowArgs(loan), string(loan.ID), loan.Version)...,
	)
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := sqlTx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM loans WHERE id = ?", loan.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return lending.ErrLoanNotFound
		}
		return lending.ErrConflictRetry
	}

	var txCount, changeCount int
	if err := sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loan_transactions WHERE loan_id = ?", loan.ID,
	).Scan(&txCount); err != nil {
		return err
	}
	if err := sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loan_changes WHERE loan_id = ?", loan.ID,
	).Scan(&changeCount); err != nil {
		return err
	}
	if len(loan.Transactions) < txCount || len(loan.ChangeHistory) < changeCount {
		// Sub-ledgers only ever grow; a shorter list means the caller
		// rewrote history.
		return lending.ErrConflictRetry
	}

	if err := insertTransactions(ctx, sqlTx, loan, txCount); err != nil {
		return err
	}
	if err := insertChanges(ctx, sqlTx, loan, changeCount); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return err
	}
	loan.Version++
	return nil
}

// List returns aggregates matching the filter, most recent first.
func (s *Store) List(ctx context.Context, filter lending.Filter) ([]*lending.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id FROM loans"
	var conds []string
	var args []any

	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
		conds = append(conds, "status IN ("+placeholders+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.EmpNo != "" {
		conds = append(conds, "emp_no = ?")
		args = append(args, filter.EmpNo)
	}
	if filter.RequestType != "" {
		conds = append(conds, "request_type = ?")
		args = append(args, string(filter.RequestType))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY applied_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var ids []lending.LoanID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, lending.LoanID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	loans := make([]*lending.Loan, 0, len(ids))
	for _, id := range ids {
		loan, err := s.getLoan(ctx, id)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLoanRow(ctx context.Context, db execer, loan *lending.Loan) error {
	args := append([]any{
		string(loan.ID), string(loan.RequestType), loan.AppliedBy,
		loan.AppliedAt.UTC().Format(time.RFC3339),
	}, loanRowArgs(loan)...)

	_, err := db.ExecContext(ctx, `
		INSERT INTO loans
		(id, request_type, applied_by, applied_at,
		 emp_no, amount, duration, reason, remarks, status,
		 interest_rate, emi_amount, total_amount, emi_start_date, emi_end_date,
		 deduction_cycles, deduction_per_cycle,
		 total_paid, remaining_balance, installments_paid, total_installments,
		 last_payment_date, next_payment_date,
		 disbursed_by, disbursed_at, disbursement_method, transaction_reference, disbursement_remarks,
		 version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// loanRowArgs returns the mutable columns in the order shared by the
// INSERT and UPDATE statements.
func loanRowArgs(loan *lending.Loan) []any {
	var (
		interestRate, emiAmount, totalAmount string
		emiStart, emiEnd                     string
		deductionCycles                      sql.NullInt64
		deductionPerCycle                    string
	)
	if cfg := loan.LoanConfig; cfg != nil {
		interestRate = cfg.InterestRate.String()
		emiAmount = cfg.EMIAmount.String()
		totalAmount = cfg.TotalAmount.String()
		emiStart = formatTime(cfg.StartDate)
		emiEnd = formatTime(cfg.EndDate)
	}
	if cfg := loan.AdvanceConfig; cfg != nil {
		deductionCycles = sql.NullInt64{Int64: int64(cfg.DeductionCycles), Valid: true}
		deductionPerCycle = cfg.DeductionPerCycle.String()
	}

	var disbursedBy, disbursedAt, method, txRef, disburseRemarks string
	if d := loan.Disbursement; d != nil {
		disbursedBy = d.DisbursedBy
		disbursedAt = formatTime(d.DisbursedAt)
		method = d.Method
		txRef = d.TransactionReference
		disburseRemarks = d.Remarks
	}

	return []any{
		loan.EmpNo, loan.Amount.String(), loan.Duration, loan.Reason, loan.Remarks, string(loan.Status),
		interestRate, emiAmount, totalAmount, emiStart, emiEnd,
		deductionCycles, deductionPerCycle,
		loan.Repayment.TotalPaid.String(), loan.Repayment.RemainingBalance.String(),
		loan.Repayment.InstallmentsPaid, loan.Repayment.TotalInstallments,
		formatTimePtr(loan.Repayment.LastPaymentDate), formatTimePtr(loan.Repayment.NextPaymentDate),
		disbursedBy, disbursedAt, method, txRef, disburseRemarks,
	}
}

func (s *Store) getLoan(ctx context.Context, id lending.LoanID) (*lending.Loan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, emp_no, request_type, amount, duration, reason, remarks, status,
		       applied_by, applied_at,
		       interest_rate, emi_amount, total_amount, emi_start_date, emi_end_date,
		       deduction_cycles, deduction_per_cycle,
		       total_paid, remaining_balance, installments_paid, total_installments,
		       last_payment_date, next_payment_date,
		       disbursed_by, disbursed_at, disbursement_method, transaction_reference, disbursement_remarks,
		       version
		FROM loans WHERE id = ?`, string(id))

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, lending.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	if loan.Transactions, err = s.loadTransactions(ctx, id); err != nil {
		return nil, err
	}
	if loan.ChangeHistory, err = s.loadChanges(ctx, id); err != nil {
		return nil, err
	}
	return loan, nil
}

func scanLoan(row *sql.Row) (*lending.Loan, error) {
	var (
		loan                                 lending.Loan
		id, requestType, amount, status      string
		reason, remarks, appliedBy           sql.NullString
		appliedAt                            string
		interestRate, emiAmount, totalAmount sql.NullString
		emiStart, emiEnd                     sql.NullString
		deductionCycles                      sql.NullInt64
		deductionPerCycle                    sql.NullString
		totalPaid, remainingBalance          string
		lastPayment, nextPayment             sql.NullString
		disbursedBy, disbursedAt, method     sql.NullString
		txRef, disburseRemarks               sql.NullString
	)

	err := row.Scan(
		&id, &loan.EmpNo, &requestType, &amount, &loan.Duration, &reason, &remarks, &status,
		&appliedBy, &appliedAt,
		&interestRate, &emiAmount, &totalAmount, &emiStart, &emiEnd,
		&deductionCycles, &deductionPerCycle,
		&totalPaid, &remainingBalance, &loan.Repayment.InstallmentsPaid, &loan.Repayment.TotalInstallments,
		&lastPayment, &nextPayment,
		&disbursedBy, &disbursedAt, &method, &txRef, &disburseRemarks,
		&loan.Version,
	)
	if err != nil {
		return nil, err
	}

	loan.ID = lending.LoanID(id)
	loan.RequestType = lending.RequestType(requestType)
	loan.Status = lending.Status(status)
	loan.Reason = reason.String
	loan.Remarks = remarks.String
	loan.AppliedBy = appliedBy.String
	loan.Amount = parseDecimal(amount)
	loan.AppliedAt = parseTime(appliedAt)
	loan.Repayment.TotalPaid = parseDecimal(totalPaid)
	loan.Repayment.RemainingBalance = parseDecimal(remainingBalance)
	loan.Repayment.LastPaymentDate = parseTimePtr(lastPayment.String)
	loan.Repayment.NextPaymentDate = parseTimePtr(nextPayment.String)

	if loan.RequestType == lending.TypeLoan && emiAmount.String != "" {
		loan.LoanConfig = &lending.LoanConfig{
			InterestRate: parseDecimal(interestRate.String),
			EMIAmount:    parseDecimal(emiAmount.String),
			TotalAmount:  parseDecimal(totalAmount.String),
			StartDate:    parseTime(emiStart.String),
			EndDate:      parseTime(emiEnd.String),
		}
	}
	if loan.RequestType == lending.TypeSalaryAdvance && deductionCycles.Valid {
		loan.AdvanceConfig = &lending.AdvanceConfig{
			DeductionCycles:   int(deductionCycles.Int64),
			DeductionPerCycle: parseDecimal(deductionPerCycle.String),
		}
	}
	if disbursedAt.String != "" {
		loan.Disbursement = &lending.Disbursement{
			DisbursedBy:          disbursedBy.String,
			DisbursedAt:          parseTime(disbursedAt.String),
			Method:               method.String,
			TransactionReference: txRef.String,
			Remarks:              disburseRemarks.String,
		}
	}

	return &loan, nil
}

// =============================================================================
// SUB-LEDGERS (insert-only)
// =============================================================================

func insertTransactions(ctx context.Context, db execer, loan *lending.Loan, from int) error {
	for i := from; i < len(loan.Transactions); i++ {
		tx := loan.Transactions[i]
		_, err := db.ExecContext(ctx, `
			INSERT INTO loan_transactions
			(loan_id, seq, tx_id, tx_type, amount, transaction_date,
			 payroll_cycle, processed_by, remarks, idempotency_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(loan.ID), i, tx.ID, string(tx.Type), tx.Amount.String(),
			tx.TransactionDate.UTC().Format(time.RFC3339),
			tx.PayrollCycle, tx.ProcessedBy, tx.Remarks, nullString(tx.IdempotencyKey),
			tx.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return lending.ErrDuplicatePayment
			}
			return fmt.Errorf("failed to append transaction: %w", err)
		}
	}
	return nil
}

func (s *Store) loadTransactions(ctx context.Context, id lending.LoanID) ([]lending.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, tx_type, amount, transaction_date,
		       payroll_cycle, processed_by, remarks, idempotency_key, created_at
		FROM loan_transactions WHERE loan_id = ? ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []lending.Transaction
	for rows.Next() {
		var (
			tx                           lending.Transaction
			txType, amount, txDate, cAt  string
			cycle, by, remarks, idempKey sql.NullString
		)
		if err := rows.Scan(&tx.ID, &txType, &amount, &txDate, &cycle, &by, &remarks, &idempKey, &cAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = lending.TransactionType(txType)
		tx.Amount = parseDecimal(amount)
		tx.TransactionDate = parseTime(txDate)
		tx.PayrollCycle = cycle.String
		tx.ProcessedBy = by.String
		tx.Remarks = remarks.String
		tx.IdempotencyKey = idempKey.String
		tx.CreatedAt = parseTime(cAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func insertChanges(ctx context.Context, db execer, loan *lending.Loan, from int) error {
	for i := from; i < len(loan.ChangeHistory); i++ {
		ch := loan.ChangeHistory[i]
		_, err := db.ExecContext(ctx, `
			INSERT INTO loan_changes
			(loan_id, seq, field, original_value, new_value,
			 modified_by, modified_by_role, reason, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(loan.ID), i, ch.Field, ch.OriginalValue, ch.NewValue,
			ch.ModifiedBy, string(ch.ModifiedByRole), ch.Reason,
			ch.ModifiedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to append change entry: %w", err)
		}
	}
	return nil
}

func (s *Store) loadChanges(ctx context.Context, id lending.LoanID) ([]lending.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, original_value, new_value, modified_by, modified_by_role, reason, modified_at
		FROM loan_changes WHERE loan_id = ? ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query change history: %w", err)
	}
	defer rows.Close()

	var changes []lending.ChangeEntry
	for rows.Next() {
		var (
			ch                          lending.ChangeEntry
			orig, newVal, by, role, rsn sql.NullString
			modifiedAt                  string
		)
		if err := rows.Scan(&ch.Field, &orig, &newVal, &by, &role, &rsn, &modifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}
		ch.OriginalValue = orig.String
		ch.NewValue = newVal.String
		ch.ModifiedBy = by.String
		ch.ModifiedByRole = lending.Role(role.String)
		ch.Reason = rsn.String
		ch.ModifiedAt = parseTime(modifiedAt)
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
