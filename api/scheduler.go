/*
scheduler.go - Automated payroll deduction scheduler

PURPOSE:
  Periodically finds disbursed and active loans whose next payment date
  has passed and records the scheduled deduction (EMI for loans, the
  per-cycle amount for advances) on behalf of payroll.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Detects loans where the next payment date is in the past
  - Idempotency keys derived from the payroll cycle ("auto-2026-08")
    make reruns harmless: a cycle already deducted is skipped
  - Final cycles deduct only the remaining balance, never more

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: pay-emi / pay-advance endpoints (manual recording)
  - lending/repayment.go: RecordPayment
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// payrollActor is the system identity the scheduler records payments as.
var payrollActor = lending.Actor{ID: "payroll-scheduler", Name: "Payroll Scheduler", Role: lending.RoleSubAdmin}

// PayrollScheduler records scheduled deductions for loans that are due.
type PayrollScheduler struct {
	Service       *lending.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(svc *lending.Service) *PayrollScheduler {
	return &PayrollScheduler{
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PayrollScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess(time.Now())

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess(time.Now())
		case <-ps.stop:
			return
		}
	}
}

func (ps *PayrollScheduler) checkAndProcess(now time.Time) {
	ctx := context.Background()

	due, err := ps.Service.List(ctx, lending.Filter{
		Statuses: []lending.Status{lending.StatusDisbursed, lending.StatusActive},
	})
	if err != nil {
		log.Printf("[Scheduler] Error listing loans: %v", err)
		return
	}

	processedCount := 0
	skippedCount := 0

	for _, loan := range due {
		next := loan.Repayment.NextPaymentDate
		if next == nil || next.After(now) {
			continue
		}

		if err := ps.processDeduction(ctx, loan, now); err != nil {
			if errors.Is(err, lending.ErrDuplicatePayment) {
				skippedCount++
				continue
			}
			log.Printf("[Scheduler] Error deducting for loan %s: %v", loan.ID, err)
		} else {
			processedCount++
		}
	}

	if processedCount > 0 || skippedCount > 0 {
		log.Printf("[Scheduler] Completed: %d processed, %d skipped (already deducted)", processedCount, skippedCount)
	}
}

// processDeduction records one scheduled installment against the loan.
func (ps *PayrollScheduler) processDeduction(ctx context.Context, loan *lending.Loan, now time.Time) error {
	amount := loan.Repayment.RemainingBalance
	switch {
	case loan.RequestType == lending.TypeLoan && loan.LoanConfig != nil:
		amount = decimalMin(loan.LoanConfig.EMIAmount, amount)
	case loan.RequestType == lending.TypeSalaryAdvance && loan.AdvanceConfig != nil:
		amount = decimalMin(loan.AdvanceConfig.DeductionPerCycle, amount)
	}
	if !amount.IsPositive() {
		return nil
	}

	// Key off the due cycle, not the run date, so an overdue loan catches
	// up one cycle per run instead of colliding on a single key.
	cycle := loan.Repayment.NextPaymentDate.Format("2006-01")
	req := lending.PaymentRequest{
		Amount:         amount,
		PaymentDate:    now,
		PayrollCycle:   cycle,
		IdempotencyKey: "auto-" + string(loan.ID) + "-" + cycle,
		Remarks:        "Scheduled payroll deduction",
	}

	var err error
	if loan.RequestType == lending.TypeLoan {
		_, err = ps.Service.PayEMI(ctx, loan.ID, req, payrollActor)
	} else {
		_, err = ps.Service.PayAdvance(ctx, loan.ID, req, payrollActor)
	}
	if err == nil {
		log.Printf("[Scheduler] Deducted %s from loan %s for cycle %s", amount, loan.ID, cycle)
	}
	return err
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PayrollScheduler) RunNow(now time.Time) {
	ps.checkAndProcess(now)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PayrollScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ps.CheckInterval)
}
