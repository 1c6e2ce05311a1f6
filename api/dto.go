/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Loan:
    LoanDTO, ApplyLoanRequest, UpdateLoanRequest

  Workflow:
    ActionRequest, CancelRequest

  Money movement:
    DisburseRequest, PaymentRequestDTO, TransactionDTO

  Settlement:
    SettlementQuoteDTO, SettlementPreviewResponse

MONEY:
  Amounts cross the wire as JSON strings ("120000") so clients never see
  float rounding. Decimal parsing happens in the handlers.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route definitions
*/
package api

import (
	"time"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

// =============================================================================
// SHARED TYPES
// =============================================================================

// ActorDTO identifies who is performing a request. Carried in request
// bodies until an authentication layer supplies it instead.
type ActorDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (a ActorDTO) toDomain() lending.Actor {
	return lending.Actor{
		ID:   a.ID,
		Name: a.Name,
		Role: lending.Role(a.Role),
	}
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ApplyLoanRequest is a new loan or salary advance application.
type ApplyLoanRequest struct {
	EmpNo       string   `json:"emp_no"`
	RequestType string   `json:"request_type"`
	Amount      string   `json:"amount"`
	Duration    int      `json:"duration"`
	Reason      string   `json:"reason"`
	Remarks     string   `json:"remarks,omitempty"`
	Actor       ActorDTO `json:"actor"`
}

// ActionRequest applies an approval-chain action to an application.
type ActionRequest struct {
	Action  string   `json:"action"` // approve, reject, forward
	Comment string   `json:"comment,omitempty"`
	Actor   ActorDTO `json:"actor"`
}

// CancelRequest withdraws an application before disbursement.
type CancelRequest struct {
	Comment string   `json:"comment,omitempty"`
	Actor   ActorDTO `json:"actor"`
}

// UpdateLoanRequest carries administrative field edits and, for
// super-admins, a direct status override. Nil fields are left untouched.
type UpdateLoanRequest struct {
	Amount             *string  `json:"amount,omitempty"`
	Duration           *int     `json:"duration,omitempty"`
	Reason             *string  `json:"reason,omitempty"`
	Remarks            *string  `json:"remarks,omitempty"`
	ChangeReason       string   `json:"change_reason,omitempty"`
	Status             *string  `json:"status,omitempty"`
	StatusChangeReason string   `json:"status_change_reason,omitempty"`
	Actor              ActorDTO `json:"actor"`
}

// DisburseRequest releases funds for an approved application.
type DisburseRequest struct {
	Method               string   `json:"method"` // bank_transfer, cash, cheque, other
	TransactionReference string   `json:"transaction_reference,omitempty"`
	Remarks              string   `json:"remarks,omitempty"`
	Actor                ActorDTO `json:"actor"`
}

// PaymentRequestDTO records an EMI payment, payroll deduction, or early
// settlement against an active loan.
type PaymentRequestDTO struct {
	Amount            string   `json:"amount,omitempty"`
	PaymentDate       string   `json:"payment_date,omitempty"` // YYYY-MM-DD
	Remarks           string   `json:"remarks,omitempty"`
	PayrollCycle      string   `json:"payroll_cycle,omitempty"` // e.g. "2026-08"
	IdempotencyKey    string   `json:"idempotency_key,omitempty"`
	IsEarlySettlement bool     `json:"is_early_settlement,omitempty"`
	Actor             ActorDTO `json:"actor"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LoanDTO is the full aggregate view returned to clients.
type LoanDTO struct {
	ID          string `json:"id"`
	EmpNo       string `json:"emp_no"`
	RequestType string `json:"request_type"`
	Amount      string `json:"amount"`
	Duration    int    `json:"duration"`
	Reason      string `json:"reason,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
	Status      string `json:"status"`
	AppliedBy   string `json:"applied_by,omitempty"`
	AppliedAt   string `json:"applied_at"`
	Version     int64  `json:"version"`

	LoanConfig    *LoanConfigDTO    `json:"loan_config,omitempty"`
	AdvanceConfig *AdvanceConfigDTO `json:"advance_config,omitempty"`
	Repayment     RepaymentDTO      `json:"repayment"`
	Disbursement  *DisbursementDTO  `json:"disbursement,omitempty"`

	ChangeHistory []ChangeEntryDTO `json:"change_history,omitempty"`
}

// LoanConfigDTO is the amortization contract frozen at approval.
type LoanConfigDTO struct {
	InterestRate string `json:"interest_rate"`
	EMIAmount    string `json:"emi_amount"`
	TotalAmount  string `json:"total_amount"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// AdvanceConfigDTO is the interest-free deduction plan for advances.
type AdvanceConfigDTO struct {
	DeductionCycles   int    `json:"deduction_cycles"`
	DeductionPerCycle string `json:"deduction_per_cycle"`
}

// RepaymentDTO is the derived repayment position.
type RepaymentDTO struct {
	TotalPaid         string  `json:"total_paid"`
	RemainingBalance  string  `json:"remaining_balance"`
	InstallmentsPaid  int     `json:"installments_paid"`
	TotalInstallments int     `json:"total_installments"`
	LastPaymentDate   *string `json:"last_payment_date,omitempty"`
	NextPaymentDate   *string `json:"next_payment_date,omitempty"`
}

// DisbursementDTO records the release of funds.
type DisbursementDTO struct {
	DisbursedBy          string `json:"disbursed_by"`
	DisbursedAt          string `json:"disbursed_at"`
	Method               string `json:"method"`
	TransactionReference string `json:"transaction_reference,omitempty"`
	Remarks              string `json:"remarks,omitempty"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	PayrollCycle    string `json:"payroll_cycle,omitempty"`
	ProcessedBy     string `json:"processed_by,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// TransactionsResponse wraps the ledger with summary figures.
type TransactionsResponse struct {
	LoanID           string           `json:"loan_id"`
	Status           string           `json:"status"`
	TotalPaid        string           `json:"total_paid"`
	RemainingBalance string           `json:"remaining_balance"`
	Transactions     []TransactionDTO `json:"transactions"`
}

// ChangeEntryDTO is one field-level audit record.
type ChangeEntryDTO struct {
	Field          string `json:"field"`
	OriginalValue  string `json:"original_value"`
	NewValue       string `json:"new_value"`
	ModifiedBy     string `json:"modified_by"`
	ModifiedByRole string `json:"modified_by_role"`
	Reason         string `json:"reason,omitempty"`
	ModifiedAt     string `json:"modified_at"`
}

// SettlementQuoteDTO is one early-settlement quote.
type SettlementQuoteDTO struct {
	RemainingPrincipal  string `json:"remaining_principal"`
	ActualMonthsUsed    int    `json:"actual_months_used"`
	SettlementInterest  string `json:"settlement_interest"`
	SettlementAmount    string `json:"settlement_amount"`
	InterestSavings     string `json:"interest_savings"`
	OriginalTotalAmount string `json:"original_total_amount"`
	OriginalDuration    int    `json:"original_duration"`
	RemainingMonths     int    `json:"remaining_months"`
}

// SettlementPreviewResponse quotes settling now versus after one more EMI.
type SettlementPreviewResponse struct {
	LoanID    string             `json:"loan_id"`
	AsOf      string             `json:"as_of"`
	Current   SettlementQuoteDTO `json:"current"`
	NextMonth SettlementQuoteDTO `json:"next_month"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func toLoanDTO(l *lending.Loan) LoanDTO {
	dto := LoanDTO{
		ID:          string(l.ID),
		EmpNo:       l.EmpNo,
		RequestType: string(l.RequestType),
		Amount:      l.Amount.String(),
		Duration:    l.Duration,
		Reason:      l.Reason,
		Remarks:     l.Remarks,
		Status:      string(l.Status),
		AppliedBy:   l.AppliedBy,
		AppliedAt:   l.AppliedAt.Format(time.RFC3339),
		Version:     l.Version,
		Repayment: RepaymentDTO{
			TotalPaid:         l.Repayment.TotalPaid.String(),
			RemainingBalance:  l.Repayment.RemainingBalance.String(),
			InstallmentsPaid:  l.Repayment.InstallmentsPaid,
			TotalInstallments: l.Repayment.TotalInstallments,
			LastPaymentDate:   formatDatePtr(l.Repayment.LastPaymentDate),
			NextPaymentDate:   formatDatePtr(l.Repayment.NextPaymentDate),
		},
	}

	if cfg := l.LoanConfig; cfg != nil {
		dto.LoanConfig = &LoanConfigDTO{
			InterestRate: cfg.InterestRate.String(),
			EMIAmount:    cfg.EMIAmount.String(),
			TotalAmount:  cfg.TotalAmount.String(),
			StartDate:    cfg.StartDate.Format("2006-01-02"),
			EndDate:      cfg.EndDate.Format("2006-01-02"),
		}
	}
	if cfg := l.AdvanceConfig; cfg != nil {
		dto.AdvanceConfig = &AdvanceConfigDTO{
			DeductionCycles:   cfg.DeductionCycles,
			DeductionPerCycle: cfg.DeductionPerCycle.String(),
		}
	}
	if d := l.Disbursement; d != nil {
		dto.Disbursement = &DisbursementDTO{
			DisbursedBy:          d.DisbursedBy,
			DisbursedAt:          d.DisbursedAt.Format(time.RFC3339),
			Method:               d.Method,
			TransactionReference: d.TransactionReference,
			Remarks:              d.Remarks,
		}
	}
	for _, ch := range l.ChangeHistory {
		dto.ChangeHistory = append(dto.ChangeHistory, ChangeEntryDTO{
			Field:          ch.Field,
			OriginalValue:  ch.OriginalValue,
			NewValue:       ch.NewValue,
			ModifiedBy:     ch.ModifiedBy,
			ModifiedByRole: string(ch.ModifiedByRole),
			Reason:         ch.Reason,
			ModifiedAt:     ch.ModifiedAt.Format(time.RFC3339),
		})
	}

	return dto
}

func toLoanDTOs(loans []*lending.Loan) []LoanDTO {
	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	return dtos
}

func toTransactionDTOs(txs []lending.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = TransactionDTO{
			ID:              tx.ID,
			Type:            string(tx.Type),
			Amount:          tx.Amount.String(),
			TransactionDate: tx.TransactionDate.Format(time.RFC3339),
			PayrollCycle:    tx.PayrollCycle,
			ProcessedBy:     tx.ProcessedBy,
			Remarks:         tx.Remarks,
			CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

func toSettlementQuoteDTO(q lending.SettlementQuote) SettlementQuoteDTO {
	return SettlementQuoteDTO{
		RemainingPrincipal:  q.RemainingPrincipal.String(),
		ActualMonthsUsed:    q.ActualMonthsUsed,
		SettlementInterest:  q.SettlementInterest.String(),
		SettlementAmount:    q.SettlementAmount.String(),
		InterestSavings:     q.InterestSavings.String(),
		OriginalTotalAmount: q.OriginalTotalAmount.String(),
		OriginalDuration:    q.OriginalDuration,
		RemainingMonths:     q.RemainingMonths,
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
