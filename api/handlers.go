/*
handlers.go - HTTP API handlers for the lending engine

PURPOSE:
  Exposes the loan and salary-advance lifecycle via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the
  lending service.

ENDPOINTS:
  Applications:
    POST   /api/loans                       Apply for a loan or advance
    GET    /api/loans                       List applications (filterable)
    GET    /api/loans/pending-approvals     Queue for an approver role
    GET    /api/loans/{id}                  Get one application
    PUT    /api/loans/{id}                  Edit fields / override status

  Workflow:
    PUT    /api/loans/{id}/action           Approve / reject / forward
    PUT    /api/loans/{id}/cancel           Withdraw before disbursement

  Money movement:
    PUT    /api/loans/{id}/disburse         Release funds
    POST   /api/loans/{id}/pay-emi          Record EMI or early settlement
    POST   /api/loans/{id}/pay-advance      Record payroll deduction
    GET    /api/loans/{id}/transactions     Ledger with summary
    GET    /api/loans/{id}/settlement-preview  Quote early settlement

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input (bad JSON, unparseable amounts)
  - 403: Actor role not permitted
  - 404: Loan not found
  - 409: Optimistic-lock conflict, duplicate payment
  - 422: Domain rule rejected the operation (bad transition, overpayment)
  - 500: Internal errors

SECURITY NOTE:
  Actors are declared in request bodies. There is no authentication
  layer yet; one belongs in front of this API in production.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sakethdamerla/li-hrms-sub005/lending"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *lending.Service
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *lending.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// APPLICATION HANDLERS
// =============================================================================

// ApplyLoan creates a new loan or salary advance application.
// POST /api/loans
func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	var req ApplyLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	loan, err := h.Service.Apply(r.Context(), lending.ApplyRequest{
		EmpNo:       req.EmpNo,
		RequestType: lending.RequestType(req.RequestType),
		Amount:      amount,
		Duration:    req.Duration,
		Reason:      req.Reason,
		Remarks:     req.Remarks,
	}, req.Actor.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to create application", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanDTO(loan))
}

// ListLoans returns applications matching the query filters.
// GET /api/loans?status=pending&emp_no=EMP001&type=loan
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := lending.Filter{
		EmpNo:       r.URL.Query().Get("emp_no"),
		RequestType: lending.RequestType(r.URL.Query().Get("type")),
	}
	if st := r.URL.Query().Get("status"); st != "" {
		filter.Statuses = []lending.Status{lending.Status(st)}
	}

	loans, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list applications", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTOs(loans))
}

// PendingApprovals returns the approval queue for the requesting role.
// GET /api/loans/pending-approvals?role=hod
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	role := lending.Role(r.URL.Query().Get("role"))

	loans, err := h.Service.PendingApprovals(r.Context(), role)
	if err != nil {
		writeDomainError(w, "Failed to list pending approvals", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTOs(loans))
}

// GetLoan returns a single application.
// GET /api/loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	loan, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get application", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// UpdateLoan applies administrative field edits and, for super-admins,
// an optional status override.
// PUT /api/loans/{id}
func (h *Handler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	var req UpdateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var edit lending.FieldEdit
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		edit.Amount = &amount
	}
	edit.Duration = req.Duration
	edit.Reason = req.Reason
	edit.Remarks = req.Remarks

	update := lending.UpdateRequest{
		Edit:               edit,
		ChangeReason:       req.ChangeReason,
		StatusChangeReason: req.StatusChangeReason,
	}
	if req.Status != nil {
		status := lending.Status(*req.Status)
		update.Status = &status
	}

	loan, err := h.Service.Update(r.Context(), id, update, req.Actor.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to update application", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// =============================================================================
// WORKFLOW HANDLERS
// =============================================================================

// ProcessAction advances an application through the approval chain.
// PUT  /api/loans/{id}/action
func (h *Handler) ProcessAction(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loan, err := h.Service.ProcessAction(r.Context(), id,
		lending.Action(req.Action), req.Actor.toDomain(), req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to process action", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// CancelLoan withdraws an application before disbursement.
// PUT  /api/loans/{id}/cancel
func (h *Handler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loan, err := h.Service.ProcessAction(r.Context(), id,
		lending.ActionCancel, req.Actor.toDomain(), req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to cancel application", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// =============================================================================
// MONEY MOVEMENT HANDLERS
// =============================================================================

// DisburseLoan releases funds for an approved application.
// PUT  /api/loans/{id}/disburse
func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	var req DisburseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loan, err := h.Service.Disburse(r.Context(), id, lending.DisbursementRequest{
		Method:               req.Method,
		TransactionReference: req.TransactionReference,
		Remarks:              req.Remarks,
	}, req.Actor.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to disburse", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// PayEMI records an EMI payment or early settlement on a loan.
// POST /api/loans/{id}/pay-emi
func (h *Handler) PayEMI(w http.ResponseWriter, r *http.Request) {
	h.recordPayment(w, r, h.Service.PayEMI)
}

// PayAdvance records a payroll deduction against a salary advance.
// POST /api/loans/{id}/pay-advance
func (h *Handler) PayAdvance(w http.ResponseWriter, r *http.Request) {
	h.recordPayment(w, r, h.Service.PayAdvance)
}

type paymentFunc func(ctx context.Context, id lending.LoanID, req lending.PaymentRequest, actor lending.Actor) (*lending.Loan, error)

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request, pay paymentFunc) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	payment := lending.PaymentRequest{
		Remarks:           req.Remarks,
		PayrollCycle:      req.PayrollCycle,
		IdempotencyKey:    req.IdempotencyKey,
		IsEarlySettlement: req.IsEarlySettlement,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		payment.Amount = amount
	}
	if req.PaymentDate != "" {
		date, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
			return
		}
		payment.PaymentDate = date
	}

	loan, err := pay(r.Context(), id, payment, req.Actor.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// GetTransactions returns the money-movement ledger with summary figures.
// GET /api/loans/{id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	loan, txs, err := h.Service.Transactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, TransactionsResponse{
		LoanID:           string(loan.ID),
		Status:           string(loan.Status),
		TotalPaid:        loan.Repayment.TotalPaid.String(),
		RemainingBalance: loan.Repayment.RemainingBalance.String(),
		Transactions:     toTransactionDTOs(txs),
	})
}

// SettlementPreview quotes an early settlement now and after one more EMI.
// GET /api/loans/{id}/settlement-preview?as_of=2026-08-30
func (h *Handler) SettlementPreview(w http.ResponseWriter, r *http.Request) {
	id := lending.LoanID(chi.URLParam(r, "id"))

	asOf := time.Now()
	if s := r.URL.Query().Get("as_of"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	preview, err := h.Service.GetSettlementPreview(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, "Failed to compute settlement preview", err)
		return
	}

	writeJSON(w, http.StatusOK, SettlementPreviewResponse{
		LoanID:    string(id),
		AsOf:      asOf.Format("2006-01-02"),
		Current:   toSettlementQuoteDTO(preview.Current),
		NextMonth: toSettlementQuoteDTO(preview.NextMonth),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case lending.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, lending.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, message, err)
	case lending.IsRetryable(err), errors.Is(err, lending.ErrDuplicatePayment):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, lending.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, message, err)
	case lending.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
