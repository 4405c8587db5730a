package service

import (
	"github.com/akylbek/payment-system/refund-orchestrator/internal/editor"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/ledger"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/workflow"
)

// Session is one caller's working copy of a refund request. Edits are
// applied to a copy and committed here only after the ledger service
// accepts them. After a workflow transition the session is stale and has to
// be loaded again.
type Session struct {
	Request models.RefundRequest
	// Payments are the payments relevant to the request type, refund-out
	// payments included and deductions excluded.
	Payments   []models.Payment
	Deductions []models.DeductionPayment
	Details    []models.RefundDetail
	// Original is the refund detail list as it stood when the current stage
	// was entered, used to detect amount edits made at that stage.
	Original []models.RefundDetail
	FeeTypes []models.FeeType

	stale bool
}

// Draft reports whether the request has not been stored yet.
func (s *Session) Draft() bool {
	return s.Request.ID == 0 || s.Request.Status == models.StatusNew
}

func (s *Session) Stale() bool { return s.stale }

func (s *Session) Ledger() ledger.Ledger {
	return ledger.New(s.Payments, s.Details, s.Deductions)
}

func (s *Session) state() editor.State {
	return editor.State{Payments: s.Payments, Details: s.Details, Deductions: s.Deductions}
}

func (s *Session) apply(st editor.State) {
	s.Payments = st.Payments
	s.Details = st.Details
	s.Deductions = st.Deductions
	s.FeeTypes = s.Ledger().FeeTypeList()
}

func (s *Session) snapshot() workflow.Snapshot {
	return workflow.Snapshot{
		Type:       s.Request.Type,
		Status:     s.Request.Status,
		Payments:   paidIn(s.Payments),
		Details:    s.Details,
		Deductions: s.Deductions,
		Original:   s.Original,
	}
}

// relevantFeeTypes limits deposit returns to their own deposit; a nil result
// keeps every fee type.
func relevantFeeTypes(t models.RefundType) map[models.FeeType]bool {
	switch t {
	case models.RefundTypeDamageDepositReturn:
		return map[models.FeeType]bool{models.FeeTypeDamageDeposit: true}
	case models.RefundTypeViolationDepositReturn:
		return map[models.FeeType]bool{models.FeeTypeViolationDeposit: true}
	}
	return nil
}

// splitPayments keeps the payments relevant to t and separates the
// deductions attached to them.
func splitPayments(t models.RefundType, all []models.Payment) ([]models.Payment, []models.DeductionPayment) {
	keep := relevantFeeTypes(t)
	var payments []models.Payment
	ids := make(map[int64]bool)
	for _, p := range all {
		if p.IsDeduction() || (keep != nil && !keep[p.FeeType]) {
			continue
		}
		if p.Direction.IsPaidIn() {
			ids[p.ID] = true
		}
		payments = append(payments, p)
	}

	var deductions []models.DeductionPayment
	for _, p := range all {
		if !p.IsDeduction() {
			continue
		}
		if !ids[*p.ParentPaymentID] {
			continue
		}
		deductions = append(deductions, models.DeductionPayment{
			ID:              p.ID,
			Key:             models.DeductionKey(p.ID),
			Seq:             len(deductions) + 1,
			ParentPaymentID: *p.ParentPaymentID,
			FeeType:         p.FeeType,
			Fee:             p.Fee,
			PayMode:         p.PayMode,
			Remark:          p.Remark,
		})
	}
	return payments, deductions
}

// reindex points every deduction at the position of its parent's refund line.
func (s *Session) reindex() {
	for i := range s.Deductions {
		_, idx := findDetail(s.Details, s.Deductions[i].ParentPaymentID)
		s.Deductions[i].RefundDetailIndex = idx
	}
}

func paidIn(payments []models.Payment) []models.Payment {
	out := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Direction.IsPaidIn() {
			out = append(out, p)
		}
	}
	return out
}

func findPayment(payments []models.Payment, id int64) (models.Payment, int) {
	for i, p := range payments {
		if p.ID == id {
			return p, i
		}
	}
	return models.Payment{}, -1
}

func findDetail(details []models.RefundDetail, paymentID int64) (models.RefundDetail, int) {
	for i, d := range details {
		if d.PaymentID == paymentID {
			return d, i
		}
	}
	return models.RefundDetail{}, -1
}
