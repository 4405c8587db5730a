// Package workflow is the refund approval state machine. Which review stages
// a request passes through depends on its type and is declared in one table.
package workflow

import (
	"fmt"
	"strings"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// Chains maps a refund type to its ordered review stages. FINISH follows the
// last stage.
type Chains map[models.RefundType][]models.RefundStatus

// DefaultChains is the stage table used in production.
var DefaultChains = Chains{
	models.RefundTypeOrderRentCancel: {
		models.StatusShopManagerExamining,
		models.StatusCeoExamining,
		models.StatusAccountantExamining,
		models.StatusCashierRefunding,
	},
	models.RefundTypeDamageDepositReturn: {
		models.StatusAccountantExamining,
		models.StatusCashierRefunding,
	},
	models.RefundTypeViolationDepositReturn: {
		models.StatusAccountantExamining,
		models.StatusCashierRefunding,
	},
}

// stageRoles names the role acting at each state.
var stageRoles = map[models.RefundStatus]models.Role{
	models.StatusNew:                  models.RoleDeliver,
	models.StatusRestarting:           models.RoleDeliver,
	models.StatusShopManagerExamining: models.RoleShopManager,
	models.StatusCeoExamining:         models.RoleCeo,
	models.StatusAccountantExamining:  models.RoleAccountant,
	models.StatusCashierRefunding:     models.RoleCashier,
}

// amountEditRoles must annotate every refund line whose fee changed since
// they picked up the request.
var amountEditRoles = map[models.Role]bool{
	models.RoleShopManager: true,
	models.RoleCeo:         true,
}

// financialReviewRoles may only approve once every payment cleared financial review.
var financialReviewRoles = map[models.Role]bool{
	models.RoleAccountant: true,
}

var examiningStages = map[models.RefundStatus]bool{
	models.StatusShopManagerExamining: true,
	models.StatusCeoExamining:         true,
	models.StatusAccountantExamining:  true,
}

var submitOps = map[models.RefundStatus]models.SubmitOp{
	models.StatusShopManagerExamining: models.OpShopManagerExamine,
	models.StatusCeoExamining:         models.OpCeoExamine,
	models.StatusAccountantExamining:  models.OpAccountantExamine,
	models.StatusCashierRefunding:     models.OpCashierRefund,
	models.StatusRestarting:           models.OpRestart,
}

// RoleFor returns the role acting at status.
func RoleFor(status models.RefundStatus) (models.Role, bool) {
	r, ok := stageRoles[status]
	return r, ok
}

// SubmitOpFor returns the ledger service operation that records a decision at status.
func SubmitOpFor(status models.RefundStatus) (models.SubmitOp, bool) {
	op, ok := submitOps[status]
	return op, ok
}

// Snapshot is everything a transition guard looks at.
type Snapshot struct {
	Type       models.RefundType
	Status     models.RefundStatus
	Payments   []models.Payment
	Details    []models.RefundDetail
	Deductions []models.DeductionPayment
	// Original is the refund detail list as it was when the current stage
	// was entered.
	Original []models.RefundDetail
}

// Decision is a permitted transition.
type Decision struct {
	From     models.RefundStatus `json:"from"`
	To       models.RefundStatus `json:"to"`
	Role     models.Role         `json:"role"`
	Passed   bool                `json:"passed"`
	FastPath bool                `json:"fast_path"`
}

// Machine evaluates transitions against a stage table.
type Machine struct {
	chains Chains
}

// New returns a machine over chains, or DefaultChains when chains is nil.
func New(chains Chains) *Machine {
	if chains == nil {
		chains = DefaultChains
	}
	return &Machine{chains: chains}
}

// Stages returns the review chain for t.
func (m *Machine) Stages(t models.RefundType) ([]models.RefundStatus, error) {
	chain, ok := m.chains[t]
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("no review chain for refund type %q", t)
	}
	return chain, nil
}

// FirstStage is where a launched or restarted request of type t enters review.
func (m *Machine) FirstStage(t models.RefundType) (models.RefundStatus, error) {
	chain, err := m.Stages(t)
	if err != nil {
		return "", err
	}
	return chain[0], nil
}

// Next returns the state following status in t's chain.
func (m *Machine) Next(t models.RefundType, status models.RefundStatus) (models.RefundStatus, error) {
	chain, err := m.Stages(t)
	if err != nil {
		return "", err
	}
	for i, s := range chain {
		if s != status {
			continue
		}
		if i == len(chain)-1 {
			return models.StatusFinish, nil
		}
		return chain[i+1], nil
	}
	return "", fmt.Errorf("state %s is not part of the %s chain", status, t)
}

// NoNeedToStartProcess reports whether no money actually has to move: there
// are no refund lines, every line is empty or zero, or every payment was a
// POS pre-authorization hold.
func NoNeedToStartProcess(payments []models.Payment, details []models.RefundDetail) bool {
	if len(details) == 0 {
		return true
	}
	allEmpty := true
	for _, d := range details {
		if d.Fee.Valid && !d.Fee.Decimal.IsZero() {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return true
	}
	for _, p := range payments {
		if p.PayMode != models.PayModePosPreLicensing {
			return false
		}
	}
	return true
}

// Submit launches a NEW request. When no money has to move it completes
// immediately without review and without signature.
func (m *Machine) Submit(s Snapshot, sig models.Signature) (Decision, error) {
	if s.Status != models.StatusNew && s.Status != "" {
		return Decision{}, refused(s.Status, "submit", "request was already submitted")
	}
	first, err := m.FirstStage(s.Type)
	if err != nil {
		return Decision{}, refused(models.StatusNew, "submit", err.Error())
	}
	if NoNeedToStartProcess(s.Payments, s.Details) {
		return Decision{From: models.StatusNew, To: models.StatusFinish, Role: models.RoleDeliver, Passed: true, FastPath: true}, nil
	}
	if sig.Empty() {
		return Decision{}, refused(models.StatusNew, "submit", "signature required")
	}
	return Decision{From: models.StatusNew, To: first, Role: models.RoleDeliver, Passed: true}, nil
}

// Approve advances the review stage the caller is looking at.
func (m *Machine) Approve(s Snapshot, stage models.RefundStatus, sig models.Signature) (Decision, error) {
	const action = "approve"
	if err := m.checkStage(s, stage, action); err != nil {
		return Decision{}, err
	}
	if !examiningStages[stage] {
		return Decision{}, refused(s.Status, action, "stage is not a review stage")
	}
	role := stageRoles[stage]
	if amountEditRoles[role] {
		if err := checkAmountEdits(role, s.Original, s.Details); err != nil {
			return Decision{}, err
		}
	}
	if financialReviewRoles[role] {
		for _, p := range s.Payments {
			if p.FinancialStatus.Unresolved() {
				return Decision{}, refused(s.Status, action, fmt.Sprintf("payment %d financial status is %s", p.ID, p.FinancialStatus))
			}
		}
	}
	if sig.Empty() && !NoNeedToStartProcess(s.Payments, s.Details) {
		return Decision{}, refused(s.Status, action, "signature required")
	}
	next, err := m.Next(s.Type, stage)
	if err != nil {
		return Decision{}, refused(s.Status, action, err.Error())
	}
	return Decision{From: stage, To: next, Role: role, Passed: true}, nil
}

// Reject sends the request back to its launcher. remark is the request-level
// remark; it may be empty when at least one refund line carries the role's remark.
func (m *Machine) Reject(s Snapshot, stage models.RefundStatus, remark string) (Decision, error) {
	const action = "reject"
	if err := m.checkStage(s, stage, action); err != nil {
		return Decision{}, err
	}
	if !examiningStages[stage] {
		return Decision{}, refused(s.Status, action, "stage is not a review stage")
	}
	role := stageRoles[stage]
	if !hasAnyRemark(role, remark, s.Original, s.Details) {
		return Decision{}, &models.MissingRemarkError{Role: role, Reason: "rejection requires a request remark or a refund line remark"}
	}
	return Decision{From: stage, To: models.StatusRestarting, Role: role}, nil
}

// Restart resubmits a rejected request into the first stage of its chain.
func (m *Machine) Restart(s Snapshot, sig models.Signature) (Decision, error) {
	const action = "restart"
	if s.Status != models.StatusRestarting {
		return Decision{}, refused(s.Status, action, "request is not waiting for restart")
	}
	if sig.Empty() {
		return Decision{}, refused(s.Status, action, "signature required")
	}
	first, err := m.FirstStage(s.Type)
	if err != nil {
		return Decision{}, refused(s.Status, action, err.Error())
	}
	return Decision{From: models.StatusRestarting, To: first, Role: models.RoleDeliver, Passed: true}, nil
}

// CashierComplete closes a request once the cashier paid it out.
func (m *Machine) CashierComplete(s Snapshot) (Decision, error) {
	if s.Status != models.StatusCashierRefunding {
		return Decision{}, refused(s.Status, "cashier complete", "request is not waiting for the cashier")
	}
	return Decision{From: models.StatusCashierRefunding, To: models.StatusFinish, Role: models.RoleCashier, Passed: true}, nil
}

func (m *Machine) checkStage(s Snapshot, stage models.RefundStatus, action string) error {
	if s.Status != stage {
		return refused(s.Status, action, fmt.Sprintf("request is in %s, not %s", s.Status, stage))
	}
	chain, err := m.Stages(s.Type)
	if err != nil {
		return refused(s.Status, action, err.Error())
	}
	for _, st := range chain {
		if st == stage {
			return nil
		}
	}
	return refused(s.Status, action, fmt.Sprintf("%s is not a stage of %s", stage, s.Type))
}

// checkAmountEdits refuses when a line's fee differs from the value recorded
// at stage entry and role did not explain it on that line.
func checkAmountEdits(role models.Role, original, current []models.RefundDetail) error {
	before := byPayment(original)
	for _, d := range current {
		o, ok := before[d.PaymentID]
		if ok && feeEqual(o, d) {
			continue
		}
		if !newRemark(role, d, o) {
			return &models.MissingRemarkError{Role: role, PaymentID: d.PaymentID, Reason: "refund amount was changed"}
		}
	}
	return nil
}

func feeEqual(a, b models.RefundDetail) bool {
	if a.Fee.Valid != b.Fee.Valid {
		return false
	}
	return !a.Fee.Valid || a.Fee.Decimal.Equal(b.Fee.Decimal)
}

// hasAnyRemark accepts the remark sent with this rejection or a line remark
// written at this stage. Remarks kept from an earlier review cycle do not count.
func hasAnyRemark(role models.Role, remark string, original, details []models.RefundDetail) bool {
	if strings.TrimSpace(remark) != "" {
		return true
	}
	before := byPayment(original)
	for _, d := range details {
		if newRemark(role, d, before[d.PaymentID]) {
			return true
		}
	}
	return false
}

// newRemark reports whether role remarked on d since the stage was entered.
func newRemark(role models.Role, d, atEntry models.RefundDetail) bool {
	return d.Remarks.Has(role) && d.Remarks.Get(role) != atEntry.Remarks.Get(role)
}

func byPayment(details []models.RefundDetail) map[int64]models.RefundDetail {
	out := make(map[int64]models.RefundDetail, len(details))
	for _, d := range details {
		out[d.PaymentID] = d
	}
	return out
}

func refused(from models.RefundStatus, action, reason string) error {
	return &models.TransitionRefusedError{From: from, Action: action, Reason: reason}
}
