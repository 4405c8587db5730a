package models

type RefundType string

const (
	RefundTypeOrderRentCancel        RefundType = "ORDER_RENT_CANCEL"
	RefundTypeDamageDepositReturn    RefundType = "DAMAGE_DEPOSIT_RETURN"
	RefundTypeViolationDepositReturn RefundType = "VIOLATION_DEPOSIT_RETURN"
)

type RefundStatus string

const (
	StatusNew                  RefundStatus = "NEW"
	StatusShopManagerExamining RefundStatus = "SHOP_MANAGER_EXAMINING"
	StatusCeoExamining         RefundStatus = "CEO_EXAMINING"
	StatusAccountantExamining  RefundStatus = "ACCOUNTANT_EXAMINING"
	StatusCashierRefunding     RefundStatus = "CASHIER_REFUNDING"
	StatusRestarting           RefundStatus = "RESTARTING"
	StatusFinish               RefundStatus = "FINISH"
)

type FeeType string

const (
	FeeTypeRent             FeeType = "RENT_FEE"
	FeeTypeDamageDeposit    FeeType = "DAMAGE_DEPOSIT"
	FeeTypeViolationDeposit FeeType = "VIOLATION_DEPOSIT"
	FeeTypeDeliver          FeeType = "DELIVER_FEE"
	FeeTypeReceive          FeeType = "RECEIVE_FEE"
	FeeTypeOther            FeeType = "OTHER"
)

// AllFeeTypes is the canonical display order of fee types.
var AllFeeTypes = []FeeType{
	FeeTypeRent,
	FeeTypeDamageDeposit,
	FeeTypeViolationDeposit,
	FeeTypeDeliver,
	FeeTypeReceive,
	FeeTypeOther,
}

type PayMode string

const (
	PayModeBalance         PayMode = "BALANCE"
	PayModeWechatApp       PayMode = "WECHAT_APP"
	PayModeWechatNative    PayMode = "WECHAT_NATIVE"
	PayModeAlipayApp       PayMode = "ALIPAY_APP"
	PayModeAlipayNative    PayMode = "ALIPAY_NATIVE"
	PayModePosPreLicensing PayMode = "POS_PRE_LICENSING"
	PayModeChannel         PayMode = "CHANNEL"
	PayModeCash            PayMode = "CASH"
	PayModeBankTransfer    PayMode = "BANK_TRANSFER"
)

// AllPayModes lists every pay mode the service accepts.
var AllPayModes = []PayMode{
	PayModeBalance,
	PayModeWechatApp,
	PayModeWechatNative,
	PayModeAlipayApp,
	PayModeAlipayNative,
	PayModePosPreLicensing,
	PayModeChannel,
	PayModeCash,
	PayModeBankTransfer,
}

// IsGatewayChannel reports whether refunds for this pay mode are issued by an
// online payment gateway instead of being entered by hand.
func (m PayMode) IsGatewayChannel() bool {
	switch m {
	case PayModeWechatApp, PayModeWechatNative, PayModeAlipayApp, PayModeAlipayNative:
		return true
	}
	return false
}

// SupportsDirectRefund reports whether the cashier can refund through the
// same channel in one call (balance or gateway).
func (m PayMode) SupportsDirectRefund() bool {
	return m == PayModeBalance || m.IsGatewayChannel()
}

// Channel groups gateway pay modes by provider ("wxpay", "alipay").
func (m PayMode) Channel() string {
	switch m {
	case PayModeWechatApp, PayModeWechatNative:
		return "wxpay"
	case PayModeAlipayApp, PayModeAlipayNative:
		return "alipay"
	case PayModeBalance:
		return "balance"
	}
	return ""
}

type Direction string

const (
	DirectionCustomerToWagons Direction = "CUSTOMER_TO_WAGONS"
	DirectionPeerToWagons     Direction = "PEER_TO_WAGONS"
	DirectionWagonsToCustomer Direction = "WAGONS_TO_CUSTOMER"
	DirectionWagonsToPeer     Direction = "WAGONS_TO_PEER"
)

// IsPaidIn reports money flowing from a party to the company.
func (d Direction) IsPaidIn() bool {
	return d == DirectionCustomerToWagons || d == DirectionPeerToWagons
}

// IsRefundOut reports money flowing back to a party.
func (d Direction) IsRefundOut() bool {
	return d == DirectionWagonsToCustomer || d == DirectionWagonsToPeer
}

// RefundDirection returns the payout direction matching a paid-in direction.
func (d Direction) RefundDirection() Direction {
	if d == DirectionPeerToWagons {
		return DirectionWagonsToPeer
	}
	return DirectionWagonsToCustomer
}

type FinancialStatus string

const (
	FinancialStatusToReview         FinancialStatus = "TO_REVIEW"
	FinancialStatusRejected         FinancialStatus = "REJECTED"
	FinancialStatusToReviewRejected FinancialStatus = "TO_REVIEW_REJECTED"
	FinancialStatusApproved         FinancialStatus = "APPROVED"
)

// Unresolved reports statuses that block accountant approval.
func (s FinancialStatus) Unresolved() bool {
	return s == FinancialStatusToReview || s == FinancialStatusRejected || s == FinancialStatusToReviewRejected
}

// Role is a participant in the approval chain.
type Role string

const (
	RoleDeliver     Role = "DELIVER"
	RoleShopManager Role = "SHOP_MANAGER"
	RoleCeo         Role = "CEO"
	RoleAccountant  Role = "ACCOUNTANT"
	RoleCashier     Role = "CASHIER"
)
