// Package lookup holds display labels for refund enums.
package lookup

import "github.com/akylbek/payment-system/refund-orchestrator/internal/models"

// Static serves labels from in-memory tables and falls back to the raw value.
type Static struct {
	feeTypes    map[models.FeeType]string
	payModes    map[models.PayMode]string
	refundTypes map[models.RefundType]string
}

func NewStatic() *Static {
	return &Static{
		feeTypes: map[models.FeeType]string{
			models.FeeTypeRent:             "Rent",
			models.FeeTypeDamageDeposit:    "Damage deposit",
			models.FeeTypeViolationDeposit: "Violation deposit",
			models.FeeTypeDeliver:          "Delivery fee",
			models.FeeTypeReceive:          "Pick-up fee",
			models.FeeTypeOther:            "Other",
		},
		payModes: map[models.PayMode]string{
			models.PayModeBalance:         "Account balance",
			models.PayModeWechatApp:       "WeChat (app)",
			models.PayModeWechatNative:    "WeChat (QR)",
			models.PayModeAlipayApp:       "Alipay (app)",
			models.PayModeAlipayNative:    "Alipay (QR)",
			models.PayModePosPreLicensing: "POS pre-authorization",
			models.PayModeChannel:         "Channel",
			models.PayModeCash:            "Cash",
			models.PayModeBankTransfer:    "Bank transfer",
		},
		refundTypes: map[models.RefundType]string{
			models.RefundTypeOrderRentCancel:        "Order cancellation refund",
			models.RefundTypeDamageDepositReturn:    "Damage deposit return",
			models.RefundTypeViolationDepositReturn: "Violation deposit return",
		},
	}
}

func (s *Static) FeeTypeLabel(ft models.FeeType) string {
	if l, ok := s.feeTypes[ft]; ok {
		return l
	}
	return string(ft)
}

func (s *Static) PayModeLabel(m models.PayMode) string {
	if l, ok := s.payModes[m]; ok {
		return l
	}
	return string(m)
}

func (s *Static) RefundTypeLabel(t models.RefundType) string {
	if l, ok := s.refundTypes[t]; ok {
		return l
	}
	return string(t)
}
