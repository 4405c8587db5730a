package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fee(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func ptr(v int64) *int64 { return &v }

func paidIn(id int64, ft models.FeeType, amount string) models.Payment {
	return models.Payment{
		ID:              id,
		FeeType:         ft,
		Fee:             dec(amount),
		PayMode:         models.PayModeWechatApp,
		Direction:       models.DirectionCustomerToWagons,
		FinancialStatus: models.FinancialStatusApproved,
	}
}

func refundOut(id, detailID int64, amount string) models.Payment {
	return models.Payment{
		ID:             id,
		FeeType:        models.FeeTypeRent,
		Fee:            dec(amount),
		Direction:      models.DirectionWagonsToCustomer,
		RefundDetailID: ptr(detailID),
	}
}

func TestAmountAlreadyPaid(t *testing.T) {
	payments := []models.Payment{
		paidIn(1, models.FeeTypeRent, "500"),
		paidIn(2, models.FeeTypeRent, "250.50"),
		paidIn(3, models.FeeTypeOther, "100"),
		refundOut(4, 9, "80"),
	}
	payments[1].Direction = models.DirectionPeerToWagons
	l := New(payments, nil, nil)

	assert.True(t, dec("750.50").Equal(l.AmountAlreadyPaid(models.FeeTypeRent)))
	assert.True(t, dec("100").Equal(l.AmountAlreadyPaid(models.FeeTypeOther)))
	assert.True(t, decimal.Zero.Equal(l.AmountAlreadyPaid(models.FeeTypeDeliver)))
	assert.True(t, dec("249.50").Equal(l.RemainingToBePaid(models.FeeTypeRent, dec("1000"))))
}

func TestDeductionScenario(t *testing.T) {
	payment := paidIn(1, models.FeeTypeRent, "1000")
	l := New([]models.Payment{payment}, nil, nil)
	require.True(t, dec("1000").Equal(l.DefaultRefundable(payment)))

	deductions := []models.DeductionPayment{{Key: "a", ParentPaymentID: 1, Fee: dec("200"), Remark: "damage"}}
	details := []models.RefundDetail{{ID: 7, PaymentID: 1, FeeType: models.FeeTypeRent, Fee: fee("800")}}
	l = New([]models.Payment{payment}, details, deductions)

	assert.True(t, dec("200").Equal(l.TotalDeducted(1)))
	assert.True(t, dec("800").Equal(l.RefundableAmount(details[0])))
	assert.True(t, dec("800").Equal(l.RemainingDeductible(1)))
}

func TestRemainingDeductibleBoundedByLine(t *testing.T) {
	payment := paidIn(1, models.FeeTypeRent, "1000")
	details := []models.RefundDetail{{PaymentID: 1, Fee: fee("300")}}
	l := New([]models.Payment{payment}, details, nil)
	assert.True(t, dec("300").Equal(l.RemainingDeductible(1)))
	assert.True(t, decimal.Zero.Equal(l.RemainingDeductible(42)))
}

func TestUnrefundedAmountIsMonotonic(t *testing.T) {
	detail := models.RefundDetail{ID: 9, PaymentID: 1, Fee: fee("500")}
	payments := []models.Payment{paidIn(1, models.FeeTypeRent, "500")}

	previous := New(payments, []models.RefundDetail{detail}, nil).UnrefundedAmount(detail)
	require.True(t, dec("500").Equal(previous))

	for i, amount := range []string{"100", "150", "250", "50"} {
		payments = append(payments, refundOut(int64(10+i), 9, amount))
		current := New(payments, []models.RefundDetail{detail}, nil).UnrefundedAmount(detail)
		assert.True(t, current.LessThanOrEqual(previous), "unrefunded grew from %s to %s", previous, current)
		previous = current
	}
	// 500 - 550: over-refund is reported, not clamped.
	assert.True(t, dec("-50").Equal(previous))
	l := New(payments, []models.RefundDetail{detail}, nil)
	require.Len(t, l.OverRefunded(), 1)
	assert.Equal(t, int64(9), l.OverRefunded()[0].ID)
}

func TestRefundedIgnoresOtherLinesAndDirections(t *testing.T) {
	detail := models.RefundDetail{ID: 9, Fee: fee("500")}
	inbound := refundOut(3, 9, "70")
	inbound.Direction = models.DirectionCustomerToWagons
	l := New([]models.Payment{refundOut(1, 9, "100"), refundOut(2, 8, "40"), inbound}, nil, nil)
	assert.True(t, dec("100").Equal(l.AmountAlreadyRefunded(9)))
	assert.True(t, dec("400").Equal(l.UnrefundedAmount(detail)))
}

func TestUndeterminedFeeRefundsNothing(t *testing.T) {
	l := New(nil, nil, nil)
	assert.True(t, decimal.Zero.Equal(l.RefundableAmount(models.RefundDetail{})))
	assert.True(t, decimal.Zero.Equal(l.UnrefundedAmount(models.RefundDetail{})))
}

func TestFeeTypeListAndSumRow(t *testing.T) {
	payments := []models.Payment{
		paidIn(1, models.FeeTypeOther, "100"),
		paidIn(2, models.FeeTypeRent, "500"),
	}
	details := []models.RefundDetail{
		{PaymentID: 2, FeeType: models.FeeTypeRent, Fee: fee("500")},
		{PaymentID: 1, FeeType: models.FeeTypeOther, Fee: fee("100")},
		{PaymentID: 3, FeeType: models.FeeTypeOther},
	}
	l := New(payments, details, nil)

	assert.Equal(t, []models.FeeType{models.FeeTypeRent, models.FeeTypeOther}, l.FeeTypeList())
	assert.True(t, dec("600").Equal(SumRefundDetails(details)))

	summary := l.Summarize()
	require.Len(t, summary, 2)
	assert.Equal(t, models.FeeTypeRent, summary[0].FeeType)
	assert.True(t, dec("100").Equal(summary[0].Percent))
}

func TestPercentOfTotal(t *testing.T) {
	tests := []struct {
		name  string
		part  string
		whole string
		want  string
	}{
		{name: "one third", part: "1", whole: "3", want: "33.33"},
		{name: "two thirds", part: "2", whole: "3", want: "66.67"},
		{name: "whole", part: "600", whole: "600", want: "100"},
		{name: "zero whole", part: "10", whole: "0", want: "0"},
		{name: "zero part", part: "0", whole: "10", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentOfTotal(dec(tt.part), dec(tt.whole))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}
