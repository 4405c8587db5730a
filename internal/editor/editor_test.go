package editor

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rentState(amount string) State {
	payments := []models.Payment{{
		ID:        1,
		FeeType:   models.FeeTypeRent,
		Fee:       dec(amount),
		PayMode:   models.PayModeWechatApp,
		Direction: models.DirectionCustomerToWagons,
	}}
	return State{Payments: payments, Details: SeedRefundDetails(payments, nil)}
}

func currentLineFee(t *testing.T, s State) decimal.Decimal {
	t.Helper()
	require.Len(t, s.Details, 1)
	require.True(t, s.Details[0].Fee.Valid)
	return s.Details[0].Fee.Decimal
}

func assertConserved(t *testing.T, s State) {
	t.Helper()
	l := s.Ledger()
	for _, p := range s.Payments {
		assert.True(t, l.TotalDeducted(p.ID).LessThanOrEqual(p.Fee), "deductions exceed payment %d", p.ID)
		d, ok := l.DetailForPayment(p.ID)
		if ok && d.Fee.Valid {
			assert.True(t, d.Fee.Decimal.LessThanOrEqual(l.DefaultRefundable(p)), "line exceeds refundable for payment %d", p.ID)
		}
	}
}

func TestSeedDefaultsToPaymentFee(t *testing.T) {
	s := rentState("1000")
	assert.True(t, dec("1000").Equal(currentLineFee(t, s)))
	assert.Equal(t, models.FeeTypeRent, s.Details[0].FeeType)
}

func TestAddDeductionScenario(t *testing.T) {
	s := rentState("1000")
	next, change, err := AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec("200"), Remark: "damage"})
	require.NoError(t, err)

	assert.True(t, dec("800").Equal(currentLineFee(t, next)))
	assert.True(t, dec("200").Equal(next.Ledger().TotalDeducted(1)))
	assert.Equal(t, 1, change.Deduction.Seq)
	assert.NotEmpty(t, change.Deduction.Key)
	assert.Equal(t, models.FeeTypeRent, change.Deduction.FeeType)
	assert.Equal(t, 0, change.Deduction.RefundDetailIndex)
	// input untouched
	assert.True(t, dec("1000").Equal(currentLineFee(t, s)))
	assert.Empty(t, s.Deductions)
	assertConserved(t, next)
}

func TestAddDeductionValidation(t *testing.T) {
	tests := []struct {
		name  string
		input DeductionInput
		field string
		rule  string
	}{
		{name: "empty remark", input: DeductionInput{ParentPaymentID: 1, Fee: dec("10"), Remark: "  "}, field: "remark", rule: "required"},
		{name: "zero fee", input: DeductionInput{ParentPaymentID: 1, Fee: decimal.Zero, Remark: "x"}, field: "fee", rule: "must_be_positive"},
		{name: "negative fee", input: DeductionInput{ParentPaymentID: 1, Fee: dec("-1"), Remark: "x"}, field: "fee", rule: "must_be_positive"},
		{name: "over remaining", input: DeductionInput{ParentPaymentID: 1, Fee: dec("1000.01"), Remark: "x"}, field: "fee", rule: "exceeds_remaining_deductible"},
		{name: "unknown parent", input: DeductionInput{ParentPaymentID: 5, Fee: dec("1"), Remark: "x"}, field: "parent_payment_id", rule: "unknown_payment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := rentState("1000")
			next, _, err := AddDeduction(s, tt.input)
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.rule, ve.Fields[tt.field])
			assert.True(t, dec("1000").Equal(currentLineFee(t, next)))
			assert.Empty(t, next.Deductions)
		})
	}
}

func TestDeductionsNeverExceedPayment(t *testing.T) {
	s := rentState("1000")
	var err error
	for _, amount := range []string{"300", "300", "400"} {
		s, _, err = AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec(amount), Remark: "fine"})
		require.NoError(t, err)
		assertConserved(t, s)
	}
	assert.True(t, decimal.Zero.Equal(currentLineFee(t, s)))

	_, _, err = AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec("0.01"), Remark: "fine"})
	require.Error(t, err)
	assert.True(t, models.IsBusinessRule(err))
}

func TestModifyDeduction(t *testing.T) {
	s, added, err := AddDeduction(rentState("1000"), DeductionInput{ParentPaymentID: 1, Fee: dec("200"), Remark: "damage"})
	require.NoError(t, err)

	next, change, err := ModifyDeduction(s, added.Deduction.Key, dec("350"), "bigger damage")
	require.NoError(t, err)
	assert.True(t, dec("650").Equal(currentLineFee(t, next)))
	assert.Equal(t, "bigger damage", change.Deduction.Remark)
	assertConserved(t, next)

	// same edit again is a no-op on the ledger
	again, _, err := ModifyDeduction(next, added.Deduction.Key, dec("350"), "bigger damage")
	require.NoError(t, err)
	assert.True(t, dec("650").Equal(currentLineFee(t, again)))

	// whole payment may be deducted, no more
	_, _, err = ModifyDeduction(next, added.Deduction.Key, dec("1000"), "all")
	require.NoError(t, err)
	_, _, err = ModifyDeduction(next, added.Deduction.Key, dec("1000.5"), "all")
	require.Error(t, err)

	_, _, err = ModifyDeduction(next, added.Deduction.Key, dec("10"), "")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["remark"])

	_, _, err = ModifyDeduction(next, "missing", dec("10"), "x")
	require.ErrorAs(t, err, &ve)
}

func TestDeleteThenAddRoundTrip(t *testing.T) {
	s := rentState("1000")
	s, first, err := AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec("120"), Remark: "fuel"})
	require.NoError(t, err)
	s, _, err = AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec("80"), Remark: "cleaning"})
	require.NoError(t, err)
	before := currentLineFee(t, s)

	deleted, change, err := DeleteDeduction(s, first.Deduction.Key)
	require.NoError(t, err)
	assert.True(t, before.Add(dec("120")).Equal(currentLineFee(t, deleted)))
	require.Len(t, change.Deductions, 1)
	assert.Equal(t, 1, change.Deductions[0].Seq)
	assert.Equal(t, "cleaning", change.Deductions[0].Remark)

	restored, _, err := AddDeduction(deleted, DeductionInput{ParentPaymentID: 1, Fee: dec("120"), Remark: "fuel"})
	require.NoError(t, err)
	assert.True(t, before.Equal(currentLineFee(t, restored)))
	assert.Equal(t, 2, restored.Deductions[1].Seq)
}

func TestSetRefundDetailFee(t *testing.T) {
	s := rentState("1000")
	next, _, err := SetRefundDetailFee(s, 1, dec("600"))
	require.NoError(t, err)
	assert.True(t, dec("600").Equal(currentLineFee(t, next)))

	twice, _, err := SetRefundDetailFee(next, 1, dec("600"))
	require.NoError(t, err)
	assert.True(t, dec("600").Equal(currentLineFee(t, twice)))

	_, _, err = SetRefundDetailFee(s, 1, dec("0"))
	require.NoError(t, err)

	for _, bad := range []string{"-1", "1000.01"} {
		_, _, err = SetRefundDetailFee(s, 1, dec(bad))
		var ve *models.ValidationError
		require.ErrorAs(t, err, &ve, bad)
		assert.Equal(t, "out_of_range", ve.Fields["fee"])
	}
}

func TestSetRefundDetailFeeRespectsDeductions(t *testing.T) {
	s, _, err := AddDeduction(rentState("1000"), DeductionInput{ParentPaymentID: 1, Fee: dec("200"), Remark: "damage"})
	require.NoError(t, err)
	_, _, err = SetRefundDetailFee(s, 1, dec("900"))
	require.Error(t, err)
	next, _, err := SetRefundDetailFee(s, 1, dec("800"))
	require.NoError(t, err)
	assertConserved(t, next)
}

func TestUndeterminedLineUsesPaymentDefault(t *testing.T) {
	s := rentState("500")
	s.Details[0].Fee = decimal.NullDecimal{}
	next, _, err := AddDeduction(s, DeductionInput{ParentPaymentID: 1, Fee: dec("50"), Remark: "late"})
	require.NoError(t, err)
	assert.True(t, dec("450").Equal(currentLineFee(t, next)))
}

func TestSetDetailRemark(t *testing.T) {
	s := rentState("500")
	next, err := SetDetailRemark(s, 1, models.RoleShopManager, " adjusted ")
	require.NoError(t, err)
	assert.Equal(t, "adjusted", next.Details[0].Remarks.Get(models.RoleShopManager))
	assert.Nil(t, s.Details[0].Remarks)

	_, err = SetDetailRemark(s, 9, models.RoleShopManager, "x")
	assert.Error(t, err)
}
