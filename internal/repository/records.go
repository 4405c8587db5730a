package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

// RefundRecord is the refunds table row.
type RefundRecord struct {
	ID        int64          `gorm:"primaryKey"`
	Type      string         `gorm:"size:50;not null"`
	Status    string         `gorm:"size:50;not null;index"`
	OrderID   int64          `gorm:"not null;index"`
	TaskID    string         `gorm:"size:100"`
	Remarks   models.Remarks `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RefundRecord) TableName() string { return "refunds" }

// PaymentRecord stores payments, deductions (parent_payment_id set) and
// refund-out payments (refund_detail_id set) in one table.
type PaymentRecord struct {
	ID              int64           `gorm:"primaryKey"`
	OrderID         int64           `gorm:"not null;index"`
	FeeType         string          `gorm:"size:50;not null"`
	Fee             decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PayMode         string          `gorm:"size:50;not null"`
	Direction       string          `gorm:"size:50;not null"`
	FinancialStatus string          `gorm:"size:50;not null"`
	ParentPaymentID *int64          `gorm:"index"`
	RefundDetailID  *int64          `gorm:"index"`
	Remark          string
	PayTime         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PaymentRecord) TableName() string { return "payments" }

// RefundDetailRecord is one refund line.
type RefundDetailRecord struct {
	ID                 int64               `gorm:"primaryKey"`
	RefundID           int64               `gorm:"not null;index"`
	PaymentID          int64               `gorm:"not null;index"`
	FeeType            string              `gorm:"size:50;not null"`
	Fee                decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	Account            string              `gorm:"size:100"`
	BankOfDeposit      string              `gorm:"size:200"`
	Remarks            models.Remarks      `gorm:"serializer:json"`
	ApplicationFormURL string
	StageEntryFee      decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	StageEntryRemarks  models.Remarks      `gorm:"serializer:json"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (RefundDetailRecord) TableName() string { return "refund_details" }

func (r RefundRecord) ToDomain(details []RefundDetailRecord) models.RefundRequest {
	out := models.RefundRequest{
		ID:            r.ID,
		Type:          models.RefundType(r.Type),
		Status:        models.RefundStatus(r.Status),
		OrderID:       r.OrderID,
		TaskID:        r.TaskID,
		Remarks:       r.Remarks.Clone(),
		RefundDetails: make([]models.RefundDetail, 0, len(details)),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, d := range details {
		out.RefundDetails = append(out.RefundDetails, d.ToDomain())
	}
	return out
}

func (p PaymentRecord) ToDomain() models.Payment {
	return models.Payment{
		ID:              p.ID,
		OrderID:         p.OrderID,
		FeeType:         models.FeeType(p.FeeType),
		Fee:             p.Fee,
		PayMode:         models.PayMode(p.PayMode),
		Direction:       models.Direction(p.Direction),
		FinancialStatus: models.FinancialStatus(p.FinancialStatus),
		ParentPaymentID: p.ParentPaymentID,
		RefundDetailID:  p.RefundDetailID,
		Remark:          p.Remark,
		PayTime:         p.PayTime,
	}
}

func PaymentRecordFromDomain(p models.Payment) PaymentRecord {
	return PaymentRecord{
		ID:              p.ID,
		OrderID:         p.OrderID,
		FeeType:         string(p.FeeType),
		Fee:             p.Fee,
		PayMode:         string(p.PayMode),
		Direction:       string(p.Direction),
		FinancialStatus: string(p.FinancialStatus),
		ParentPaymentID: p.ParentPaymentID,
		RefundDetailID:  p.RefundDetailID,
		Remark:          p.Remark,
		PayTime:         p.PayTime,
	}
}

// DeductionToDomain reads a deduction row; seq is its position under the
// refund, starting at 1.
func (p PaymentRecord) DeductionToDomain(seq int) models.DeductionPayment {
	var parent int64
	if p.ParentPaymentID != nil {
		parent = *p.ParentPaymentID
	}
	return models.DeductionPayment{
		ID:              p.ID,
		Key:             models.DeductionKey(p.ID),
		Seq:             seq,
		ParentPaymentID: parent,
		FeeType:         models.FeeType(p.FeeType),
		Fee:             p.Fee,
		PayMode:         models.PayMode(p.PayMode),
		Remark:          p.Remark,
	}
}

func (d RefundDetailRecord) ToDomain() models.RefundDetail {
	return models.RefundDetail{
		ID:                 d.ID,
		RefundID:           d.RefundID,
		PaymentID:          d.PaymentID,
		FeeType:            models.FeeType(d.FeeType),
		Fee:                d.Fee,
		Account:            d.Account,
		BankOfDeposit:      d.BankOfDeposit,
		Remarks:            d.Remarks.Clone(),
		ApplicationFormURL: d.ApplicationFormURL,
		StageEntryFee:      d.StageEntryFee,
		StageEntryRemarks:  d.StageEntryRemarks.Clone(),
	}
}

func RefundDetailRecordFromDomain(d models.RefundDetail) RefundDetailRecord {
	return RefundDetailRecord{
		ID:                 d.ID,
		RefundID:           d.RefundID,
		PaymentID:          d.PaymentID,
		FeeType:            string(d.FeeType),
		Fee:                d.Fee,
		Account:            d.Account,
		BankOfDeposit:      d.BankOfDeposit,
		Remarks:            d.Remarks.Clone(),
		ApplicationFormURL: d.ApplicationFormURL,
		StageEntryFee:      d.StageEntryFee,
		StageEntryRemarks:  d.StageEntryRemarks.Clone(),
	}
}

// enterStage records every line of refundID as it stands now, as the
// baseline for amount edits in the status just entered.
func enterStage(tx *gorm.DB, refundID int64) error {
	var details []RefundDetailRecord
	if err := tx.Where("refund_id = ?", refundID).Find(&details).Error; err != nil {
		return err
	}
	for i := range details {
		details[i].StageEntryFee = details[i].Fee
		details[i].StageEntryRemarks = details[i].Remarks.Clone()
		if err := tx.Save(&details[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
