package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/ledger"
)

// SummaryLine is one fee type of the confirmation summary.
type SummaryLine struct {
	Label   string          `json:"label"`
	Paid    decimal.Decimal `json:"paid"`
	Refund  decimal.Decimal `json:"refund"`
	Percent decimal.Decimal `json:"percent"`
}

// Summary is shown before a request is submitted or cancelled.
type Summary struct {
	Type  string          `json:"type"`
	Lines []SummaryLine   `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// ConfirmationSummary compares paid and planned refund amounts per fee type.
func (o *Orchestrator) ConfirmationSummary(s *Session) Summary {
	out := Summary{
		Type:  o.lookup.RefundTypeLabel(s.Request.Type),
		Total: ledger.SumRefundDetails(s.Details),
	}
	for _, fs := range s.Ledger().Summarize() {
		out.Lines = append(out.Lines, SummaryLine{
			Label:   o.lookup.FeeTypeLabel(fs.FeeType),
			Paid:    fs.Paid,
			Refund:  fs.Refund,
			Percent: fs.Percent,
		})
	}
	return out
}

// ConfirmationHint renders the summary as one line per fee type.
func (o *Orchestrator) ConfirmationHint(s *Session) string {
	sum := o.ConfirmationSummary(s)
	var b strings.Builder
	fmt.Fprintf(&b, "%s, total refund %s", sum.Type, sum.Total.StringFixed(2))
	for _, l := range sum.Lines {
		fmt.Fprintf(&b, "\n%s: paid %s, refund %s (%s%%)", l.Label, l.Paid.StringFixed(2), l.Refund.StringFixed(2), l.Percent.String())
	}
	return b.String()
}
