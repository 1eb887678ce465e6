package ensemble

import (
	"fmt"
	"math"

	"verity/internal/domain"
	"verity/internal/normalize"
)

// gateTolerance is the dollar tolerance for cross-field accounting identities.
const gateTolerance = 1.00

// qualityGates runs document-type-specific cross-field consistency checks on
// the voted final values. A gate failure means the extraction is internally
// inconsistent no matter how confident each field looked; it is surfaced as a
// validation error alongside the voted fields, never instead of them.
func (e *Engine) qualityGates(documentType domain.DocumentType, fields map[string]*FieldResult) []string {
	switch documentType {
	case domain.DocTypeBalanceSheet:
		return balanceSheetGate(fields)
	case domain.DocTypeIncomeStatement:
		return incomeStatementGate(fields)
	default:
		return nil
	}
}

// balanceSheetGate checks Assets = Liabilities + Equity.
func balanceSheetGate(fields map[string]*FieldResult) []string {
	assets, ok1 := fieldAmount(fields, "total_assets")
	liabilities, ok2 := fieldAmount(fields, "total_liabilities")
	equity, ok3 := fieldAmount(fields, "total_equity")
	if !ok1 || !ok2 || !ok3 {
		// Incomplete extraction; per-field review flags already cover it.
		return nil
	}

	diff := math.Abs(assets - (liabilities + equity))
	if diff > gateTolerance {
		return []string{fmt.Sprintf(
			"Balance sheet equation failed: assets %.2f vs liabilities+equity %.2f (difference %.2f)",
			assets, liabilities+equity, diff)}
	}
	return nil
}

// incomeStatementGate checks NOI = Revenue - Expenses.
func incomeStatementGate(fields map[string]*FieldResult) []string {
	revenue, ok1 := fieldAmount(fields, "total_revenue")
	expenses, ok2 := fieldAmount(fields, "total_expenses")
	noi, ok3 := fieldAmount(fields, "net_operating_income")
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	diff := math.Abs(noi - (revenue - expenses))
	if diff > gateTolerance {
		return []string{fmt.Sprintf(
			"Income statement equation failed: NOI %.2f vs revenue-expenses %.2f (difference %.2f)",
			noi, revenue-expenses, diff)}
	}
	return nil
}

func fieldAmount(fields map[string]*FieldResult, name string) (float64, bool) {
	fr, ok := fields[name]
	if !ok {
		return 0, false
	}
	return normalize.ParseAmount(fr.FinalValue)
}
