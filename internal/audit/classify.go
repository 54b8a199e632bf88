package audit

import (
	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// ClassifyCFOP maps one CFOP to an operation type. Groups x.20x (returns),
// x.15x and x.55x (transfers) and x.93x (services) are recognised; anything
// else is a purchase when the CFOP is an entry (1-3) and a sale when it is an
// exit (5-7).
func ClassifyCFOP(cfop string) core.Classification {
	if !ValidCFOP(cfop) {
		return core.OpUndefined
	}
	c := core.DigitsOnly(cfop)
	switch group := c[1:3]; {
	case group == "20" || c[1:] == "410" || c[1:] == "411":
		return core.OpReturn
	case group == "15" || group == "55":
		return core.OpTransfer
	case group == "93":
		return core.OpService
	}
	if c[0] <= '3' {
		return core.OpPurchase
	}
	return core.OpSale
}

// classify returns the operation type of the most frequent CFOP class among
// items, breaking ties by first appearance. Documents without CFOPs are
// services when they carry ISS, undefined otherwise.
func classify(records []core.Record) core.Classification {
	counts := make(map[core.Classification]int)
	var order []core.Classification
	hasISS := false

	for _, rec := range records {
		if v, ok := rec.Number(core.FieldISSValue); ok && v > 0 {
			hasISS = true
		}
		cfop := rec.Text(core.FieldProductCFOP)
		if cfop == "" {
			continue
		}
		op := ClassifyCFOP(cfop)
		if op == core.OpUndefined {
			continue
		}
		if counts[op] == 0 {
			order = append(order, op)
		}
		counts[op]++
	}

	best := core.OpUndefined
	for _, op := range order {
		if best == core.OpUndefined || counts[op] > counts[best] {
			best = op
		}
	}
	if best == core.OpUndefined && hasISS {
		return core.OpService
	}
	return best
}
