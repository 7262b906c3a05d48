// Package core holds the shared domain types of the backtesting engine.
package core

import "math"

// CashKey is the reserved asset identifier for the cash account.
const CashKey = "cash"

// Holdings maps asset identifiers (plus CashKey) to signed quantities.
// Quantities are in units of the asset; cash is in account currency.
type Holdings map[string]float64

// TradeVector maps asset identifiers to signed traded quantities for one
// step. Cash is never a key: the cash leg is implied by self-financing.
type TradeVector map[string]float64

// Clone returns a deep copy of the holdings.
func (h Holdings) Clone() Holdings {
	out := make(Holdings, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Cash returns the cash balance.
func (h Holdings) Cash() float64 {
	return h[CashKey]
}

// Assets returns the non-cash asset identifiers, unordered.
func (h Holdings) Assets() []string {
	out := make([]string, 0, len(h))
	for k := range h {
		if k != CashKey {
			out = append(out, k)
		}
	}
	return out
}

// Value returns the total portfolio value: sum of price*quantity over
// non-cash assets plus the cash balance. Assets missing from prices
// contribute zero.
func (h Holdings) Value(prices map[string]float64) float64 {
	total := h.Cash()
	for k, qty := range h {
		if k == CashKey {
			continue
		}
		total += prices[k] * qty
	}
	return total
}

// Weights returns per-asset portfolio weights including the cash weight.
// A zero or negative total value yields nil.
func (h Holdings) Weights(prices map[string]float64) map[string]float64 {
	total := h.Value(prices)
	if total <= 0 {
		return nil
	}
	out := make(map[string]float64, len(h))
	for k, qty := range h {
		if k == CashKey {
			out[k] = h.Cash() / total
			continue
		}
		out[k] = prices[k] * qty / total
	}
	return out
}

// IsValid reports whether the holdings define a cash entry and every
// quantity is finite.
func (h Holdings) IsValid() bool {
	if _, ok := h[CashKey]; !ok {
		return false
	}
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Covers reports whether the holdings define a quantity for every asset
// in the given universe.
func (h Holdings) Covers(universe []string) bool {
	for _, a := range universe {
		if _, ok := h[a]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the trade vector.
func (t TradeVector) Clone() TradeVector {
	out := make(TradeVector, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// IsZero reports whether every traded quantity is exactly zero.
func (t TradeVector) IsZero() bool {
	for _, v := range t {
		if v != 0 {
			return false
		}
	}
	return true
}

// Cashflow returns the signed cash impact of executing the trades at the
// given prices: buys consume cash (negative), sells produce cash.
func (t TradeVector) Cashflow(prices map[string]float64) float64 {
	var flow float64
	for k, qty := range t {
		flow -= prices[k] * qty
	}
	return flow
}
