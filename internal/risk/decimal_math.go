package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decHundred = decimal.NewFromInt(100)
	decZero    = decimal.Zero
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decsToFloats(vals []decimal.Decimal) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = decToFloat(v)
	}
	return out
}

func decsFromFloats(vals []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decFromFloat(v)
	}
	return out
}
