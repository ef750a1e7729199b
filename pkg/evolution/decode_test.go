package evolution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		genes GeneVector
		want  DecodedStrategy
	}{
		{
			name:  "zero vector",
			genes: GeneVector{0, 0, 0, 0},
			want:  DecodedStrategy{RSIThreshold: 0, MACDFast: 0, MACDSlow: 0, HoldPeriod: 0},
		},
		{
			name:  "unit vector",
			genes: GeneVector{1, 1, 1, 1},
			want:  DecodedStrategy{RSIThreshold: 100, MACDFast: 50, MACDSlow: 200, HoldPeriod: 30},
		},
		{
			name:  "classic macd",
			genes: GeneVector{0.55, 0.24, 0.0934, 0.5},
			want:  DecodedStrategy{RSIThreshold: 55, MACDFast: 12, MACDSlow: 26, HoldPeriod: 15},
		},
		{
			name:  "slow uses unrounded fast",
			genes: GeneVector{0.5, 0.259, 0.004, 0.1},
			want:  DecodedStrategy{RSIThreshold: 50, MACDFast: 12, MACDSlow: 13, HoldPeriod: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.genes))
		})
	}
}

func TestDecode_PureAndOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		g := RandomGeneVector(rng)
		first := Decode(g)
		second := Decode(g)

		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.MACDSlow, first.MACDFast)
		assert.GreaterOrEqual(t, first.RSIThreshold, 0)
		assert.LessOrEqual(t, first.RSIThreshold, 100)
		assert.LessOrEqual(t, first.MACDFast, 50)
		assert.LessOrEqual(t, first.MACDSlow-first.MACDFast, 151)
		assert.LessOrEqual(t, first.HoldPeriod, 30)
	}
}
