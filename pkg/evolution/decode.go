package evolution

// Domain ranges of the decoded strategy parameters
const (
	RSIThresholdRange = 100.0
	MACDFastRange     = 50.0
	MACDSlowSpread    = 150.0
	HoldPeriodRange   = 30.0
)

// DecodedStrategy holds domain-scaled trading parameters derived from a GeneVector
type DecodedStrategy struct {
	RSIThreshold int `json:"rsi_threshold" yaml:"rsi_threshold"`
	MACDFast     int `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow     int `json:"macd_slow" yaml:"macd_slow"`
	HoldPeriod   int `json:"hold_period" yaml:"hold_period"`
}

// Decode maps normalized genes to strategy parameters. Truncation to integer
// units happens only here so the operators keep working in continuous space.
func Decode(g GeneVector) DecodedStrategy {
	g = g.Clamped()
	fast := g[GeneMACDFast] * MACDFastRange
	return DecodedStrategy{
		RSIThreshold: int(g[GeneRSIThreshold] * RSIThresholdRange),
		MACDFast:     int(fast),
		MACDSlow:     int(fast + g[GeneMACDSlow]*MACDSlowSpread),
		HoldPeriod:   int(g[GeneHoldPeriod] * HoldPeriodRange),
	}
}
