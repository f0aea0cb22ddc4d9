package report

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"

	"github.com/quantfold/driftlab/internal/timeseries"
)

const (
	contextSMAPeriod = 20
	contextRSIPeriod = 14
)

// ComputeMarketContext derives supplemental indicator state from the raw
// close series: the latest 20-period simple moving average and 14-period RSI.
// Returns nil when the series is too short for either indicator.
func ComputeMarketContext(s *timeseries.Series) *MarketContext {
	if s.Len() <= contextSMAPeriod || s.Len() <= contextRSIPeriod {
		return nil
	}

	sma := trend.NewSmaWithPeriod[float64](contextSMAPeriod)
	smaValues := helper.ChanToSlice(sma.Compute(helper.SliceToChan(s.Values)))
	if len(smaValues) == 0 {
		return nil
	}

	rsi := momentum.NewRsiWithPeriod[float64](contextRSIPeriod)
	rsiValues := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(s.Values)))
	if len(rsiValues) == 0 {
		return nil
	}

	return &MarketContext{
		SMA: smaValues[len(smaValues)-1],
		RSI: rsiValues[len(rsiValues)-1],
	}
}
