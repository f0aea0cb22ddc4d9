package transform

import (
	"fmt"

	"github.com/quantfold/driftlab/internal/timeseries"
)

// Kind selects a transform.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindDetrend   Kind = "detrend"
	KindDiff      Kind = "diff"
	KindLogReturn Kind = "log_return"
)

// Spec is a tagged transform descriptor: the kind plus its parameter, if any.
// Window applies to KindDetrend, Order to KindDiff.
type Spec struct {
	Kind   Kind
	Window int
	Order  int
}

// Name returns a stable label for the resulting variant, e.g. "detrend_30".
func (sp Spec) Name() string {
	switch sp.Kind {
	case KindDetrend:
		return fmt.Sprintf("detrend_%d", sp.Window)
	case KindDiff:
		return fmt.Sprintf("diff_%d", sp.Order)
	default:
		return string(sp.Kind)
	}
}

// Apply runs the transform on s. KindRaw returns s unchanged.
func (sp Spec) Apply(s *timeseries.Series) (*timeseries.Series, error) {
	switch sp.Kind {
	case KindRaw:
		return s, nil
	case KindDetrend:
		return Detrend(s, sp.Window)
	case KindDiff:
		return Difference(s, sp.Order)
	case KindLogReturn:
		return LogReturn(s)
	default:
		return nil, fmt.Errorf("transform: unknown kind %q", sp.Kind)
	}
}
