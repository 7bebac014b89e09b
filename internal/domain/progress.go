package domain

// ProgressFunc receives a completion fraction in [0,1] and a status message.
// A nil ProgressFunc discards reports.
type ProgressFunc func(fraction float64, message string)

// Report forwards a clamped fraction.
func (p ProgressFunc) Report(fraction float64, message string) {
	if p == nil {
		return
	}
	p(clamp01(fraction), message)
}

// Stage maps [0,1] of a sub-task onto [lo,hi] of p.
func (p ProgressFunc) Stage(lo, hi float64) ProgressFunc {
	if p == nil {
		return nil
	}
	lo, hi = clamp01(lo), clamp01(hi)
	if hi < lo {
		hi = lo
	}
	return func(fraction float64, message string) {
		p(lo+(hi-lo)*clamp01(fraction), message)
	}
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
