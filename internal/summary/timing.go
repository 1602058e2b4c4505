package summary

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds in microseconds: 1µs to 1h, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = int64(time.Hour / time.Microsecond)
	histogramSigFigs = 3
)

// Timing holds step duration statistics.
type Timing struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
}

// NewTiming computes statistics over durations. It returns nil for none.
func NewTiming(durations []time.Duration) *Timing {
	if len(durations) == 0 {
		return nil
	}

	h := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	for _, d := range durations {
		us := d.Microseconds()
		if us < histogramMin {
			us = histogramMin
		}
		if us > histogramMax {
			us = histogramMax
		}
		_ = h.RecordValue(us)
	}

	micros := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return &Timing{
		Count: h.TotalCount(),
		Min:   micros(h.Min()),
		Max:   micros(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   micros(h.ValueAtQuantile(50)),
		P90:   micros(h.ValueAtQuantile(90)),
		P99:   micros(h.ValueAtQuantile(99)),
	}
}
