package stats

import (
	"math"
	"sort"
	"time"
	"warzone-tracker/internal/domain"
)

// The plotting frontend renders every player on the same fixed KD
// interval so charts compare at a glance.
var histogramGrid = []float64{
	0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0,
	1.1, 1.2, 1.3, 1.4, 1.5, 1.6,
}

type HistogramBin struct {
	KD    float64
	Count int
}

// Histogram counts matches per KD bin over the fixed grid; values
// outside the interval are dropped. A KD is rounded to the nearest
// bin first, so finer-precision values still count instead of
// falling between bins.
func Histogram(kds []float64) []HistogramBin {
	counts := make(map[int]int, len(kds))
	for _, kd := range kds {
		counts[int(math.Round(kd*10))]++
	}

	bins := make([]HistogramBin, len(histogramGrid))
	for i, kd := range histogramGrid {
		bins[i] = HistogramBin{KD: kd, Count: counts[int(math.Round(kd*10))]}
	}
	return bins
}

type DailyKD struct {
	Day time.Time
	KD  float64
	MA3 float64
	MA7 float64
}

// Days with fewer games than this are noise and excluded from the
// time series.
const minGamesPerDay = 3

// Daily groups matches by local day, averages each day's team KD and
// attaches 3- and 7-day moving averages (minimum period 1). Output is
// ordered oldest day first.
func Daily(rows domain.MatchRows) []DailyKD {
	type bucket struct {
		sum float64
		n   int
	}
	byDay := make(map[time.Time]*bucket)
	for _, r := range rows {
		t := time.Unix(r.Timestamp, 0)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		b, ok := byDay[day]
		if !ok {
			b = &bucket{}
			byDay[day] = b
		}
		b.sum += r.TeamKD
		b.n++
	}

	days := make([]time.Time, 0, len(byDay))
	for day, b := range byDay {
		if b.n >= minGamesPerDay {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]DailyKD, len(days))
	kds := make([]float64, len(days))
	for i, day := range days {
		b := byDay[day]
		kds[i] = b.sum / float64(b.n)
		out[i] = DailyKD{Day: day, KD: kds[i]}
	}

	ma3 := rollingMean(kds, 3)
	ma7 := rollingMean(kds, 7)
	for i := range out {
		out[i].MA3 = ma3[i]
		out[i].MA7 = ma7[i]
	}
	return out
}

func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= vals[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Mean is the average team KD over the given matches, rounded to three
// decimals for the chart titles. Zero for an empty set.
func Mean(kds []float64) float64 {
	if len(kds) == 0 {
		return 0
	}
	var sum float64
	for _, kd := range kds {
		sum += kd
	}
	return math.Round(sum/float64(len(kds))*1000) / 1000
}
