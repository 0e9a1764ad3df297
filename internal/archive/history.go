// Package archive emulates the historical side of a monitoring system:
// a backfilled store of per-sensor readings with minute/hour/day
// querying, a generated event journal with acknowledgement, and CSV
// export. Everything is synthesized at startup and held in memory.
package archive

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// ErrUnknownSensor is returned for queries against sensors that were
// never generated.
var ErrUnknownSensor = errors.New("unknown sensor")

// DataPoint is one archived reading.
type DataPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Status      string    `json:"status"`
}

// Aggregate summarizes one quantity over a bucket.
type Aggregate struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bucket is one hour or day of aggregated readings.
type Bucket struct {
	Period      string    `json:"period"`
	Temperature Aggregate `json:"temperature"`
	Humidity    Aggregate `json:"humidity"`
	SampleCount int       `json:"sample_count"`
}

// History holds the generated per-sensor time series, ascending by
// timestamp. Built once and read-only afterwards.
type History struct {
	points map[int][]DataPoint
}

// GenerateHistory backfills cfg.HistoryDays of readings per sensor
// ending at now. The temperature follows a diurnal sinusoid peaking
// around noon; humidity moves inversely. Random gaps simulate the
// collector being down.
func GenerateHistory(cfg Config, now time.Time, rng *rand.Rand) *History {
	h := &History{points: make(map[int][]DataPoint, cfg.SensorCount)}
	step := time.Duration(cfg.DataResolutionMS) * time.Millisecond
	start := now.Add(-time.Duration(cfg.HistoryDays) * 24 * time.Hour)

	for id := 1; id <= cfg.SensorCount; id++ {
		bias := float64(id-1) * 0.5
		var series []DataPoint
		var gapUntil time.Time

		for ts := start; !ts.After(now); ts = ts.Add(step) {
			if ts.Before(gapUntil) {
				continue
			}
			if cfg.Gaps.Probability > 0 && rng.Float64() < cfg.Gaps.Probability {
				minutes := 1 + rng.Intn(cfg.Gaps.MaxDurationMin)
				gapUntil = ts.Add(time.Duration(minutes) * time.Minute)
				continue
			}

			hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
			factor := math.Sin((hour - 6) * math.Pi / 12)

			temp := cfg.TempBase + cfg.TempDailyAmplitude*factor + bias
			temp += -cfg.TempNoise + rng.Float64()*2*cfg.TempNoise
			hum := cfg.HumBase - cfg.HumDailyAmplitude*factor
			hum += -cfg.HumNoise + rng.Float64()*2*cfg.HumNoise

			series = append(series, DataPoint{
				Timestamp:   ts,
				Temperature: round1(clamp(temp, -40, 85)),
				Humidity:    round1(clamp(hum, 0, 100)),
				Status:      "normal",
			})
		}
		h.points[id] = series
	}
	return h
}

// Query returns the raw points for a sensor inside [from, to].
func (h *History) Query(sensorID int, from, to time.Time) ([]DataPoint, error) {
	series, ok := h.points[sensorID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensor, sensorID)
	}
	lo := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(from) })
	hi := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(to) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]DataPoint, hi-lo)
	copy(out, series[lo:hi])
	return out, nil
}

// Sensors lists the sensor ids present in the history.
func (h *History) Sensors() []int {
	ids := make([]int, 0, len(h.points))
	for id := range h.points {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// AggregateBuckets groups points into hour or day buckets with
// avg/min/max per quantity. Points must be ascending; bucket order
// follows the input.
func AggregateBuckets(points []DataPoint, resolution string) []Bucket {
	layout := "2006-01-02 15:00"
	if resolution == ResolutionDay {
		layout = "2006-01-02"
	}

	var buckets []Bucket
	index := make(map[string]int)
	type acc struct {
		tempSum, humSum float64
	}
	accs := make(map[string]*acc)

	for _, p := range points {
		key := p.Timestamp.Format(layout)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{
				Period:      key,
				Temperature: Aggregate{Min: p.Temperature, Max: p.Temperature},
				Humidity:    Aggregate{Min: p.Humidity, Max: p.Humidity},
			})
			accs[key] = &acc{}
		}
		b := &buckets[i]
		a := accs[key]
		a.tempSum += p.Temperature
		a.humSum += p.Humidity
		b.SampleCount++
		if p.Temperature < b.Temperature.Min {
			b.Temperature.Min = p.Temperature
		}
		if p.Temperature > b.Temperature.Max {
			b.Temperature.Max = p.Temperature
		}
		if p.Humidity < b.Humidity.Min {
			b.Humidity.Min = p.Humidity
		}
		if p.Humidity > b.Humidity.Max {
			b.Humidity.Max = p.Humidity
		}
	}

	for i := range buckets {
		b := &buckets[i]
		a := accs[b.Period]
		b.Temperature.Avg = round1(a.tempSum / float64(b.SampleCount))
		b.Humidity.Avg = round1(a.humSum / float64(b.SampleCount))
	}
	return buckets
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
