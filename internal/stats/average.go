package stats

import "math"

// NextMean folds value into a running mean. count is the number of values
// seen including this one, so the first call passes count=1 and returns value.
func NextMean(mean, value float64, count int) float64 {
	return mean + (value-mean)/float64(count)
}

// roundToUint rounds a mean of unsigned counts to the nearest integer.
func roundToUint(v float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(math.Round(v))
}

// meanAcc is a running mean over the values that were actually present.
type meanAcc struct {
	mean  float64
	count int
}

func (m *meanAcc) add(value float64) {
	m.count++
	m.mean = NextMean(m.mean, value, m.count)
}

func (m *meanAcc) present() bool {
	return m.count > 0
}

// vectorMeanAcc averages lists element-wise. When a longer list arrives the
// running vector is grown with zero-initialized slots before merging, so a
// core that appears mid-batch is biased toward zero. This is a known lossy
// policy for platforms that misreport core counts.
type vectorMeanAcc struct {
	mean  []float64
	count int
}

func (v *vectorMeanAcc) add(values []float64) {
	v.count++
	for len(v.mean) < len(values) {
		v.mean = append(v.mean, 0)
	}
	for i, value := range values {
		v.mean[i] = NextMean(v.mean[i], value, v.count)
	}
}

func (v *vectorMeanAcc) present() bool {
	return v.count > 0
}
