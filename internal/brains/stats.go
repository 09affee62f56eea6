package brains

import "math"

// tStatistic computes the pooled-standard-deviation two-sample t value.
// Returns 0 when either variant lacks data or variance.
func tStatistic(meanA, meanB, stdA, stdB float64, nA, nB int) float64 {
	if nA < 2 || nB < 2 {
		return 0
	}

	fa, fb := float64(nA), float64(nB)
	pooledVar := ((fa-1)*stdA*stdA + (fb-1)*stdB*stdB) / (fa + fb - 2)
	if pooledVar <= 0 {
		return 0
	}

	se := math.Sqrt(pooledVar * (1/fa + 1/fb))
	return (meanB - meanA) / se
}

// approxPValue buckets |t| into an approximate two-tailed p-value. This
// is a coarse lookup against the normal quantiles, good enough to gate
// winner declarations; it is not an exact t-test.
func approxPValue(t float64) float64 {
	abs := math.Abs(t)
	switch {
	case abs >= 3.29:
		return 0.001
	case abs >= 2.58:
		return 0.01
	case abs >= 1.96:
		return 0.04
	case abs >= 1.645:
		return 0.10
	default:
		return 0.50
	}
}

// lift is the relative effect of B over A.
func lift(meanA, meanB float64) float64 {
	if meanA == 0 {
		return 0
	}
	return (meanB - meanA) / math.Abs(meanA)
}
