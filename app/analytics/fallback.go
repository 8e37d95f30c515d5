package analytics

// Static industry CTR-by-position curve used when neither click data nor the
// extrapolation model covers a rank. Values decrease monotonically; ranks
// 50-100 repeat halved values in decade bands.
var fallbackCurve = map[int]float64{
	1: 0.2840, 2: 0.1470, 3: 0.0940, 4: 0.0640, 5: 0.0490,
	6: 0.0370, 7: 0.0290, 8: 0.0230, 9: 0.0190, 10: 0.0160,
	11: 0.0140, 12: 0.0120, 13: 0.0110, 14: 0.0100, 15: 0.0090,
	16: 0.0085, 17: 0.0080, 18: 0.0075, 19: 0.0070, 20: 0.0065,
}

// FallbackCTR returns the static curve value for a rank in [1,100].
func FallbackCTR(rank int) float64 {
	if rank < 1 {
		return 0
	}
	if v, ok := fallbackCurve[rank]; ok {
		return v
	}

	switch {
	case rank <= 30:
		return 0.0060
	case rank <= 40:
		return 0.0045
	case rank <= 49:
		return 0.0035
	case rank <= 59:
		return 0.0016
	case rank <= 69:
		return 0.0008
	case rank <= 79:
		return 0.0004
	case rank <= 89:
		return 0.0002
	case rank <= 100:
		return 0.0001
	default:
		return 0.0001
	}
}
