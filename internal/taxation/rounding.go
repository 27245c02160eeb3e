package taxation

// RoundToSmallestFraction rounds value to the nearest multiple of the
// currency's smallest cash denomination (for example 0.05), then to the given
// precision. A zero fraction rounds to the nearest whole unit, matching the
// default rounded-total behavior.
func RoundToSmallestFraction(value, fraction float64, places int) float64 {
	if fraction > 0 {
		return flt(flt(value/fraction, 0)*fraction, places)
	}
	return flt(value, 0)
}
