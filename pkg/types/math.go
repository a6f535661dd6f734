package types

// SafeDivide divides num by den with the denominator floored at floor.
// A floor of 0 makes a zero denominator yield 0 instead of dividing; a
// positive floor (e.g. 0.01 for cost/benefit ratios) caps the result for
// near-zero denominators.
func SafeDivide(num, den, floor float64) float64 {
	if den < floor {
		den = floor
	}
	if den == 0 {
		return 0
	}
	return num / den
}
