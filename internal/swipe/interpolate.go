package swipe

// Interpolate maps x through the piecewise-linear curve defined by the
// points (in[i], out[i]). in must be strictly increasing and at least two
// points long. x outside the input domain is clamped to the nearest end.
func Interpolate(x float64, in, out []float64) float64 {
	if len(in) < 2 || len(in) != len(out) {
		panic("swipe: interpolation needs at least two matching points")
	}

	if x <= in[0] {
		return out[0]
	}

	last := len(in) - 1
	if x >= in[last] {
		return out[last]
	}

	for i := 1; i <= last; i++ {
		if x > in[i] {
			continue
		}
		t := (x - in[i-1]) / (in[i] - in[i-1])
		return out[i-1] + t*(out[i]-out[i-1])
	}

	return out[last]
}
