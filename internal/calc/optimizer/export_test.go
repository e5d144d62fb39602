package optimizer

// Test-only bridges into unexported state.

var Bisect = bisect

// SetBaseline overrides the captured baseline compliance and volume.
func SetBaseline(o *Optimizer, c0, v0 float64) { o.c0, o.v0 = c0, v0 }
