package features

// Value is a float64 that may be undefined. Rolling statistics are
// undefined until their window fills, and ratios are undefined when the
// denominator is zero; both states must stay distinguishable from a
// genuine zero reading, so no NaN sentinel is used anywhere.
type Value struct {
	V       float64
	Defined bool
}

// Defined wraps v as a defined Value.
func Defined(v float64) Value {
	return Value{V: v, Defined: true}
}

// Undefined returns the undefined Value.
func Undefined() Value {
	return Value{}
}
