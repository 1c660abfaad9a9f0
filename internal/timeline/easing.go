package timeline

import "math"

// Easing functions map [0,1] progress fraction to [0,1] eased fraction, in
// the style of internal/sequence/envelope.go's easeApply — small pure
// functions keyed by name at the config-parsing edge, not a class
// hierarchy. Formulas follow the standard Penner/easings.net set the spec
// names explicitly; none of them are applied to Shifting (§4.4).
const (
	backOvershoot = 1.70158
)

func Linear(t float64) float64 { return t }

func EaseInBack(t float64) float64 {
	c1 := backOvershoot
	c3 := c1 + 1
	return c3*t*t*t - c1*t*t
}

func EaseOutBack(t float64) float64 {
	c1 := backOvershoot
	c3 := c1 + 1
	u := t - 1
	return 1 + c3*u*u*u + c1*u*u
}

func EaseInOutBack(t float64) float64 {
	c1 := backOvershoot
	c2 := c1 * 1.525
	if t < 0.5 {
		return (math.Pow(2*t, 2) * ((c2+1)*2*t - c2)) / 2
	}
	u := 2*t - 2
	return (math.Pow(u, 2)*((c2+1)*(t*2-2)+c2) + 2) / 2
}

func EaseInElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	c4 := (2 * math.Pi) / 3
	return -math.Pow(2, 10*t-10) * math.Sin((t*10-10.75)*c4)
}

func EaseOutElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	c4 := (2 * math.Pi) / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

func EaseInOutElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	c5 := (2 * math.Pi) / 4.5
	if t < 0.5 {
		return -(math.Pow(2, 20*t-10) * math.Sin((20*t-11.125)*c5)) / 2
	}
	return (math.Pow(2, -20*t+10)*math.Sin((20*t-11.125)*c5))/2 + 1
}

func EaseOutBounce(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

func EaseInBounce(t float64) float64 {
	return 1 - EaseOutBounce(1-t)
}

func EaseInOutBounce(t float64) float64 {
	if t < 0.5 {
		return (1 - EaseOutBounce(1-2*t)) / 2
	}
	return (1 + EaseOutBounce(2*t-1)) / 2
}

// Named looks up an easing function by its configuration name. It is the
// dispatch-by-string-at-the-edge point the spec's design notes ask for in
// place of a runtime class registry — everything past this lookup is a
// plain function value.
func Named(name string) (EaseFunc, bool) {
	switch name {
	case "", "linear":
		return Linear, true
	case "easeInBack":
		return EaseInBack, true
	case "easeOutBack":
		return EaseOutBack, true
	case "easeInOutBack":
		return EaseInOutBack, true
	case "easeInElastic":
		return EaseInElastic, true
	case "easeOutElastic":
		return EaseOutElastic, true
	case "easeInOutElastic":
		return EaseInOutElastic, true
	case "easeInBounce":
		return EaseInBounce, true
	case "easeOutBounce":
		return EaseOutBounce, true
	case "easeInOutBounce":
		return EaseInOutBounce, true
	default:
		return nil, false
	}
}
