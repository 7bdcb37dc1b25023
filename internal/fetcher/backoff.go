package fetcher

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy decides how long the engine waits after a rate-limited fetch.
// attempt counts consecutive rate-limited fetches and starts at 1; hint is
// the server's own backoff hint, zero when absent.
type Policy interface {
	Delay(attempt int, hint time.Duration) time.Duration
}

// Policy names accepted by NewPolicy
const (
	PolicyConstant    = "constant"
	PolicyExponential = "exponential"
	PolicyJittered    = "jittered"
)

// Constant waits the same duration every time, or the hint if it is longer
type Constant struct {
	Wait time.Duration
}

func (c Constant) Delay(_ int, hint time.Duration) time.Duration {
	return max(c.Wait, hint)
}

// Exponential waits Base * Factor^(attempt-1) capped at Max when Max > 0.
// A longer hint from the server wins over the cap.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

func (e Exponential) Delay(attempt int, hint time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := e.Factor
	if factor < 1 {
		factor = 2
	}

	d := float64(e.Base) * math.Pow(factor, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	delay := time.Duration(math.MaxInt64)
	if d < float64(math.MaxInt64) {
		delay = time.Duration(d)
	}

	return max(delay, hint)
}

// Jittered adds up to Ratio of extra random delay on top of Policy, then
// caps the result at Max when Max > 0. The hint still wins over the cap.
type Jittered struct {
	Policy Policy
	Ratio  float64
	Max    time.Duration
	// Rand returns a value in [0, 1); nil uses math/rand/v2
	Rand func() float64
}

func (j Jittered) Delay(attempt int, hint time.Duration) time.Duration {
	d := j.Policy.Delay(attempt, 0)
	rnd := j.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	extra := time.Duration(float64(d) * j.Ratio * rnd())
	if d > time.Duration(math.MaxInt64)-extra {
		d = time.Duration(math.MaxInt64)
	} else {
		d += extra
	}
	if j.Max > 0 && d > j.Max {
		d = j.Max
	}
	return max(d, hint)
}

// NewPolicy builds a policy by name. base is the first wait, maxWait caps
// the exponential growth.
func NewPolicy(name string, base, maxWait time.Duration) (Policy, error) {
	switch name {
	case PolicyConstant:
		return Constant{Wait: base}, nil
	case PolicyExponential, "":
		return Exponential{Base: base, Max: maxWait, Factor: 2}, nil
	case PolicyJittered:
		return Jittered{Policy: Exponential{Base: base, Max: maxWait, Factor: 2}, Ratio: 0.2, Max: maxWait}, nil
	default:
		return nil, fmt.Errorf("unknown backoff policy %q", name)
	}
}
