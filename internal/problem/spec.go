package problem

import "math"

// Spec is the immutable description of one equation instance. All fields
// are data; the function fields are opaque callables invoked only through
// the bridge package.
type Spec struct {
	Kind Kind

	// U0 is the initial state; its length is the state dimension.
	U0 State
	// DU0 is the initial derivative, required for DAE problems.
	DU0 State
	// DifferentialVars marks, per component, whether the residual carries
	// derivative information for it (true) or the component is purely
	// algebraic (false). DAE only; length must equal the state dimension.
	DifferentialVars []bool

	// TSpan is the integration interval (t0, tf), t0 < tf.
	TSpan [2]float64

	// Params is passed through to user functions unmodified.
	Params []float64

	F        ODEFunc      // ODE and SDE drift
	FDelay   DDEFunc      // DDE dynamics
	Residual ResidualFunc // DAE residual
	G        NoiseFunc    // SDE diffusion

	// NoiseShape constrains the diffusion matrix; Rows must equal the
	// state dimension. SDE only.
	NoiseShape NoiseShape
	// Layout is the element order the user's diffusion function writes;
	// declared once per spec.
	Layout Layout

	// ConstantLags are the fixed delays of a DDE; all finite, non-negative.
	ConstantLags []float64
	// History supplies the state for t <= t0. DDE only.
	History HistoryFunc
}

func (s *Spec) StateDim() int { return len(s.U0) }

// Validate checks every structural invariant. It is called once during
// solver initialization; violations are fatal to the run and never coerced.
func (s *Spec) Validate() error {
	if len(s.U0) == 0 {
		return &SpecError{Field: "u0", Message: "empty initial state"}
	}
	if !s.U0.IsValid() {
		return &SpecError{Field: "u0", Message: "initial state contains NaN or Inf"}
	}
	if !(s.TSpan[0] < s.TSpan[1]) {
		return &SpecError{Field: "tspan", Message: "t0 must be strictly less than tf"}
	}
	if math.IsInf(s.TSpan[0], 0) || math.IsInf(s.TSpan[1], 0) {
		return &SpecError{Field: "tspan", Message: "tspan must be finite"}
	}

	switch s.Kind {
	case ODE:
		if s.F == nil {
			return &SpecError{Field: "f", Message: "ode problem requires a dynamics function"}
		}
	case DAE:
		if s.Residual == nil {
			return &SpecError{Field: "residual", Message: "dae problem requires a residual function"}
		}
		if len(s.DU0) != len(s.U0) {
			return &SpecError{Field: "du0", Message: "initial derivative length must equal state dimension"}
		}
		if len(s.DifferentialVars) != len(s.U0) {
			return &SpecError{Field: "differential_vars", Message: "mask length must equal state dimension"}
		}
	case SDE:
		if s.F == nil {
			return &SpecError{Field: "f", Message: "sde problem requires a drift function"}
		}
		if s.G == nil {
			return &SpecError{Field: "g", Message: "sde problem requires a diffusion function"}
		}
		if s.NoiseShape.Rows != len(s.U0) {
			return &SpecError{Field: "noise_rate_shape", Message: "noise rows must equal state dimension"}
		}
		if s.NoiseShape.Cols < 1 {
			return &SpecError{Field: "noise_rate_shape", Message: "at least one driving process required"}
		}
	case DDE:
		if s.FDelay == nil {
			return &SpecError{Field: "f", Message: "dde problem requires a delayed dynamics function"}
		}
		if s.History == nil {
			return &SpecError{Field: "history", Message: "dde problem requires a history function"}
		}
		if len(s.ConstantLags) == 0 {
			return &SpecError{Field: "constant_lags", Message: "dde problem requires at least one lag"}
		}
		for _, lag := range s.ConstantLags {
			if lag < 0 || math.IsNaN(lag) || math.IsInf(lag, 0) {
				return &SpecError{Field: "constant_lags", Message: "lags must be finite and non-negative"}
			}
		}
	default:
		return &SpecError{Field: "kind", Message: "unknown problem kind"}
	}
	return nil
}
