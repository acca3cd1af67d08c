package memory

// Params defines the bounds and constants of the memory model and the
// review decision policy.
type Params struct {
	// Stability clamp, in days
	MinStability float64
	MaxStability float64

	// Calibration factor clamp and the performance level at which it is neutral
	MinCalibration       float64
	MaxCalibration       float64
	ReferencePerformance float64

	// Decision policy
	DefaultThreshold  float64
	SuccessMultiplier float64
	FailureMultiplier float64
	MinIntervalDays   float64
	MaxIntervalDays   float64
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero fields keep their defaults.
type ParamsConfig struct {
	MinStability         float64
	MaxStability         float64
	MinCalibration       float64
	MaxCalibration       float64
	ReferencePerformance float64
	DefaultThreshold     float64
	SuccessMultiplier    float64
	FailureMultiplier    float64
	MinIntervalDays      float64
	MaxIntervalDays      float64
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinStability: 0.1,
		MaxStability: 365,

		MinCalibration:       0.1,
		MaxCalibration:       3.0,
		ReferencePerformance: 0.7,

		DefaultThreshold:  0.3,
		SuccessMultiplier: 1.3,
		FailureMultiplier: 0.5,
		MinIntervalDays:   0.5,
		MaxIntervalDays:   365,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	override := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}

	override(&params.MinStability, config.MinStability)
	override(&params.MaxStability, config.MaxStability)
	override(&params.MinCalibration, config.MinCalibration)
	override(&params.MaxCalibration, config.MaxCalibration)
	override(&params.ReferencePerformance, config.ReferencePerformance)
	override(&params.DefaultThreshold, config.DefaultThreshold)
	override(&params.SuccessMultiplier, config.SuccessMultiplier)
	override(&params.FailureMultiplier, config.FailureMultiplier)
	override(&params.MinIntervalDays, config.MinIntervalDays)
	override(&params.MaxIntervalDays, config.MaxIntervalDays)

	return params
}
