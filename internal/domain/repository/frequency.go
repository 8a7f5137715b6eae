package repository

// Frequency is the sampling period of an output table.
type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// IsValidFrequency returns true if f is a supported frequency.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case Weekly, Monthly:
		return true
	default:
		return false
	}
}

// DefaultFrequency returns the default frequency.
func DefaultFrequency() Frequency { return Weekly }

// NormalizeFrequency converts raw string to a valid frequency (or default).
func NormalizeFrequency(s string) Frequency {
	if s == "" {
		return DefaultFrequency()
	}
	f := Frequency(s)
	if IsValidFrequency(f) {
		return f
	}
	return DefaultFrequency()
}

// YearLookback returns the number of periods that make up roughly one year.
func (f Frequency) YearLookback() int {
	if f == Monthly {
		return 12
	}
	return 52
}
