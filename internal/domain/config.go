package domain

// VectorConfig describes the encoder the served index was built with.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the defaults of the COVID-SciBERT mean-pooled encoder.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "lordtt13/COVID-SciBERT",
		Dimensions:     768,
		DistanceMetric: "angular",
		Algorithm:      "rp-forest",
	}
}
