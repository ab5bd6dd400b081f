package sample

import (
	"log"
	"time"

	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/telemetry"
)

// Sample represents a processed telemetry reading with physical values.
type Sample struct {
	Timestamp  time.Time
	Weight     float64 // Weight on the scale (g)
	Mode       int     // Active mode (0-2 presets, 3 manual)
	Threshold  float64 // Stop threshold of the active mode (g), -1 for manual
	Dispensing bool    // Relay state
}

// Converter is a function type that converts a Reading channel to a Sample channel.
type Converter func(in <-chan telemetry.Reading) <-chan Sample

// NewConverter creates a converter function that transforms Reading to Sample.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan telemetry.Reading) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for raw := range in {
				sample, err := convertReading(raw, cfg)
				if err != nil {
					log.Printf("Failed to convert reading: %v", err)
					continue
				}

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertReading converts a Reading to Sample using configuration.
func convertReading(raw telemetry.Reading, cfg *config.Config) (Sample, error) {
	weight := countsToGrams(raw.Weight, cfg.Scale.CountsPerGram)

	// The manual mode sentinel survives conversion unscaled so downstream
	// consumers can still tell it apart from a real near-zero threshold.
	threshold := float64(telemetry.UncalibratedThreshold)
	if raw.Threshold != telemetry.UncalibratedThreshold {
		threshold = countsToGrams(raw.Threshold, cfg.Scale.CountsPerGram)
	}

	return Sample{
		Timestamp:  raw.Timestamp,
		Weight:     weight,
		Mode:       raw.Mode,
		Threshold:  threshold,
		Dispensing: raw.Dispensing,
	}, nil
}

// countsToGrams converts raw load cell counts to grams.
func countsToGrams(counts int32, countsPerGram float64) float64 {
	if countsPerGram == 0 {
		return 0
	}
	return float64(counts) / countsPerGram
}
