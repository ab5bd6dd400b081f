package sample

import (
	"log"
	"time"

	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/telemetry"
)

// NewAveragingConverter creates a converter that averages N consecutive Readings
// and converts them to Samples. This reduces noise in the measurements.
func NewAveragingConverter(cfg *config.Config, windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan telemetry.Reading) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var buffer []telemetry.Reading
			ticker := time.NewTicker(100 * time.Millisecond) // Output rate
			defer ticker.Stop()

			for {
				select {
				case raw, ok := <-in:
					if !ok {
						// Input closed, output any remaining samples
						if len(buffer) > 0 {
							avg, err := averageAndConvertReadings(buffer, cfg)
							if err == nil {
								select {
								case out <- avg:
								default:
								}
							}
						}
						return
					}

					buffer = append(buffer, raw)
					if len(buffer) > windowSize {
						buffer = buffer[1:] // Remove oldest
					}

				case <-ticker.C:
					// Output averaged sample periodically
					if len(buffer) > 0 {
						avg, err := averageAndConvertReadings(buffer, cfg)
						if err == nil {
							select {
							case out <- avg:
							default:
								log.Printf("Averaging converter output channel full")
							}
						}
					}
				}
			}
		}()

		return out
	}
}

// averageAndConvertReadings averages a slice of Readings and converts to Sample.
// Uses the most recent reading's timestamp, mode, threshold, and relay state.
// Only the weight is averaged; the rest are machine state, not measurements.
func averageAndConvertReadings(readings []telemetry.Reading, cfg *config.Config) (Sample, error) {
	if len(readings) == 0 {
		return Sample{}, nil
	}

	var sumWeight int64
	lastReading := readings[len(readings)-1]

	for _, r := range readings {
		sumWeight += int64(r.Weight)
	}

	avgRaw := telemetry.Reading{
		Timestamp:  lastReading.Timestamp,
		Weight:     int32(sumWeight / int64(len(readings))),
		Mode:       lastReading.Mode,
		Threshold:  lastReading.Threshold,
		Dispensing: lastReading.Dispensing,
	}

	return convertReading(avgRaw, cfg)
}

// NewAveragingConverterForSamples creates an averaging converter that works on already-converted Samples.
// This is useful when you want to average after conversion.
func NewAveragingConverterForSamples(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var buffer []Sample
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case sample, ok := <-in:
					if !ok {
						if len(buffer) > 0 {
							avg := averageConvertedSamples(buffer)
							select {
							case out <- avg:
							default:
							}
						}
						return
					}

					buffer = append(buffer, sample)
					if len(buffer) > windowSize {
						buffer = buffer[1:]
					}

				case <-ticker.C:
					if len(buffer) > 0 {
						avg := averageConvertedSamples(buffer)
						select {
						case out <- avg:
						default:
							log.Printf("Averaging converter output channel full")
						}
					}
				}
			}
		}()

		return out
	}
}

// averageConvertedSamples averages a slice of converted Samples.
func averageConvertedSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var sumWeight float64
	lastSample := samples[len(samples)-1]

	for _, s := range samples {
		sumWeight += s.Weight
	}

	return Sample{
		Timestamp:  lastSample.Timestamp,
		Weight:     sumWeight / float64(len(samples)),
		Mode:       lastSample.Mode,
		Threshold:  lastSample.Threshold,
		Dispensing: lastSample.Dispensing,
	}
}
