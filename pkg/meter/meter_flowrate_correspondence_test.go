package meter

import (
	"testing"
	"time"

	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/sample"
	"github.com/stretchr/testify/assert"
)

// TestFlowRateCorrespondence verifies that flow rates correspond exactly to sample pairs.
// flowRate[i] = (weight[i+1] - weight[i]) / dt
func TestFlowRateCorrespondence(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	// Create samples with known weights
	samples := []sample.Sample{
		{Timestamp: now, Weight: 500.0},
		{Timestamp: now.Add(dt), Weight: 505.0},     // +5 g in 0.1s = 50 g/s
		{Timestamp: now.Add(2 * dt), Weight: 510.0}, // +5 g in 0.1s = 50 g/s
		{Timestamp: now.Add(3 * dt), Weight: 515.0}, // +5 g in 0.1s = 50 g/s
	}

	for _, s := range samples {
		m.processSample(s)
	}

	// Verify we have n-1 flow rates for n samples
	resultSamples := m.Samples()
	resultRates := m.FlowRates()
	assert.Equal(t, len(resultSamples)-1, len(resultRates), "Should have n-1 flow rates for n samples")

	// Verify flow rate values correspond to sample pairs
	// flowRate[0] should be (sample[1] - sample[0]) / dt
	expectedRate0 := (resultSamples[1].Weight - resultSamples[0].Weight) / resultSamples[1].Timestamp.Sub(resultSamples[0].Timestamp).Seconds()
	assert.InDelta(t, expectedRate0, resultRates[0], 0.01, "flowRate[0] should correspond to (sample[1]-sample[0])/dt")

	// flowRate[1] should be (sample[2] - sample[1]) / dt
	expectedRate1 := (resultSamples[2].Weight - resultSamples[1].Weight) / resultSamples[2].Timestamp.Sub(resultSamples[1].Timestamp).Seconds()
	assert.InDelta(t, expectedRate1, resultRates[1], 0.01, "flowRate[1] should correspond to (sample[2]-sample[1])/dt")
}

// TestTimestampBasedRemoval verifies that samples are removed based on timestamp, not count.
func TestTimestampBasedRemoval(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 1.0 // 1 second window
	m := New(cfg)

	now := time.Now()

	// Add samples at different times
	// Sample at t=0s (will be removed when we add sample at t=1.5s)
	s1 := sample.Sample{Timestamp: now, Weight: 500.0}
	m.processSample(s1)

	// Sample at t=0.5s (will be kept when we add sample at t=1.5s)
	s2 := sample.Sample{Timestamp: now.Add(500 * time.Millisecond), Weight: 505.0}
	m.processSample(s2)

	// Sample at t=1.5s (outside window from s1's perspective, but within window from s2's)
	s3 := sample.Sample{Timestamp: now.Add(1500 * time.Millisecond), Weight: 510.0}
	m.processSample(s3)

	// Verify s1 was removed (outside 1s window from s3)
	resultSamples := m.Samples()
	assert.LessOrEqual(t, len(resultSamples), 2, "Should remove samples outside time window")

	// Verify s2 and s3 are still present
	if len(resultSamples) >= 2 {
		assert.True(t, resultSamples[0].Timestamp.Equal(s2.Timestamp) || resultSamples[0].Timestamp.After(s2.Timestamp), "First sample should be s2 or later")
	}

	// Verify flow rates correspond correctly after removal
	resultRates := m.FlowRates()
	assert.Equal(t, len(resultSamples)-1, len(resultRates), "Flow rates should still correspond exactly after timestamp-based removal")
}

// TestFlowRateCorrespondenceAfterRemoval verifies flow rates remain correct after sample removal.
func TestFlowRateCorrespondenceAfterRemoval(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 2.0 // 2 second window
	m := New(cfg)

	now := time.Now()
	dt := 200 * time.Millisecond

	// Create 5 samples
	for i := 0; i < 5; i++ {
		s := sample.Sample{
			Timestamp: now.Add(time.Duration(i) * dt),
			Weight:    500.0 + float64(i)*5,
		}
		m.processSample(s)
	}

	// Verify initial correspondence: 5 samples = 4 flow rates
	samples1 := m.Samples()
	rates1 := m.FlowRates()
	assert.Equal(t, 5, len(samples1))
	assert.Equal(t, 4, len(rates1), "Should have 4 flow rates for 5 samples")

	// Add a sample that will cause removal of first 2 samples (outside 2s window)
	// First sample is at t=0, new sample at t=2.5s, so samples before t=0.5s are removed
	s6 := sample.Sample{
		Timestamp: now.Add(2500 * time.Millisecond),
		Weight:    530.0,
	}
	m.processSample(s6)

	// Verify samples were removed based on timestamp
	samples2 := m.Samples()
	rates2 := m.FlowRates()

	// Should have fewer samples now
	assert.Less(t, len(samples2), len(samples1), "Should have removed some samples")

	// Flow rates should still correspond exactly: n samples = n-1 rates
	assert.Equal(t, len(samples2)-1, len(rates2), "Flow rates should still correspond exactly after removal")

	// Verify flow rate values still correspond to correct sample pairs
	if len(rates2) > 0 && len(samples2) > 1 {
		expectedRate := (samples2[1].Weight - samples2[0].Weight) / samples2[1].Timestamp.Sub(samples2[0].Timestamp).Seconds()
		assert.InDelta(t, expectedRate, rates2[0], 0.01, "First flow rate should correspond to first sample pair after removal")
	}
}
