package meter

import (
	"sync"
	"time"

	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/sample"
)

var _ FillMeter = (*Meter)(nil)

// Fill represents a detected dispense cycle.
type Fill struct {
	StartIndex  int       // Start sample index in buffer
	EndIndex    int       // End sample index in buffer (updated as fill continues)
	StartTime   time.Time // Start timestamp
	EndTime     time.Time // End timestamp (updated as fill continues)
	StartWeight float64   // Weight when the valve opened (g)
	EndWeight   float64   // Latest weight (g, updated as fill continues)
	Delivered   float64   // Weight delivered so far (g)
	Complete    bool      // Valve has closed
}

// FillMeter processes samples, maintains buffers, and detects dispense cycles.
type FillMeter interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                               // Get current raw samples buffer (FIFO, ordered first to last)
	FlowRates() []float64                                                   // Get flow rates (corresponds to Samples, n-1 rates for n samples)
	Fills() []Fill                                                          // Get detected fills within window
	OnUpdate(func(samples []sample.Sample, flowRates []float64, fills []Fill)) // Register callback for updates
}

// Meter implements FillMeter interface.
// Internally uses FIFO buffers (can be implemented as ring buffers for efficiency).
// Externally exposes ordered slices (first sample/rate first, latest last).
type Meter struct {
	cfg *config.Config

	// Buffers
	// Both samples and flow rates are FIFO buffers that maintain order:
	// - First sample/rate is at index 0 (oldest)
	// - Latest sample/rate is at the end (newest)
	// Removal is based on timestamp (time window), not number of samples.
	//
	// Flow rates correspond exactly to sample pairs:
	// - flowRate[i] = (weight[i+1] - weight[i]) / dt
	// - If we have n samples, we have n-1 flow rates
	samples   []sample.Sample // FIFO buffer of raw samples (ordered first to last, removed by timestamp)
	flowRates []float64       // FIFO buffer of flow rates (n-1 rates for n samples, exactly corresponds to sample pairs)
	fills     []Fill          // Detected fills

	// Thread safety
	mu sync.RWMutex

	// Update callbacks
	// Callbacks receive current samples, flow rates, and fills directly
	callbacks []func(samples []sample.Sample, flowRates []float64, fills []Fill)
	cbMu      sync.RWMutex

	// Configuration
	windowDuration  time.Duration
	minFillDuration time.Duration

	// Shutdown control
	shutdown bool // Set to true when input channel closes, prevents further callbacks
}

// New creates a new FillMeter instance.
// Returns concrete type (*Meter) following Go best practices.
func New(cfg *config.Config) *Meter {
	m := &Meter{
		cfg:             cfg,
		samples:         make([]sample.Sample, 0),
		flowRates:       make([]float64, 0),
		fills:           make([]Fill, 0),
		callbacks:       make([]func(samples []sample.Sample, flowRates []float64, fills []Fill), 0),
		windowDuration:  time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		minFillDuration: time.Duration(cfg.Measurement.MinFillDuration * float64(time.Second)),
		shutdown:        false,
	}

	return m
}

// ProcessSamples processes samples from the input channel in a goroutine.
// When the input channel closes, it sets shutdown flag to prevent further callbacks.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	// Channel closed - mark as shutdown to prevent further callbacks
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a sample to the buffer, updates flow rates, and detects fills.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	// Add sample to FIFO buffer
	m.samples = append(m.samples, s)

	// Remove samples outside time window (based on timestamp, not count)
	cutoffTime := s.Timestamp.Add(-m.windowDuration)
	cutoffIndex := 0
	for i, smp := range m.samples {
		if smp.Timestamp.After(cutoffTime) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		// Remove samples before cutoffIndex (they're outside the time window)
		m.samples = m.samples[cutoffIndex:]

		// Remove corresponding flow rates to keep exact correspondence:
		// rates for pairs involving removed samples go with them
		if cutoffIndex <= len(m.flowRates) {
			m.flowRates = m.flowRates[cutoffIndex:]
		} else {
			m.flowRates = m.flowRates[:0]
		}
		// Adjust fill indices
		for i := range m.fills {
			m.fills[i].StartIndex -= cutoffIndex
			m.fills[i].EndIndex -= cutoffIndex
		}
		// Remove fills that slid entirely out of the buffer
		validFills := make([]Fill, 0)
		for _, fill := range m.fills {
			if fill.EndIndex >= 0 {
				if fill.StartIndex < 0 {
					fill.StartIndex = 0
				}
				validFills = append(validFills, fill)
			}
		}
		m.fills = validFills
	}

	// Update flow rates (need at least 2 samples)
	// flowRate[i] corresponds exactly to the change from sample[i] to sample[i+1]
	if len(m.samples) >= 2 {
		lastIdx := len(m.samples) - 1
		prev := m.samples[lastIdx-1]
		curr := m.samples[lastIdx]

		dt := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt > 0 {
			rate := (curr.Weight - prev.Weight) / dt
			m.flowRates = append(m.flowRates, rate)

			// Ensure exact correspondence: n samples = n-1 rates
			if len(m.flowRates) > len(m.samples)-1 {
				m.flowRates = m.flowRates[1:]
			}
		}
	}

	// Detect and update fills
	m.updateFills()

	// Check shutdown flag (must do this while holding lock)
	shouldNotify := !m.shutdown

	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// updateFills tracks dispense cycles based on the relay state of the latest sample.
func (m *Meter) updateFills() {
	lastIdx := len(m.samples) - 1
	curr := m.samples[lastIdx]

	// An active fill is the last one not yet complete
	activeIdx := -1
	if len(m.fills) > 0 && !m.fills[len(m.fills)-1].Complete {
		activeIdx = len(m.fills) - 1
	}

	switch {
	case curr.Dispensing && activeIdx < 0:
		// Valve just opened: start a new fill
		m.fills = append(m.fills, Fill{
			StartIndex:  lastIdx,
			EndIndex:    lastIdx,
			StartTime:   curr.Timestamp,
			EndTime:     curr.Timestamp,
			StartWeight: curr.Weight,
			EndWeight:   curr.Weight,
		})

	case curr.Dispensing && activeIdx >= 0:
		// Valve still open: extend the active fill
		fill := &m.fills[activeIdx]
		fill.EndIndex = lastIdx
		fill.EndTime = curr.Timestamp
		fill.EndWeight = curr.Weight
		fill.Delivered = fill.EndWeight - fill.StartWeight

	case !curr.Dispensing && activeIdx >= 0:
		// Valve closed: complete the fill
		fill := &m.fills[activeIdx]
		fill.Complete = true

		// Filter out completed fills shorter than minimum duration (relay chatter)
		if fill.EndTime.Sub(fill.StartTime) < m.minFillDuration {
			m.fills = m.fills[:activeIdx]
		}
	}
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// FlowRates returns a copy of the current flow rates buffer.
func (m *Meter) FlowRates() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.flowRates))
	copy(result, m.flowRates)
	return result
}

// Fills returns a copy of the current fills list.
func (m *Meter) Fills() []Fill {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Fill, len(m.fills))
	copy(result, m.fills)
	return result
}

// OnUpdate registers a callback function that will be called when samples are updated.
// The callback receives current samples, flow rates, and fills directly.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, flowRates []float64, fills []Fill)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown resets the shutdown flag, allowing callbacks to be sent again.
// This should be called before starting a new measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes all registered callbacks with current data.
// Makes copies of data while holding read lock, then calls callbacks without lock.
func (m *Meter) notifyCallbacks() {
	// Copy data while holding read lock
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	ratesCopy := make([]float64, len(m.flowRates))
	copy(ratesCopy, m.flowRates)
	fillsCopy := make([]Fill, len(m.fills))
	copy(fillsCopy, m.fills)
	m.mu.RUnlock()

	// Get callbacks (need read lock for callbacks slice)
	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, flowRates []float64, fills []Fill), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	// Invoke callbacks without holding any locks
	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, ratesCopy, fillsCopy)
		}
	}
}
