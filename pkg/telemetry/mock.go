package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anishkk/gobfm/pkg/config"
	"github.com/chewxy/math32"
)

// Mock simulates a filling machine for testing and development. It runs an
// endless bottle cycle: wait for a bottle, dispense until the active preset
// threshold is reached, advance to the next preset, repeat.
type Mock struct {
	cfg *config.MockConfig

	readings  chan Reading
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	thresholds []int32

	// Simulation state
	startTime  time.Time
	lastFill   time.Time
	mode       int
	weight     float64 // Simulated raw counts
	dispensing bool
}

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// NewMock creates a new mocked machine instance. The simulated machine
// stops each fill at the given preset thresholds; pass nil to use the
// default calibration table.
func NewMock(cfg *config.MockConfig, thresholds []int32) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}
	if len(thresholds) == 0 {
		thresholds = config.Default().Machine.Thresholds
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:        cfg,
		readings:   make(chan Reading, DefaultBufferSize),
		ctx:        ctx,
		cancel:     cancel,
		connected:  false,
		thresholds: append([]int32(nil), thresholds...),
	}
}

// Connect simulates connecting to the machine.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	m.lastFill = m.startTime
	m.mode = 0
	m.weight = float64(m.cfg.TareWeight)
	m.dispensing = false

	// Start generating readings
	go m.generateReadings()

	return nil
}

// Close stops the mocked machine.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	close(m.readings)

	return nil
}

// Readings returns the channel for reading telemetry.
func (m *Mock) Readings() <-chan Reading {
	return m.readings
}

// IsConnected returns whether the machine is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateReadings generates simulated telemetry.
func (m *Mock) generateReadings() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			reading := m.generateReading()
			select {
			case m.readings <- reading:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// generateReading advances the bottle cycle by one sample period.
func (m *Mock) generateReading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.startTime)
	threshold := m.threshold()

	if m.dispensing {
		// Weight ramps while the valve is open
		dt := m.cfg.SampleRate.Seconds()
		m.weight += m.cfg.FlowRate * dt

		if int32(m.weight) >= threshold {
			// Bottle full: close the valve and move to the next preset
			m.dispensing = false
			m.lastFill = now
			m.mode = (m.mode + 1) % len(m.thresholds)
		}
	} else if now.Sub(m.lastFill) >= m.cfg.RefillDelay {
		// Fresh empty bottle placed on the scale
		m.weight = float64(m.cfg.TareWeight)
		m.dispensing = true
	}

	// Sensor noise
	phase := float32(elapsed.Seconds())
	noise := float64(math32.Sin(phase*997)+math32.Cos(phase*1301)) *
		m.cfg.NoiseLevel * 0.5

	return Reading{
		Timestamp:  now,
		Weight:     int32(m.weight + noise),
		Mode:       m.mode,
		Threshold:  threshold,
		Dispensing: m.dispensing,
	}
}

// threshold returns the stop threshold of the active mode. Callers must hold mu.
func (m *Mock) threshold() int32 {
	if m.mode >= len(m.thresholds) {
		return UncalibratedThreshold
	}
	return m.thresholds[m.mode]
}
