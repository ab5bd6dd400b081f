package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/meter"
	"github.com/anishkk/gobfm/pkg/sample"
)

// ScopeWidget is a custom Fyne widget that displays oscilloscope-style fill graphs.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu         sync.RWMutex
	samples    []sample.Sample
	flowRates  []float64
	fills      []meter.Fill
	dispensing bool
	threshold  float64

	// Display buffers (reused for downsampling)
	displaySamples   []sample.Sample
	displayFlowRates []float64

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:              cfg,
		samples:          make([]sample.Sample, 0),
		flowRates:        make([]float64, 0),
		fills:            make([]meter.Fill, 0),
		threshold:        -1,
		displaySamples:   make([]sample.Sample, 0, 1000),
		displayFlowRates: make([]float64, 0, 1000),
		maxDisplayPoints: 1000, // Limit points for efficient rendering
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateData updates the widget with new measurement data.
// This should be called from the measurement callback using fyne.Do().
func (s *ScopeWidget) UpdateData(samples []sample.Sample, flowRates []float64, fills []meter.Fill) {
	s.mu.Lock()

	// Downsample for display (reuse buffers)
	s.displaySamples = sample.DownsampleSamples(s.displaySamples, samples, s.maxDisplayPoints)
	s.displayFlowRates = sample.DownsampleValues(s.displayFlowRates, flowRates, s.maxDisplayPoints)

	// Store full data
	s.samples = samples
	s.flowRates = flowRates
	s.fills = fills

	// The latest sample carries the machine state shown in the overlay
	s.dispensing = false
	s.threshold = -1
	if len(samples) > 0 {
		last := samples[len(samples)-1]
		s.dispensing = last.Dispensing
		s.threshold = last.Threshold
	}

	// Calculate auto-scaling
	s.updateAutoScale()

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// updateAutoScale calculates Y-axis range from current data.
func (s *ScopeWidget) updateAutoScale() {
	if len(s.displaySamples) == 0 {
		s.yMin = 0.0
		s.yMax = 1.0
		s.xMin = time.Now()
		s.xMax = time.Now().Add(10 * time.Second)
		return
	}

	// Find min/max for weights
	s.yMin = s.displaySamples[0].Weight
	s.yMax = s.displaySamples[0].Weight
	for _, smp := range s.displaySamples {
		if smp.Weight < s.yMin {
			s.yMin = smp.Weight
		}
		if smp.Weight > s.yMax {
			s.yMax = smp.Weight
		}
	}

	// The stop threshold must stay visible while a preset is active
	if s.threshold >= 0 {
		if s.threshold < s.yMin {
			s.yMin = s.threshold
		}
		if s.threshold > s.yMax {
			s.yMax = s.threshold
		}
	}

	// Add 10% margin
	range_ := s.yMax - s.yMin
	if range_ == 0 {
		range_ = 1.0
	}
	margin := range_ * 0.1
	s.yMin -= margin
	s.yMax += margin

	// Time range
	if len(s.displaySamples) > 0 {
		s.xMin = s.displaySamples[0].Timestamp
		s.xMax = s.displaySamples[len(s.displaySamples)-1].Timestamp
		// Ensure minimum window
		if s.xMax.Sub(s.xMin) < time.Duration(s.cfg.Measurement.WindowSeconds)*time.Second {
			s.xMax = s.xMin.Add(time.Duration(s.cfg.Measurement.WindowSeconds) * time.Second)
		}
	}
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
