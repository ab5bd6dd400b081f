package fill

import (
	"strings"
	"sync"
	"time"
)

// Mock is a simulated bench rig: scripted buttons, a simulated scale, a
// recording panel and a 2x16 display buffer. Tests drive the controller
// with scripted input sequences instead of real time; the desktop bench
// drives it interactively with the flow simulation enabled.
type Mock struct {
	Scale    *MockScale
	Dispense *MockButton
	Mode     *MockButton
	Panel    *MockPanel
	Display  *MockDisplay
}

// NewMock creates a rig with all peripherals idle.
func NewMock() *Mock {
	panel := &MockPanel{}
	return &Mock{
		Scale:    &MockScale{panel: panel},
		Dispense: &MockButton{},
		Mode:     &MockButton{},
		Panel:    panel,
		Display:  NewMockDisplay(),
	}
}

// Hardware returns the rig as a controller Hardware bundle.
func (m *Mock) Hardware() Hardware {
	return Hardware{
		Scale:    m.Scale,
		Dispense: m.Dispense,
		Mode:     m.Mode,
		Panel:    m.Panel,
		Display:  m.Display,
	}
}

// MockButton is a momentary switch whose level is either scripted (one
// entry consumed per Pressed call, the last entry sticks once the script
// runs out) or set interactively with Press/Release.
type MockButton struct {
	mu     sync.Mutex
	script []bool
	pos    int
	level  bool
}

// Script replaces the pending level sequence.
func (b *MockButton) Script(levels ...bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = levels
	b.pos = 0
}

// Press holds the button down until Release.
func (b *MockButton) Press() { b.set(true) }

// Release lets go of the button.
func (b *MockButton) Release() { b.set(false) }

func (b *MockButton) set(level bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = nil
	b.level = level
}

// Pressed consumes the next scripted level, or reports the interactive
// level when no script is pending.
func (b *MockButton) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos < len(b.script) {
		b.level = b.script[b.pos]
		b.pos++
	}
	return b.level
}

// MockScale produces either scripted readings (one per Read, the last one
// sticks) or a flow simulation: while the rig's relay is on, the value
// ramps at FlowRate counts per second of wall time.
type MockScale struct {
	mu     sync.Mutex
	panel  *MockPanel
	script []int32
	pos    int
	value  int32
	reads  int

	// FlowRate enables the simulation when non-zero.
	FlowRate float64
	lastFlow time.Time
}

// Script replaces the pending reading sequence.
func (s *MockScale) Script(readings ...int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = readings
	s.pos = 0
}

// SetValue sets the simulated weight directly (e.g. a bottle swap).
func (s *MockScale) SetValue(v int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

// Value returns the current simulated weight.
func (s *MockScale) Value() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Reads returns how many single acquisitions have been taken.
func (s *MockScale) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Read returns one sign-corrected sample.
func (s *MockScale) Read() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.pos < len(s.script) {
		s.value = s.script[s.pos]
		s.pos++
		return s.value
	}
	s.flow()
	return s.value
}

// ReadStable averages n acquisitions, consuming n scripted readings when
// a script is pending.
func (s *MockScale) ReadStable(n int) int32 {
	if n <= 0 {
		n = 1
	}
	var sum int64
	for i := 0; i < n; i++ {
		sum += int64(s.Read())
	}
	return int32(sum / int64(n))
}

// flow advances the simulated weight while the relay is on. Caller holds mu.
func (s *MockScale) flow() {
	if s.FlowRate == 0 {
		return
	}
	now := time.Now()
	if !s.lastFlow.IsZero() && s.panel.Relay() {
		dt := now.Sub(s.lastFlow).Seconds()
		s.value += int32(s.FlowRate * dt)
	}
	s.lastFlow = now
}

// MockPanel records relay and indicator actuation.
type MockPanel struct {
	mu        sync.Mutex
	relay     bool
	indicator bool

	// RelayLog records every SetRelay call in order.
	RelayLog []bool
}

// SetRelay drives the simulated relay line.
func (p *MockPanel) SetRelay(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relay = on
	p.RelayLog = append(p.RelayLog, on)
}

// SetIndicator drives the simulated status indicator.
func (p *MockPanel) SetIndicator(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indicator = on
}

// Relay reports the current relay level.
func (p *MockPanel) Relay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.relay
}

// Indicator reports the current indicator level.
func (p *MockPanel) Indicator() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indicator
}

// DisplayCols and DisplayRows are the character dimensions of the display.
const (
	DisplayCols = 16
	DisplayRows = 2
)

// MockDisplay is an in-memory 2x16 character buffer.
type MockDisplay struct {
	mu       sync.Mutex
	cells    [DisplayRows][DisplayCols]rune
	col, row int
	screens  [][DisplayRows]string
}

// NewMockDisplay creates a cleared display buffer.
func NewMockDisplay() *MockDisplay {
	d := &MockDisplay{}
	d.blank()
	return d
}

// SetCursor positions the write cursor.
func (d *MockDisplay) SetCursor(col, row int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.col, d.row = col, row
}

// Print writes s at the cursor, clipping at the right edge.
func (d *MockDisplay) Print(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.row < 0 || d.row >= DisplayRows {
		return
	}
	for _, r := range s {
		if d.col < 0 || d.col >= DisplayCols {
			break
		}
		d.cells[d.row][d.col] = r
		d.col++
	}
}

// Clear blanks the buffer and homes the cursor. The outgoing screen, if
// not already blank, is appended to the screen history.
func (d *MockDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := d.lines()
	if lines[0] != "" || lines[1] != "" {
		d.screens = append(d.screens, lines)
	}
	d.blank()
}

// blank fills every cell with a space and homes the cursor. Caller holds
// mu once the display is shared.
func (d *MockDisplay) blank() {
	for r := range d.cells {
		for c := range d.cells[r] {
			d.cells[r][c] = ' '
		}
	}
	d.col, d.row = 0, 0
}

// Screens returns every screen that has been displayed and replaced.
func (d *MockDisplay) Screens() [][DisplayRows]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][DisplayRows]string, len(d.screens))
	copy(out, d.screens)
	return out
}

// Lines returns the two display lines with trailing blanks trimmed.
func (d *MockDisplay) Lines() [DisplayRows]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines()
}

// lines renders the buffer. Caller holds mu.
func (d *MockDisplay) lines() [DisplayRows]string {
	var lines [DisplayRows]string
	for r := range d.cells {
		lines[r] = strings.TrimRight(string(d.cells[r][:]), " ")
	}
	return lines
}
