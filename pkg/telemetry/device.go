package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the standard baud rate for the filling machine MCU.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100

	// ModeManual is the mode index the machine reports when no preset is selected.
	ModeManual = 3

	// UncalibratedThreshold is the sentinel the machine reports for the
	// manual mode threshold.
	UncalibratedThreshold = -1
)

// Reading represents one telemetry line from the machine.
type Reading struct {
	Timestamp  time.Time
	Weight     int32 // Raw load cell counts
	Mode       int   // Active mode (0-2 presets, 3 manual)
	Threshold  int32 // Stop threshold of the active mode, -1 for manual
	Dispensing bool  // Relay state
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the filling machine MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	readings  chan Reading
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Device instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		readings:  make(chan Reading, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		// Try to get port description if available
		port, err := serial.Open(name, &serial.Mode{
			BaudRate: DefaultBaudRate,
		})
		if err == nil {
			// Port opened successfully, get description
			desc := name // Use name as description if we can't get more info
			port.Close()
			result = append(result, Port{
				Name:        name,
				Description: desc,
			})
		} else {
			// Still add the port even if we can't open it
			result = append(result, Port{
				Name:        name,
				Description: name,
			})
		}
	}

	return result, nil
}

// Connect connects to the serial port and starts reading telemetry.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	// Start reading telemetry in a goroutine
	go d.readLines()

	return nil
}

// Close closes the connection and stops reading telemetry.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	// Cancel context to stop reading goroutine
	d.cancel()

	// Close serial port
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	// Close readings channel
	close(d.readings)

	return nil
}

// Readings returns the channel for reading telemetry.
func (d *Serial) Readings() <-chan Reading {
	return d.readings
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines reads lines from the serial port and parses them into Reading.
func (d *Serial) readLines() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(d.conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				// Scanner stopped (EOF or error)
				if err := scanner.Err(); err != nil {
					if err != io.EOF {
						log.Printf("Error reading from serial port: %v", err)
					}
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			reading, err := parseLine(line)
			if err != nil {
				log.Printf("Failed to parse line '%s': %v", line, err)
				continue
			}

			// Send reading to channel (non-blocking)
			select {
			case d.readings <- reading:
			case <-d.ctx.Done():
				return
			default:
				// Channel full, log and skip
				log.Printf("Readings channel full, dropping reading")
			}
		}
	}
}

// parseLine parses a line from the MCU into a Reading.
// Format: unix_micros,weight,mode,threshold,dispensing
// Example: 1234567890123,215000,1,240000,1
func parseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return Reading{}, fmt.Errorf("invalid line format: expected 5 comma-separated values, got %d", len(parts))
	}

	// Parse timestamp (unix microseconds)
	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	timestamp := time.Unix(0, timestampMicros*1000) // Convert microseconds to nanoseconds

	// Parse weight (signed 24-bit sensor counts fit in int32)
	weight, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid weight: %w", err)
	}

	// Parse mode (0-2 presets, 3 manual)
	mode, err := strconv.Atoi(parts[2])
	if err != nil {
		return Reading{}, fmt.Errorf("invalid mode: %w", err)
	}
	if mode < 0 || mode > ModeManual {
		return Reading{}, fmt.Errorf("mode out of range: %d (max %d)", mode, ModeManual)
	}

	// Parse threshold (-1 in manual mode)
	threshold, err := strconv.ParseInt(parts[3], 10, 32)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid threshold: %w", err)
	}

	// Parse dispensing flag (single digit)
	var dispensing bool
	switch parts[4] {
	case "0":
		dispensing = false
	case "1":
		dispensing = true
	default:
		return Reading{}, fmt.Errorf("invalid dispensing flag: %q", parts[4])
	}

	return Reading{
		Timestamp:  timestamp,
		Weight:     int32(weight),
		Mode:       mode,
		Threshold:  int32(threshold),
		Dispensing: dispensing,
	}, nil
}
