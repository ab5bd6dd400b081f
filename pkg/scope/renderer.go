package scope

import (
	"image/color"
	"math"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/anishkk/gobfm/pkg/meter"
	"github.com/anishkk/gobfm/pkg/sample"
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Lines for weights and flow rates
	weightLine   *canvas.Line
	flowRateLine *canvas.Line

	// Fill markers (vertical lines)
	fillLines []*canvas.Line

	// Delivered weight labels
	fillLabels []*canvas.Text

	// Dispensing indicator label
	dispensingLabel *canvas.Text

	// Grid lines
	gridLines []*canvas.Line
	gridTexts []*canvas.Text

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	// Check if size changed
	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, trigger widget refresh to redraw with new dimensions
		// Use BaseWidget.Refresh() to properly trigger Fyne's refresh cycle
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	flowRates := r.scope.displayFlowRates
	fills := r.scope.fills
	dispensing := r.scope.dispensing
	threshold := r.scope.threshold
	yMin := r.scope.yMin
	yMax := r.scope.yMax
	xMin := r.scope.xMin
	xMax := r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep grid)
	r.objects = []fyne.CanvasObject{r.grid}
	r.gridLines = r.gridLines[:0]
	r.gridTexts = r.gridTexts[:0]
	r.fillLines = r.fillLines[:0]
	r.fillLabels = r.fillLabels[:0]
	r.dispensingLabel = nil

	// Calculate margins
	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom
	plotX := marginLeft
	plotY := marginTop

	// Draw grid
	r.drawGrid(plotX, plotY, plotWidth, plotHeight, yMin, yMax, xMin, xMax)

	// Draw weights (orange line)
	if len(samples) > 1 {
		r.drawWeightLine(plotX, plotY, plotWidth, plotHeight, samples, yMin, yMax, xMin, xMax)
	}

	// Draw stop threshold (red horizontal line, hidden in manual mode)
	if threshold >= 0 {
		r.drawThreshold(plotX, plotY, plotWidth, plotHeight, threshold, yMin, yMax)
	}

	// Draw flow rates (light blue, thicker line)
	if len(flowRates) > 0 && len(samples) > 1 {
		r.drawFlowRateLine(plotX, plotY, plotWidth, plotHeight, flowRates, samples, yMin, yMax, xMin, xMax)
	}

	// Draw fills (dark blue vertical lines)
	r.drawFills(plotX, plotY, plotWidth, plotHeight, fills, samples, xMin, xMax)

	// Draw delivered weight labels
	r.drawFillLabels(plotX, plotY, plotWidth, plotHeight, fills, samples, yMin, yMax, xMin, xMax)

	// Draw dispensing indicator
	if dispensing {
		r.drawDispensing(plotX, plotY)
	}
}

// drawGrid draws the oscilloscope-style grid.
func (r *scopeRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, yMin, yMax float64, xMin, xMax time.Time) {
	// Horizontal grid lines (weight)
	numHLines := 8
	for i := 0; i <= numHLines; i++ {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// Y-axis label
		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		text := canvas.NewText(formatWeight(value), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}

	// Vertical grid lines (time)
	numVLines := 10
	for i := 0; i <= numVLines; i++ {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// X-axis label
		timeOffset := float64(i) * xMax.Sub(xMin).Seconds() / float64(numVLines)
		timeVal := xMin.Add(time.Duration(timeOffset * float64(time.Second)))
		text := canvas.NewText(formatTime(timeVal.Sub(xMin)), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+5))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawWeightLine draws the weight measurement curve (orange).
func (r *scopeRenderer) drawWeightLine(plotX, plotY, plotWidth, plotHeight float32, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(samples) < 2 {
		return
	}

	points := make([]fyne.Position, 0, len(samples))
	for _, s := range samples {
		x := plotX + float32(s.Timestamp.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		y := plotY + plotHeight - float32((s.Weight-yMin)/(yMax-yMin))*plotHeight
		points = append(points, fyne.NewPos(x, y))
	}

	// Draw connected line segments
	for i := 0; i < len(points)-1; i++ {
		line := canvas.NewLine(color.RGBA{R: 255, G: 165, B: 0, A: 255}) // Orange
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// drawThreshold draws the stop threshold of the active preset (red).
func (r *scopeRenderer) drawThreshold(plotX, plotY, plotWidth, plotHeight float32, threshold, yMin, yMax float64) {
	y := plotY + plotHeight - float32((threshold-yMin)/(yMax-yMin))*plotHeight
	line := canvas.NewLine(color.RGBA{R: 220, G: 60, B: 60, A: 255}) // Red
	line.Position1 = fyne.NewPos(plotX, y)
	line.Position2 = fyne.NewPos(plotX+plotWidth, y)
	line.StrokeWidth = 1
	r.objects = append(r.objects, line)

	text := canvas.NewText(formatWeight(threshold), color.RGBA{R: 220, G: 60, B: 60, A: 255})
	text.TextSize = 10
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+plotWidth-50, y-14))
	r.objects = append(r.objects, text)
}

// drawFlowRateLine draws the flow rate curve (light blue, thicker).
func (r *scopeRenderer) drawFlowRateLine(plotX, plotY, plotWidth, plotHeight float32, flowRates []float64, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(flowRates) == 0 || len(samples) < 2 {
		return
	}

	// Flow rates correspond to sample pairs, so we use sample timestamps
	points := make([]fyne.Position, 0, len(flowRates))
	for i, rate := range flowRates {
		if i+1 >= len(samples) {
			break
		}
		// Use midpoint between samples for flow rate position
		midTime := samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
		x := plotX + float32(midTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		y := plotY + plotHeight - float32((rate-yMin)/(yMax-yMin))*plotHeight
		points = append(points, fyne.NewPos(x, y))
	}

	// Draw connected line segments
	for i := 0; i < len(points)-1; i++ {
		line := canvas.NewLine(color.RGBA{R: 100, G: 200, B: 255, A: 255}) // Light blue
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 2.5
		r.objects = append(r.objects, line)
	}
}

// drawFills draws vertical lines for detected fills (dark blue).
func (r *scopeRenderer) drawFills(plotX, plotY, plotWidth, plotHeight float32, fills []meter.Fill, samples []sample.Sample, xMin, xMax time.Time) {
	if len(samples) == 0 {
		return
	}

	for _, fill := range fills {
		// Get fill start and end positions from indices
		if fill.StartIndex < 0 || fill.StartIndex >= len(samples) {
			continue
		}
		if fill.EndIndex < 0 || fill.EndIndex >= len(samples) {
			continue
		}

		startTime := samples[fill.StartIndex].Timestamp
		endTime := samples[fill.EndIndex].Timestamp

		// Draw start line
		xStart := plotX + float32(startTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		lineStart := canvas.NewLine(color.RGBA{R: 0, G: 100, B: 200, A: 255}) // Dark blue
		lineStart.Position1 = fyne.NewPos(xStart, plotY)
		lineStart.Position2 = fyne.NewPos(xStart, plotY+plotHeight)
		lineStart.StrokeWidth = 1
		r.fillLines = append(r.fillLines, lineStart)
		r.objects = append(r.objects, lineStart)

		// Draw end line
		xEnd := plotX + float32(endTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		lineEnd := canvas.NewLine(color.RGBA{R: 0, G: 100, B: 200, A: 255}) // Dark blue
		lineEnd.Position1 = fyne.NewPos(xEnd, plotY)
		lineEnd.Position2 = fyne.NewPos(xEnd, plotY+plotHeight)
		lineEnd.StrokeWidth = 1
		r.fillLines = append(r.fillLines, lineEnd)
		r.objects = append(r.objects, lineEnd)
	}
}

// drawFillLabels draws delivered weight labels over each detected fill.
func (r *scopeRenderer) drawFillLabels(plotX, plotY, plotWidth, plotHeight float32, fills []meter.Fill, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(samples) == 0 {
		return
	}

	for _, fill := range fills {
		if fill.StartIndex < 0 || fill.StartIndex >= len(samples) {
			continue
		}
		if fill.EndIndex < 0 || fill.EndIndex >= len(samples) {
			continue
		}

		// Calculate center of fill
		startTime := samples[fill.StartIndex].Timestamp
		endTime := samples[fill.EndIndex].Timestamp
		centerTime := startTime.Add(endTime.Sub(startTime) / 2)

		x := plotX + float32(centerTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth

		// Find max weight in fill range for Y position
		maxWeight := yMin
		for i := fill.StartIndex; i <= fill.EndIndex && i < len(samples); i++ {
			if samples[i].Weight > maxWeight {
				maxWeight = samples[i].Weight
			}
		}
		y := plotY + plotHeight - float32((maxWeight-yMin)/(yMax-yMin))*plotHeight - 15

		// Active fills show a running total, completed fills the delivered weight
		labelText := formatWeight(fill.Delivered)
		if !fill.Complete {
			labelText = "+" + labelText
		}
		text := canvas.NewText(labelText, color.RGBA{R: 255, G: 165, B: 0, A: 255}) // Orange
		text.TextSize = 12
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-30, y))
		r.fillLabels = append(r.fillLabels, text)
		r.objects = append(r.objects, text)
	}
}

// drawDispensing draws the valve state indicator.
func (r *scopeRenderer) drawDispensing(plotX, plotY float32) {
	text := canvas.NewText("DISPENSING", color.RGBA{R: 220, G: 60, B: 60, A: 255})
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+10, plotY+10))
	r.dispensingLabel = text
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// Helper functions for formatting

func formatWeight(g float64) string {
	return formatFloat(g, 1) + " g"
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return formatFloat(d.Seconds(), 2) + "s"
	}
	return formatFloat(d.Seconds(), 1) + "s"
}

func formatFloat(v float64, decimals int) string {
	mult := math.Pow(10, float64(decimals))
	return formatFloatRaw(v*mult, decimals)
}

func formatFloatRaw(v float64, decimals int) string {
	rounded := math.Round(v)
	if rounded == 0 {
		return "0"
	}
	// Simple formatting - can be improved
	str := ""
	if v < 0 {
		str = "-"
		v = -v
	}
	intPart := int64(v)
	str += formatInt(intPart)
	if decimals > 0 {
		frac := v - float64(intPart)
		fracStr := formatInt(int64(frac * math.Pow(10, float64(decimals))))
		// Pad with zeros
		for len(fracStr) < decimals {
			fracStr = "0" + fracStr
		}
		str += "." + fracStr
	}
	return str
}

func formatInt(v int64) string {
	if v == 0 {
		return "0"
	}
	str := ""
	neg := v < 0
	if neg {
		v = -v
	}
	for v > 0 {
		str = string(rune('0'+v%10)) + str
		v /= 10
	}
	if neg {
		str = "-" + str
	}
	return str
}
