package viz

import (
	"fmt"
	"math"
	"strings"
)

const (
	modeScatter = iota
	modeCurve
)

type series struct {
	xs, ys []float64
	mode   int
}

// Plot renders data-space series on a braille canvas inside a labeled
// frame. Series accumulate until Render, which auto-scales the axes to
// cover everything with a small margin.
type Plot struct {
	width, height int
	series        []series
}

// NewPlot sizes the drawing area in character cells, frame excluded.
func NewPlot(width, height int) *Plot {
	if width < 8 {
		width = 8
	}
	if height < 4 {
		height = 4
	}
	return &Plot{width: width, height: height}
}

// Scatter adds individual observation marks.
func (p *Plot) Scatter(xs, ys []float64) {
	p.series = append(p.series, series{xs: xs, ys: ys, mode: modeScatter})
}

// Curve adds a connected line through the points in order.
func (p *Plot) Curve(xs, ys []float64) {
	p.series = append(p.series, series{xs: xs, ys: ys, mode: modeCurve})
}

func (p *Plot) bounds() (xmin, xmax, ymin, ymax float64, ok bool) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, s := range p.series {
		n := len(s.xs)
		if len(s.ys) < n {
			n = len(s.ys)
		}
		for i := 0; i < n; i++ {
			x, y := s.xs[i], s.ys[i]
			if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
				continue
			}
			xmin = math.Min(xmin, x)
			xmax = math.Max(xmax, x)
			ymin = math.Min(ymin, y)
			ymax = math.Max(ymax, y)
			ok = true
		}
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	// Flat ranges still need extent; margins keep edge points off the frame.
	if xmax == xmin {
		xmin, xmax = xmin-1, xmax+1
	}
	if ymax == ymin {
		ymin, ymax = ymin-1, ymax+1
	}
	mx, my := (xmax-xmin)*0.05, (ymax-ymin)*0.05
	return xmin - mx, xmax + mx, ymin - my, ymax + my, true
}

// Render draws all series and returns the framed plot with axis extents.
func (p *Plot) Render(caption string) string {
	xmin, xmax, ymin, ymax, ok := p.bounds()
	if !ok {
		return "(no finite data to plot)\n"
	}

	canvas := NewCanvas(p.width, p.height)
	cw, ch := p.width*2, p.height*4
	toPx := func(x, y float64) (int, int) {
		px := int(math.Round(float64(cw-1) * (x - xmin) / (xmax - xmin)))
		py := int(math.Round(float64(ch-1) * (y - ymin) / (ymax - ymin)))
		return px, ch - 1 - py
	}

	for _, s := range p.series {
		n := len(s.xs)
		if len(s.ys) < n {
			n = len(s.ys)
		}
		prevSet := false
		var prevX, prevY int
		for i := 0; i < n; i++ {
			if math.IsNaN(s.xs[i]) || math.IsNaN(s.ys[i]) {
				prevSet = false
				continue
			}
			px, py := toPx(s.xs[i], s.ys[i])
			switch s.mode {
			case modeScatter:
				canvas.Mark(px, py)
			case modeCurve:
				if prevSet {
					canvas.DrawLine(prevX, prevY, px, py)
				} else {
					canvas.Set(px, py)
				}
				prevX, prevY, prevSet = px, py, true
			}
		}
	}

	return p.frame(canvas, xmin, xmax, ymin, ymax, caption)
}

// frame wraps the canvas in a box with y extents on the left and x extents
// below.
func (p *Plot) frame(canvas *Canvas, xmin, xmax, ymin, ymax float64, caption string) string {
	var b strings.Builder

	top := fmt.Sprintf("%10.4g", ymax)
	mid := fmt.Sprintf("%10.4g", (ymax+ymin)/2)
	bot := fmt.Sprintf("%10.4g", ymin)
	blank := strings.Repeat(" ", 10)

	b.WriteString(top + " ┌" + strings.Repeat("─", p.width) + "┐\n")
	for i, row := range canvas.Grid {
		label := blank
		if i == p.height/2 {
			label = mid
		}
		b.WriteString(label + " │" + string(row) + "│\n")
	}
	b.WriteString(bot + " └" + strings.Repeat("─", p.width) + "┘\n")

	left := fmt.Sprintf("%-.4g", xmin)
	right := fmt.Sprintf("%.4g", xmax)
	gap := p.width + 2 - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(blank + " " + left + strings.Repeat(" ", gap) + right + "\n")

	if caption != "" {
		pad := (p.width + 12 - len(caption)) / 2
		if pad < 0 {
			pad = 0
		}
		b.WriteString(strings.Repeat(" ", pad) + caption + "\n")
	}
	return b.String()
}

// FitPlot renders observations as scatter marks with the model response as
// a curve, the standard view of a completed fit.
func FitPlot(width, height int, x, data, response []float64, caption string) string {
	p := NewPlot(width, height)
	p.Scatter(x, data)
	p.Curve(x, response)
	return p.Render(caption)
}

// ResidualPlot renders residuals as scatter marks around a zero line.
func ResidualPlot(width, height int, x, residual []float64, caption string) string {
	p := NewPlot(width, height)
	zeros := make([]float64, len(x))
	p.Curve(x, zeros)
	p.Scatter(x, residual)
	return p.Render(caption)
}
