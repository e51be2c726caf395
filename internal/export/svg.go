// Package export renders fits as standalone SVG documents.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/invlab/internal/viz"
)

// CanvasToSVG converts a Braille canvas to SVG, one dot per lit sub-pixel.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2   // 2 sub-pixels per char
	height := float64(canvas.Height) * scale * 4 // 4 sub-pixels per char

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height))

	// Braille dot-to-bit mapping
	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}

	dotRadius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r < 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
					}
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// FitSVG renders observations with error bars and the model response as
// a polyline. Errors may be nil to skip the bars.
func FitSVG(x, data, errs, response []float64, width, height int) string {
	if len(x) < 2 || len(data) != len(x) || len(response) != len(x) {
		return ""
	}

	// Bounds cover data, error bars and response.
	minY, maxY := data[0], data[0]
	minX, maxX := x[0], x[0]
	consider := func(v float64) {
		if v < minY {
			minY = v
		}
		if v > maxY {
			maxY = v
		}
	}
	for i := range x {
		if x[i] < minX {
			minX = x[i]
		}
		if x[i] > maxX {
			maxX = x[i]
		}
		consider(data[i])
		consider(response[i])
		if errs != nil {
			consider(data[i] - errs[i])
			consider(data[i] + errs[i])
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	toSVG := func(px, py float64) (float64, float64) {
		sx := (px - minX) / rangeX * float64(width)
		sy := float64(height) - (py-minY)/rangeY*float64(height)
		return sx, sy
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	if errs != nil {
		sb.WriteString(`<g stroke="#446644" stroke-width="1">` + "\n")
		for i := range x {
			x0, y0 := toSVG(x[i], data[i]-errs[i])
			_, y1 := toSVG(x[i], data[i]+errs[i])
			sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>
`, x0, y0, x0, y1))
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString(`<path fill="none" stroke="#00ccff" stroke-width="1.5" d="M`)
	for i := range x {
		sx, sy := toSVG(x[i], response[i])
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", sx, sy))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", sx, sy))
		}
	}
	sb.WriteString("\"/>\n")

	sb.WriteString(`<g fill="#00ff00">` + "\n")
	for i := range x {
		sx, sy := toSVG(x[i], data[i])
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2.2"/>
`, sx, sy))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
