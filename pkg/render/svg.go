package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
)

// svgMargin pads the view box on every side, in projected meters
const svgMargin = 50.0

// SVG draws the reached roads as one polyline each, in delivery order so
// later roads are drawn on top. The y axis is flipped so north is up.
func SVG(store *roadnet.Store, reached []engine.Reached) string {
	paths := Paths(store, reached)

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range paths {
		for _, pt := range p.Path {
			x, y := pt[0], -pt[1]
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
	}

	var sb strings.Builder
	if math.IsInf(minX, 1) {
		sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1"></svg>`)
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s">`,
		num(minX-svgMargin), num(minY-svgMargin),
		num(maxX-minX+2*svgMargin), num(maxY-minY+2*svgMargin)))
	sb.WriteString("\n")

	for _, p := range paths {
		sb.WriteString(`  <polyline fill="none" stroke="`)
		sb.WriteString(p.Color)
		sb.WriteString(`" stroke-opacity="1" stroke-width="2" vector-effect="non-scaling-stroke" points="`)
		for i, pt := range p.Path {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(num(pt[0]))
			sb.WriteByte(',')
			sb.WriteString(num(-pt[1]))
		}
		sb.WriteString(`"/>`)
		sb.WriteString("\n")
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
