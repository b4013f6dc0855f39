package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/mtx"
)

// =============================================================================
// Planes and Formats
// =============================================================================

// Plane is the axis plane positions are projected onto.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
	PlaneYZ Plane = "yz"
)

// Planes lists the supported planes, default first.
var Planes = []Plane{PlaneXY, PlaneXZ, PlaneYZ}

// ParsePlane validates a plane name. The empty string selects [PlaneXY].
func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case "":
		return PlaneXY, nil
	case PlaneXY, PlaneXZ, PlaneYZ:
		return Plane(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "invalid plane: %q (must be one of: xy, xz, yz)", s)
}

func (p Plane) project(v r3.Vec) (float64, float64) {
	switch p {
	case PlaneXZ:
		return v.X, v.Z
	case PlaneYZ:
		return v.Y, v.Z
	}
	return v.X, v.Y
}

// Format is an output format.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
)

// ParseFormat validates a format name. The empty string selects [FormatSVG].
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatSVG, nil
	case FormatDOT, FormatSVG:
		return Format(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: dot, svg)", s)
}

// =============================================================================
// Edge Colors
// =============================================================================

// Stop is one color of a [Gradient] at position T in [0, 1].
type Stop struct {
	T     float64
	Color colorful.Color
}

// Gradient maps [0, 1] onto colors by blending between stops, which must be
// sorted by T.
type Gradient []Stop

// EdgeGradient runs from red for the shortest edges to blue for the longest.
var EdgeGradient = Gradient{
	{0, colorful.Color{R: 1}},
	{0.5, colorful.Color{R: 1, G: 1}},
	{0.75, colorful.Color{G: 1}},
	{1, colorful.Color{B: 1}},
}

// At returns the color at t, clamped to the first and last stop.
func (g Gradient) At(t float64) colorful.Color {
	if len(g) == 0 {
		return colorful.Color{}
	}
	if t <= g[0].T {
		return g[0].Color
	}
	for i := 1; i < len(g); i++ {
		if t <= g[i].T {
			lo, hi := g[i-1], g[i]
			return lo.Color.BlendRgb(hi.Color, (t-lo.T)/(hi.T-lo.T))
		}
	}
	return g[len(g)-1].Color
}

// =============================================================================
// DOT
// =============================================================================

// Defaults for [Options].
const (
	DefaultScale       = 1.0
	DefaultColorFactor = 2.0
	DefaultNodeSize    = 0.04
)

// Options configures DOT generation.
type Options struct {
	// Plane selects the projected axes. Defaults to PlaneXY.
	Plane Plane

	// Scale converts layout units to inches.
	Scale float64

	// ColorFactor stretches the gradient: an edge ColorFactor times the
	// mean length gets the last color.
	ColorFactor float64

	// NodeSize is the point diameter in inches.
	NodeSize float64

	// Labels writes each node's matrix ID next to it.
	Labels bool
}

func (o *Options) setDefaults() {
	if o.Plane == "" {
		o.Plane = PlaneXY
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.ColorFactor <= 0 {
		o.ColorFactor = DefaultColorFactor
	}
	if o.NodeSize <= 0 {
		o.NodeSize = DefaultNodeSize
	}
}

// ToDOT converts a checkpoint to an undirected Graphviz graph with every
// node pinned. Edges naming unknown indices are skipped.
func ToDOT(cp *mtx.Checkpoint, opts Options) string {
	opts.setDefaults()

	pos := make(map[int]r3.Vec, len(cp.Nodes))
	for _, n := range cp.Nodes {
		pos[n.Index] = n.Position
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  splines=false;\n")
	fmt.Fprintf(&buf, "  node [shape=point, width=%s, color=\"#333333\"];\n", fmtFloat(opts.NodeSize))
	buf.WriteString("  edge [penwidth=0.6];\n")
	buf.WriteString("\n")

	for _, n := range cp.Nodes {
		x, y := opts.Plane.project(n.Position)
		fmt.Fprintf(&buf, "  %d [pos=\"%s,%s!\"", n.Index, fmtFloat(x*opts.Scale), fmtFloat(y*opts.Scale))
		if opts.Labels {
			fmt.Fprintf(&buf, ", xlabel=%q", strconv.Itoa(n.ID))
		}
		buf.WriteString("];\n")
	}

	buf.WriteString("\n")
	lengths := edgeLengths(cp.Edges, pos)
	mean := meanOf(lengths)
	for i, e := range cp.Edges {
		if lengths[i] < 0 {
			continue
		}
		t := 0.0
		if mean > 0 {
			t = lengths[i] / (mean * opts.ColorFactor)
		}
		fmt.Fprintf(&buf, "  %d -- %d [color=%q];\n", e[0], e[1], EdgeGradient.At(t).Hex())
	}

	buf.WriteString("}\n")
	return buf.String()
}

// edgeLengths returns each edge's 3D length, or -1 when an endpoint is unknown.
func edgeLengths(edges [][2]int, pos map[int]r3.Vec) []float64 {
	out := make([]float64, len(edges))
	for i, e := range edges {
		a, okA := pos[e[0]]
		b, okB := pos[e[1]]
		if !okA || !okB {
			out[i] = -1
			continue
		}
		out[i] = r3.Norm(r3.Sub(a, b))
	}
	return out
}

func meanOf(lengths []float64) float64 {
	var sum float64
	var n int
	for _, l := range lengths {
		if l >= 0 {
			sum += l
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// =============================================================================
// SVG
// =============================================================================

// RenderSVG draws a DOT graph with neato, which keeps pinned positions.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Render produces cp in the given format.
func Render(ctx context.Context, cp *mtx.Checkpoint, format Format, opts Options) ([]byte, error) {
	dot := ToDOT(cp, opts)
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG, "":
		return RenderSVG(ctx, dot)
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "format %q", format)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.-]+)\s+([0-9.-]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's fixed pt sizes so the SVG scales
// with its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
