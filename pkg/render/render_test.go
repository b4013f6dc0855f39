package render

import (
	"context"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/graph"
	"github.com/matzehuels/mtxlayout/pkg/mtx"
)

func checkpoint() *mtx.Checkpoint {
	return &mtx.Checkpoint{
		Nodes: []graph.Placement{
			{Index: 0, ID: 7, Position: r3.Vec{X: 0, Y: 0, Z: 0}},
			{Index: 1, ID: 8, Position: r3.Vec{X: 1, Y: 2, Z: 3}},
			{Index: 2, ID: 9, Position: r3.Vec{X: -1, Y: 0.5, Z: 0}},
		},
		Edges: [][2]int{{0, 1}, {0, 2}, {2, 5}},
	}
}

func TestGradientAt(t *testing.T) {
	tests := []struct {
		t    float64
		want string
	}{
		{-1, "#ff0000"},
		{0, "#ff0000"},
		{0.25, "#ff8000"},
		{0.5, "#ffff00"},
		{0.75, "#00ff00"},
		{1, "#0000ff"},
		{3, "#0000ff"},
	}
	for _, tt := range tests {
		if got := EdgeGradient.At(tt.t).Hex(); got != tt.want {
			t.Errorf("At(%v) = %s, want %s", tt.t, got, tt.want)
		}
	}
	if got := (Gradient{}).At(0.5).Hex(); got != "#000000" {
		t.Errorf("empty gradient At = %s, want black", got)
	}
}

func TestParsePlaneAndFormat(t *testing.T) {
	if p, err := ParsePlane(""); err != nil || p != PlaneXY {
		t.Errorf("ParsePlane(\"\") = %q, %v", p, err)
	}
	if p, err := ParsePlane("yz"); err != nil || p != PlaneYZ {
		t.Errorf("ParsePlane(yz) = %q, %v", p, err)
	}
	if _, err := ParsePlane("zz"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ParsePlane(zz) error = %v", err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatSVG {
		t.Errorf("ParseFormat(\"\") = %q, %v", f, err)
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Error("ParseFormat(png) should fail")
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(checkpoint(), Options{})

	for _, want := range []string{
		"graph G {",
		`0 [pos="0.000,0.000!"];`,
		`1 [pos="1.000,2.000!"];`,
		`2 [pos="-1.000,0.500!"];`,
		"0 -- 1 [color=",
		"0 -- 2 [color=",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "-- 5") {
		t.Error("edge to an unknown index should be skipped")
	}
	if strings.Contains(dot, "xlabel") {
		t.Error("labels written without Options.Labels")
	}
}

func TestToDOTPlaneAndLabels(t *testing.T) {
	dot := ToDOT(checkpoint(), Options{Plane: PlaneXZ, Scale: 2, Labels: true})
	if !strings.Contains(dot, `1 [pos="2.000,6.000!", xlabel="8"];`) {
		t.Errorf("xz projection or label wrong:\n%s", dot)
	}

	dot = ToDOT(checkpoint(), Options{Plane: PlaneYZ})
	if !strings.Contains(dot, `1 [pos="2.000,3.000!"];`) {
		t.Errorf("yz projection wrong:\n%s", dot)
	}
}

func TestToDOTEdgeColors(t *testing.T) {
	// Two edges of equal length sit at the mean: t = 1/ColorFactor.
	cp := &mtx.Checkpoint{
		Nodes: []graph.Placement{
			{Index: 0, Position: r3.Vec{}},
			{Index: 1, Position: r3.Vec{X: 1}},
			{Index: 2, Position: r3.Vec{Y: 1}},
		},
		Edges: [][2]int{{0, 1}, {0, 2}},
	}
	dot := ToDOT(cp, Options{})
	if got := strings.Count(dot, `[color="#ffff00"]`); got != 2 {
		t.Errorf("mean-length edges with factor 2 should be yellow, got %d:\n%s", got, dot)
	}
	dot = ToDOT(cp, Options{ColorFactor: 1})
	if got := strings.Count(dot, `[color="#0000ff"]`); got != 2 {
		t.Errorf("mean-length edges with factor 1 should be blue, got %d:\n%s", got, dot)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	out, err := Render(ctx, checkpoint(), FormatDOT, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "graph G {") {
		t.Errorf("dot output = %q", out)
	}

	svg, err := Render(ctx, checkpoint(), FormatSVG, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Errorf("svg output has no <svg> tag")
	}

	if _, err := Render(ctx, checkpoint(), "png", Options{}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Render(png) error = %v, want UNSUPPORTED", err)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg">`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 62.00 116.00" width="62" height="116">`
	if got != want {
		t.Errorf("normalizeViewBox() = %s, want %s", got, want)
	}
	if string(normalizeViewBox([]byte("<svg>"))) != "<svg>" {
		t.Error("svg without viewBox should be unchanged")
	}
}
