// Package render draws solved layouts with Graphviz.
//
// # Overview
//
// A checkpoint already carries final 3D positions, so nothing is laid out
// here: every node is pinned at its position projected onto one of the
// axis planes, and Graphviz only draws. Edges are colored by length
// relative to the mean edge length, short edges red through yellow and
// green to long edges blue.
//
// # Usage
//
//	cp, err := mtx.ImportSolved("can_229.mtxs")
//	dot := render.ToDOT(cp, render.Options{Plane: render.PlaneXZ})
//	svg, err := render.RenderSVG(ctx, dot)
//
// # Dependencies
//
// SVG output uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process; no system installation is needed. Colors are blended with
// [github.com/lucasb-eyer/go-colorful].
package render
