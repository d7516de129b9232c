package export

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"okrdraft/internal/okr"
)

// RasterScale is the upscaling factor applied to the rendered results region.
const RasterScale = 2

const (
	rasterColumns = 96
	rasterPadding = 16
)

var (
	inkColor    = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	accentColor = color.RGBA{R: 0x0d, G: 0x94, B: 0x88, A: 0xff}
	labelColor  = color.RGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
)

type rasterLine struct {
	text string
	ink  color.Color
}

// RenderResults draws the goal cards as an image at RasterScale.
func RenderResults(req okr.Request, goals okr.GoalSet, selected int) *image.RGBA {
	lines := resultLines(req, goals, selected)

	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 4
	width := rasterPadding*2 + rasterColumns*face.Advance
	height := rasterPadding*2 + len(lines)*lineHeight

	base := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(base, base.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: base, Face: face}
	for i, line := range lines {
		d.Src = image.NewUniform(line.ink)
		d.Dot = fixed.P(rasterPadding, rasterPadding+(i+1)*lineHeight-4)
		d.DrawString(line.text)
	}

	out := image.NewRGBA(image.Rect(0, 0, width*RasterScale, height*RasterScale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)
	return out
}

func resultLines(req okr.Request, goals okr.GoalSet, selected int) []rasterLine {
	var lines []rasterLine
	add := func(text string, ink color.Color) {
		for _, l := range wrap(text, rasterColumns) {
			lines = append(lines, rasterLine{text: l, ink: ink})
		}
	}

	add("SMART Goal Results", accentColor)
	if req.Department != "" || req.JobTitle != "" {
		add(fmt.Sprintf("%s / %s  due %s", req.Department, req.JobTitle, req.DueDate), labelColor)
	}
	add("", inkColor)

	for i, g := range goals {
		header := fmt.Sprintf("Goal %d: %s", i+1, g.Title)
		if i == selected {
			header += "  [selected]"
		}
		add(header, accentColor)
		add(g.Description, inkColor)
		add("KPI: "+g.KPI, labelColor)
		add("Company top bet: "+g.CompanyTopBetAlignment, labelColor)
		add("3E framework: "+g.Framework3E, labelColor)
		add("Core value: "+g.CoreValue, labelColor)
		add("", inkColor)
	}
	return lines
}

// wrap breaks text on spaces into lines of at most width runes. Longer words
// are split.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var cur []rune
	for _, w := range words {
		word := []rune(w)
		for len(word) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(word[:width]))
			word = word[width:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, word...)
		case len(cur)+1+len(word) <= width:
			cur = append(cur, ' ')
			cur = append(cur, word...)
		default:
			lines = append(lines, string(cur))
			cur = append([]rune(nil), word...)
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
