// Package testpdf writes small PDF fixtures for tests.
package testpdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/go-pdf/fpdf"
)

// Page is one page of a fixture: Body is printed near the top, Footer near
// the bottom edge where page numbers usually sit. Figure adds an embedded
// raster image.
type Page struct {
	Body   string
	Footer string
	Figure bool
}

// Write renders pages to an A4 PDF at path.
func Write(path string, pages []Page) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	figure := false
	for _, p := range pages {
		if p.Figure && !figure {
			doc.RegisterImageOptionsReader("figure", opts, bytes.NewReader(figurePNG()))
			figure = true
		}
	}

	for _, p := range pages {
		doc.AddPage()
		if p.Body != "" {
			doc.Text(20, 30, p.Body)
		}
		if p.Figure {
			doc.ImageOptions("figure", 20, 50, 40, 40, false, opts, 0, "")
		}
		if p.Footer != "" {
			doc.Text(100, 285, p.Footer)
		}
	}
	return doc.OutputFileAndClose(path)
}

func figurePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Book returns a document with two front-matter pages followed by numbered
// pages, the third of which is a two-page spread with a figure.
func Book() []Page {
	return []Page{
		{Body: "A Field Guide to Owls"},
		{Body: "Copyright Example Press"},
		{Body: "Barn owls hunt at night", Footer: "1"},
		{Body: "Tawny owls call in autumn", Footer: "2"},
		{Body: "Range map of the eagle owl", Footer: "3-4", Figure: true},
		{Body: "Snowy owls nest on tundra", Footer: "5"},
	}
}
