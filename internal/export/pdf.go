package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFTopMargin is the distance from the page top to the image, in millimetres.
const PDFTopMargin = 20.0

// Placement is an image rectangle on the page, in page units.
type Placement struct {
	X, Y, W, H float64
}

// Place scales an imgW x imgH image by min(pageW/imgW, pageH/imgH), centres it
// horizontally and puts its top edge at PDFTopMargin.
func Place(imgW, imgH int, pageW, pageH float64) Placement {
	if imgW <= 0 || imgH <= 0 {
		return Placement{X: pageW / 2, Y: PDFTopMargin}
	}
	ratio := min(pageW/float64(imgW), pageH/float64(imgH))
	w := float64(imgW) * ratio
	h := float64(imgH) * ratio
	return Placement{X: (pageW - w) / 2, Y: PDFTopMargin, W: w, H: h}
}

// WritePDF places img on one A4 portrait page and writes the document to w.
func WritePDF(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode results image: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("SMART Goal Results", true)
	pdf.SetCreator("okrdraft", true)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	bounds := img.Bounds()
	p := Place(bounds.Dx(), bounds.Dy(), pageW, pageH)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("results", opts, &buf)
	pdf.ImageOptions("results", p.X, p.Y, p.W, p.H, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
