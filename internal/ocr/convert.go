package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// preparePNG normalizes an uploaded receipt into PNG bytes. PDFs are
// rendered from their first page (receipts are single page in practice),
// HEIC/HEIF photos from iPhones are decoded with a pure Go decoder, and
// everything else goes through the standard image decoders.
func preparePNG(data []byte, contentType string) ([]byte, error) {
	mime := strings.ToLower(strings.TrimSpace(contentType))

	if mime == "application/pdf" {
		return pdfFirstPagePNG(data)
	}
	if mime == "image/png" && !sniffHEIC(data) {
		return data, nil
	}
	return decodeToPNG(data, mime)
}

func pdfFirstPagePNG(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

func decodeToPNG(data []byte, mime string) ([]byte, error) {
	var img image.Image
	var err error

	if sniffHEIC(data) || strings.Contains(mime, "heic") || strings.Contains(mime, "heif") {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// sniffHEIC detects HEIC/HEIF containers by their ftyp box; the standard
// image package cannot decode them and content types from phone uploads
// are unreliable.
func sniffHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
