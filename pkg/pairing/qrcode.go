package pairing

import (
	"bytes"
	"image"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxingqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"

	"nearclip/pkg/errs"
)

// QrCodeGenerator renders PairingData as a PNG QR code (grounded on
// dc4eu-vc's pkg/openid4vp/qr_generator.go, which also wraps
// github.com/skip2/go-qrcode; the original Rust source's
// QrCodeGenerator plays the same role with the `qrcode` crate).
type QrCodeGenerator struct {
	size int
}

// NewQrCodeGenerator builds a generator producing size x size PNGs.
// A size of 0 produces 512 x 512.
func NewQrCodeGenerator(size int) *QrCodeGenerator {
	return &QrCodeGenerator{size: size}
}

// GeneratePNG encodes the pairing record as JSON and renders it into
// a QR code PNG. Generation is deterministic: the same PairingData
// always produces the same bytes.
func (g *QrCodeGenerator) GeneratePNG(data *PairingData) ([]byte, error) {
	payload, err := data.ToJSON()
	if err != nil {
		return nil, err
	}

	q, err := qrcode.New(string(payload), qrcode.Medium)
	if err != nil {
		return nil, errs.Wrap(errs.KindLocal, "qrcode_encode", err)
	}

	size := g.size
	if size == 0 {
		size = 512
	}
	png, err := q.PNG(size)
	if err != nil {
		return nil, errs.Wrap(errs.KindLocal, "qrcode_render", err)
	}
	return png, nil
}

// QrCodeParser decodes a scanned QR code image back into PairingData
// (original Rust source uses the `rqrr`/`image` crates for this; no
// pack repo decodes QR codes, so this leans on the out-of-pack
// github.com/makiuchi-d/gozxing, a pure-Go port of ZXing).
type QrCodeParser struct{}

// NewQrCodeParser returns a parser.
func NewQrCodeParser() *QrCodeParser {
	return &QrCodeParser{}
}

// ParsePairingData decodes a PNG-encoded QR code image directly into
// validated PairingData.
func (p *QrCodeParser) ParsePairingData(pngBytes []byte) (*PairingData, error) {
	raw, err := p.ParseFromBytes(pngBytes)
	if err != nil {
		return nil, err
	}

	data, err := FromJSON(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "qrcode_parsing", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// ParseFromBytes decodes a PNG-encoded QR code image into its raw
// text payload, without interpreting it as PairingData.
func (p *QrCodeParser) ParseFromBytes(pngBytes []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "qrcode_parsing", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "qrcode_parsing", err)
	}

	reader := zxingqrcode.NewQRCodeReader()
	result, err := reader.Decode(bmp, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindSync, "qrcode_parsing", err)
	}

	return []byte(result.GetText()), nil
}
