package terminal

import (
	"fmt"
	"io"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// WriteQR renders payload as a compact half-block QR code, two bitmap rows per
// text line, for scanning straight off a terminal.
func WriteQR(w io.Writer, payload string) error {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("gerar QR: %w", err)
	}
	qr.DisableBorder = true
	bmp := qr.Bitmap()
	if len(bmp)%2 == 1 {
		width := 0
		if len(bmp) > 0 {
			width = len(bmp[0])
		}
		bmp = append(bmp, make([]bool, width))
	}

	var b strings.Builder
	for y := 0; y < len(bmp); y += 2 {
		top, bottom := bmp[y], bmp[y+1]
		for x := range top {
			switch t, bt := top[x], bottom[x]; {
			case t && bt:
				b.WriteRune('█')
			case t:
				b.WriteRune('▀')
			case bt:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		b.WriteByte('\n')
	}
	_, err = io.WriteString(w, b.String())
	return err
}
