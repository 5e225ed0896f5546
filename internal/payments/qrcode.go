package payments

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

// ErrNoQRCode is returned when a settlement carries no Pix code.
var ErrNoQRCode = errors.New("payments: settlement has no pix code")

const defaultQRSize = 256

// PixQRCode renders the Pix copy-paste code as a PNG. When only the PSP's
// base64 image is present it is decoded and returned as is.
func PixQRCode(s domain.Settlement, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	if code := strings.TrimSpace(s.QRCode); code != "" {
		return qrcode.Encode(code, qrcode.Medium, size)
	}
	if b64 := strings.TrimSpace(s.QRCodeBase64); b64 != "" {
		b64 = strings.TrimPrefix(b64, "data:image/png;base64,")
		return base64.StdEncoding.DecodeString(b64)
	}
	return nil, ErrNoQRCode
}
