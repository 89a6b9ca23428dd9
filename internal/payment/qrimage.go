package payment

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// RenderImage turns a provider code string into a PNG data URL a client can
// drop straight into an <img> tag.
func RenderImage(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
