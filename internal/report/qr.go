package report

import (
	"encoding/hex"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DigestQR renders the output digest as a PNG QR code holding
// "sha256:<name>:<hex>", so a scanned code names the file it vouches for.
func DigestQR(name, digest string, size int) ([]byte, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if raw, err := hex.DecodeString(digest); err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid sha256 digest %q", digest)
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(digestPayload(name, digest), qrcode.Medium, size)
}

func digestPayload(name, digest string) string {
	return "sha256:" + strings.ReplaceAll(name, ":", "_") + ":" + digest
}
