package util

import (
	"math/rand"
	"strconv"
	"time"
)

const barcodeSuffixLen = 4

// NewBarcode generates a scan-friendly barcode: millisecond timestamp
// plus a short base36 suffix. Uniqueness is best effort; collision
// probability is negligible at shop volumes.
func NewBarcode() string {
	suffix := make([]byte, barcodeSuffixLen)
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + string(suffix)
}
