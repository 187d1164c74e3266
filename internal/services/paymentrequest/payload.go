package paymentrequest

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	apperrors "parkpay/internal/errors"

	"golang.org/x/crypto/blake2b"
)

var refEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newPaymentRef returns "PR-" followed by 10 random base32 characters.
func newPaymentRef() (string, error) {
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate payment ref: %w", err)
	}
	return RefPrefix + refEncoding.EncodeToString(buf)[:10], nil
}

// checksum is a 64-bit blake2b digest of the ref, hex encoded.
func checksum(ref string) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(ref))
	return hex.EncodeToString(h.Sum(nil))
}

// Payload builds the string encoded in a request's QR code.
func Payload(baseURL, ref string) string {
	return fmt.Sprintf("%s?ref=%s&sum=%s", baseURL, url.QueryEscape(ref), checksum(ref))
}

// ParsePayload extracts the ref from a scanned payload and verifies its
// checksum, so a mistyped or tampered code never reaches the ledger.
func ParsePayload(payload string) (string, error) {
	u, err := url.Parse(payload)
	if err != nil {
		return "", apperrors.ErrPaymentRequestNotFound
	}
	q := u.Query()
	ref := q.Get("ref")
	if !strings.HasPrefix(ref, RefPrefix) || q.Get("sum") != checksum(ref) {
		return "", apperrors.ErrPaymentRequestNotFound
	}
	return ref, nil
}

func isPayload(s string) bool {
	return strings.Contains(s, "://")
}
