package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const SignatureHeader = "x-signature"

var (
	ErrMissingSignature   = errors.New("mercadopago: missing signature header")
	ErrMalformedSignature = errors.New("mercadopago: malformed signature header")
	ErrSignatureMismatch  = errors.New("mercadopago: signature mismatch")
)

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(body []byte, secret string) string {
	hash := hmac.New(sha256.New, []byte(secret))
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// ParseSignatureHeader extracts the v1 digest from "v1=<hex>" or
// "ts=<unix>,v1=<hex>".
func ParseSignatureHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingSignature
	}

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "v1" {
			value = strings.TrimSpace(value)
			if value == "" {
				return "", ErrMalformedSignature
			}
			return value, nil
		}
	}

	return "", ErrMalformedSignature
}

// VerifySignature checks the header digest against the raw body in constant time.
func VerifySignature(body []byte, header, secret string) error {
	delivered, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	got, err := hex.DecodeString(delivered)
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}
