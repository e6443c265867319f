package sanity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "t=<unix millis>,v1=<base64url hmac>".
	SignatureHeader = "Sanity-Webhook-Signature"
	// SecretHeader carries the shared secret verbatim.
	SecretHeader = "X-Sanity-Signature"

	SignatureWindow = 5 * time.Minute
)

var (
	ErrMissingSignature       = errors.New("missing signature")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrInvalidTimestamp       = errors.New("invalid timestamp")
	ErrTimestampOutsideWindow = errors.New("timestamp outside allowed window")
)

// SignatureInput is everything VerifySignature looks at.
type SignatureInput struct {
	Secret    string
	Signature string
	Shared    string
	Body      []byte
	Now       time.Time
}

// VerifySignature accepts either a valid HMAC signature header or the shared
// secret header. An empty secret disables verification.
func VerifySignature(in SignatureInput) error {
	if in.Secret == "" {
		return nil
	}
	if sig := strings.TrimSpace(in.Signature); sig != "" {
		return verifyHMAC(in.Secret, sig, in.Body, in.Now)
	}
	if shared := strings.TrimSpace(in.Shared); shared != "" {
		if subtle.ConstantTimeCompare([]byte(shared), []byte(in.Secret)) != 1 {
			return ErrInvalidSignature
		}
		return nil
	}
	return ErrMissingSignature
}

func verifyHMAC(secret, header string, body []byte, now time.Time) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}

	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	signedAt := time.UnixMilli(millis).UTC()
	now = now.UTC()
	if signedAt.Before(now.Add(-SignatureWindow)) || signedAt.After(now.Add(SignatureWindow)) {
		return ErrTimestampOutsideWindow
	}

	provided, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(sig, "="))
	if err != nil || len(provided) == 0 {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, mac(secret, ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a signature header value for body, as the CMS would send it.
func Sign(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	return "t=" + ts + ",v1=" + base64.RawURLEncoding.EncodeToString(mac(secret, ts, body))
}

func mac(secret, ts string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(ts))
	_, _ = h.Write([]byte{'.'})
	_, _ = h.Write(body)
	return h.Sum(nil)
}
