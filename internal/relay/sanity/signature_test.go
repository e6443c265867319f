package sanity

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"_type":"blog"}`)
	valid := Sign("s3cret", now.Add(-time.Minute), body)

	tests := []struct {
		name string
		in   SignatureInput
		want error
	}{
		{name: "verification disabled", in: SignatureInput{Body: body, Now: now}},
		{name: "valid hmac", in: SignatureInput{Secret: "s3cret", Signature: valid, Body: body, Now: now}},
		{name: "hmac wins over shared", in: SignatureInput{Secret: "s3cret", Signature: valid, Shared: "wrong", Body: body, Now: now}},
		{name: "valid shared secret", in: SignatureInput{Secret: "s3cret", Shared: "s3cret", Body: body, Now: now}},
		{name: "wrong shared secret", in: SignatureInput{Secret: "s3cret", Shared: "nope", Body: body, Now: now}, want: ErrInvalidSignature},
		{name: "missing", in: SignatureInput{Secret: "s3cret", Body: body, Now: now}, want: ErrMissingSignature},
		{name: "tampered body", in: SignatureInput{Secret: "s3cret", Signature: valid, Body: []byte(`{"_type":"author"}`), Now: now}, want: ErrInvalidSignature},
		{name: "other secret", in: SignatureInput{Secret: "other", Signature: valid, Body: body, Now: now}, want: ErrInvalidSignature},
		{name: "bad timestamp", in: SignatureInput{Secret: "s3cret", Signature: "t=abc,v1=xyz", Body: body, Now: now}, want: ErrInvalidTimestamp},
		{name: "stale", in: SignatureInput{Secret: "s3cret", Signature: valid, Body: body, Now: now.Add(10 * time.Minute)}, want: ErrTimestampOutsideWindow},
		{name: "from the future", in: SignatureInput{Secret: "s3cret", Signature: valid, Body: body, Now: now.Add(-10 * time.Minute)}, want: ErrTimestampOutsideWindow},
		{name: "garbage signature", in: SignatureInput{Secret: "s3cret", Signature: "t=" + strconv.FormatInt(now.UnixMilli(), 10) + ",v1=***", Body: body, Now: now}, want: ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignFormat(t *testing.T) {
	at := time.UnixMilli(1748779200000)
	sig := Sign("s3cret", at, []byte("{}"))
	assert.Regexp(t, `^t=1748779200000,v1=[A-Za-z0-9_-]+$`, sig)
}
