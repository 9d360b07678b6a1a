// Package voice adapts the conversational voice vendor.
//
// This file implements post-call webhook signature verification. The vendor
// signs each delivery with HMAC-SHA256 over "<timestamp>.<body>" and sends
// the result in a header of the form "t=<unix>,v0=<hex digest>".
package voice

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the webhook signature header name.
const SignatureHeader = "ElevenLabs-Signature"

// signatureTolerance is how far a delivery timestamp may drift before the
// signature is rejected as stale.
const signatureTolerance = 30 * time.Minute

// Signature verification errors.
var (
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrMalformedSignature = errors.New("malformed webhook signature")
	ErrStaleSignature     = errors.New("webhook signature timestamp outside tolerance")
	ErrInvalidSignature   = errors.New("webhook signature mismatch")
)

// VerifySignature checks a webhook delivery against the shared secret.
// The header carries "t=<unix>,v0=<hex>"; the digest is HMAC-SHA256 of
// "<unix>.<payload>" keyed with the secret.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp, digest string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch k {
		case "t":
			timestamp = v
		case "v0":
			digest = v
		}
	}
	if timestamp == "" || digest == "" {
		return ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift > signatureTolerance || drift < -signatureTolerance {
		return ErrStaleSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(digest)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignPayload produces a signature header value for the given payload.
// Used by tests and local tooling to fabricate valid deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", ts, payload)
	return "t=" + ts + ",v0=" + hex.EncodeToString(mac.Sum(nil))
}
