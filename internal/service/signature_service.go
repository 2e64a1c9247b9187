package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wildlife-governance/internal/core/ports"
)

// Webhook request headers.
const (
	HeaderWebhookSignature = "X-Wildlife-Signature"
	HeaderWebhookEvent     = "X-Wildlife-Event"
)

// DefaultSignatureTolerance bounds the age of a stamped signature.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrStaleSignature     = errors.New("signature timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// HMACSignatureService implements ports.SignatureService with lowercase hex HMAC-SHA256.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	return hmac.Equal([]byte(s.Sign(secretKey, payload)), []byte(signature))
}

// StampSignature returns the header value "t=<unix>,v1=<hex>" where the MAC
// covers "<unix>.<body>". Binding the timestamp lets receivers reject replays.
func StampSignature(signer ports.SignatureService, secret string, at time.Time, body []byte) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, signer.Sign(secret, stampedContent(ts, body)))
}

// VerifyStampedSignature checks a header produced by StampSignature against body.
func VerifyStampedSignature(signer ports.SignatureService, secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	age := now.Sub(time.Unix(ts, 0))
	if age < -tolerance || age > tolerance {
		return ErrStaleSignature
	}
	content := stampedContent(ts, body)
	for _, sig := range sigs {
		if signer.Verify(secret, content, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func stampedContent(ts int64, body []byte) string {
	return strconv.FormatInt(ts, 10) + "." + string(body)
}

// parseSignatureHeader accepts several v1 entries so secrets can be rotated.
func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		ts    int64
		hasTS bool
		sigs  []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			ts, hasTS = n, true
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if !hasTS || len(sigs) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return ts, sigs, nil
}
