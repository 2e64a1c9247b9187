package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := `{"type":"vote.cast","project_id":7,"data":{"support":true,"weight":150}}`

	signature := svc.Sign("my-secret-key", payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify("my-secret-key", payload, signature))
	assert.False(t, svc.Verify("wrong-key", payload, signature))
	assert.False(t, svc.Verify("my-secret-key", payload+" ", signature))
	assert.False(t, svc.Verify("my-secret-key", payload, "invalidsignature"))
	assert.Equal(t, signature, svc.Sign("my-secret-key", payload))
}

func TestStampSignature_RoundTrip(t *testing.T) {
	svc := NewHMACSignatureService()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	body := []byte(`{"event":{"seq":3,"type":"project.status_changed"}}`)

	header := StampSignature(svc, "whsec", at, body)

	assert.Regexp(t, fmt.Sprintf(`^t=%d,v1=[0-9a-f]{64}$`, at.Unix()), header)
	require.NoError(t, VerifyStampedSignature(svc, "whsec", header, body, at.Add(time.Minute), DefaultSignatureTolerance))
}

func TestVerifyStampedSignature_Rejections(t *testing.T) {
	svc := NewHMACSignatureService()
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	body := []byte(`{"seq":1}`)
	header := StampSignature(svc, "whsec", at, body)

	tests := []struct {
		name    string
		secret  string
		header  string
		body    []byte
		now     time.Time
		wantErr error
	}{
		{"wrong secret", "other", header, body, at, ErrSignatureMismatch},
		{"tampered body", "whsec", header, []byte(`{"seq":2}`), at, ErrSignatureMismatch},
		{"replayed late", "whsec", header, body, at.Add(10 * time.Minute), ErrStaleSignature},
		{"from the future", "whsec", header, body, at.Add(-10 * time.Minute), ErrStaleSignature},
		{"no timestamp", "whsec", "v1=abc", body, at, ErrMalformedSignature},
		{"no signature", "whsec", fmt.Sprintf("t=%d", at.Unix()), body, at, ErrMalformedSignature},
		{"garbage", "whsec", "not-a-header", body, at, ErrMalformedSignature},
		{"bad timestamp", "whsec", "t=soon,v1=abc", body, at, ErrMalformedSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyStampedSignature(svc, tt.secret, tt.header, tt.body, tt.now, DefaultSignatureTolerance)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyStampedSignature_AcceptsAnyRotatedSecret(t *testing.T) {
	svc := NewHMACSignatureService()
	at := time.Unix(1_770_000_000, 0)
	body := []byte(`{}`)
	content := fmt.Sprintf("%d.%s", at.Unix(), body)

	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", at.Unix(), svc.Sign("old", content), svc.Sign("new", content))

	assert.NoError(t, VerifyStampedSignature(svc, "new", header, body, at, time.Minute))
	assert.NoError(t, VerifyStampedSignature(svc, "old", header, body, at, time.Minute))
}
