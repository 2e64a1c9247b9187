package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func testEvent() domain.Event {
	id := int64(7)
	return domain.Event{
		Seq:        3,
		ID:         uuid.New(),
		Type:       domain.EventProjectStatusChanged,
		ProjectID:  &id,
		Data:       domain.StatusChange{From: domain.ProjectStatusValidating, To: domain.ProjectStatusApproved},
		OccurredAt: time.Now().UTC(),
	}
}

func TestWebhookNotifier_Handle_DeliversSignedEvent(t *testing.T) {
	sigSvc := NewHMACSignatureService()

	type received struct {
		payload   domain.WebhookPayload
		eventType string
		verifyErr error
	}
	delivered := make(chan received, 1)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			body, _ := io.ReadAll(req.Body)
			var r received
			_ = json.Unmarshal(body, &r.payload)
			r.eventType = req.Header.Get(HeaderWebhookEvent)
			r.verifyErr = VerifyStampedSignature(sigSvc, "whsec", req.Header.Get(HeaderWebhookSignature), body, time.Now(), DefaultSignatureTolerance)
			delivered <- r
			return okResponse(http.StatusOK), nil
		},
	}

	n := NewWebhookNotifier([]string{"https://hooks.example.com/dao"}, "whsec", sigSvc, httpClient, []time.Duration{}, newTestLogger())
	ev := testEvent()
	require.NoError(t, n.Handle(context.Background(), ev))

	select {
	case r := <-delivered:
		assert.NoError(t, r.verifyErr)
		assert.Equal(t, string(domain.EventProjectStatusChanged), r.eventType)
		assert.Equal(t, ev.ID, r.payload.Event.ID)
		assert.Equal(t, domain.EventProjectStatusChanged, r.payload.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered in time")
	}
}

func TestWebhookNotifier_Handle_UsesInjectedSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSigSvc := mocks.NewMockSignatureService(ctrl)
	mockSigSvc.EXPECT().Sign("whsec", gomock.Any()).Return("deadbeef")

	headers := make(chan string, 1)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			headers <- req.Header.Get(HeaderWebhookSignature)
			return okResponse(http.StatusAccepted), nil
		},
	}

	n := NewWebhookNotifier([]string{"https://hooks.example.com/dao"}, "whsec", mockSigSvc, httpClient, []time.Duration{}, newTestLogger())
	require.NoError(t, n.Handle(context.Background(), testEvent()))

	select {
	case h := <-headers:
		assert.Regexp(t, `^t=\d+,v1=deadbeef$`, h)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered in time")
	}
}

func TestWebhookNotifier_Handle_NoURLs(t *testing.T) {
	n := NewWebhookNotifier(nil, "whsec", nil, nil, nil, newTestLogger())
	assert.NoError(t, n.Handle(context.Background(), testEvent()))
}

func TestWebhookNotifier_Deliver_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return nil, errors.New("connection refused")
			case 2:
				return okResponse(http.StatusServiceUnavailable), nil
			default:
				return okResponse(http.StatusNoContent), nil
			}
		},
	}

	n := NewWebhookNotifier(nil, "", NewHMACSignatureService(), httpClient, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, newTestLogger())
	d := n.deliver(context.Background(), "https://hooks.example.com", testEvent(), []byte(`{}`))

	assert.Equal(t, domain.WebhookStatusDelivered, d.Status)
	assert.Equal(t, 3, d.Attempts)
	assert.Equal(t, http.StatusNoContent, d.HTTPStatus)
	assert.Empty(t, d.LastError)
}

func TestWebhookNotifier_Deliver_ExhaustsRetries(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return okResponse(http.StatusInternalServerError), nil
		},
	}

	n := NewWebhookNotifier(nil, "", NewHMACSignatureService(), httpClient, []time.Duration{time.Millisecond}, newTestLogger())
	d := n.deliver(context.Background(), "https://hooks.example.com", testEvent(), []byte(`{}`))

	assert.Equal(t, domain.WebhookStatusFailed, d.Status)
	assert.Equal(t, 2, d.Attempts)
	assert.Equal(t, "unexpected status 500", d.LastError)
}

func TestWebhookNotifier_Deliver_StopsOnCancel(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("timeout")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewWebhookNotifier(nil, "", NewHMACSignatureService(), httpClient, []time.Duration{time.Hour}, newTestLogger())
	d := n.deliver(ctx, "https://hooks.example.com", testEvent(), []byte(`{}`))

	assert.Equal(t, domain.WebhookStatusFailed, d.Status)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, context.Canceled.Error(), d.LastError)
}

func TestWebhookNotifier_CancelStopsPendingRetries(t *testing.T) {
	var attempts atomic.Int32
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			attempts.Add(1)
			return okResponse(http.StatusServiceUnavailable), nil
		},
	}

	outcomes := make(chan domain.WebhookDelivery, 1)
	n := NewWebhookNotifier([]string{"https://hooks.example.com/dao"}, "whsec", NewHMACSignatureService(), httpClient, []time.Duration{time.Hour}, newTestLogger())
	n.OnDelivery = func(d domain.WebhookDelivery) { outcomes <- d }

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)
	require.NoError(t, n.Handle(context.Background(), testEvent()))

	require.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	waited := make(chan struct{})
	go func() {
		n.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancel")
	}

	d := <-outcomes
	assert.Equal(t, domain.WebhookStatusFailed, d.Status)
	assert.Equal(t, context.Canceled.Error(), d.LastError)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestWebhookNotifier_StoppedNotifierSendsNothing(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Error("no request expected after stop")
			return okResponse(http.StatusOK), nil
		},
	}
	n := NewWebhookNotifier([]string{"https://hooks.example.com/dao"}, "whsec", NewHMACSignatureService(), httpClient, nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Start(ctx)

	require.NoError(t, n.Handle(context.Background(), testEvent()))
	n.Wait()
}
