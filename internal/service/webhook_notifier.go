package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/rs/zerolog"
)

// DefaultWebhookRetryIntervals is the wait before each redelivery attempt.
var DefaultWebhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier POSTs every committed event to the configured URLs.
// Each request carries a timestamped HMAC-SHA256 signature of the body.
type WebhookNotifier struct {
	urls       []string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger

	mu       sync.Mutex
	lifetime context.Context
	inflight sync.WaitGroup

	// OnDelivery, if set, observes the final outcome of each delivery.
	OnDelivery func(domain.WebhookDelivery)
}

// NewWebhookNotifier creates a notifier. A nil retries slice uses DefaultWebhookRetryIntervals.
func NewWebhookNotifier(
	urls []string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	retries []time.Duration,
	log zerolog.Logger,
) *WebhookNotifier {
	if retries == nil {
		retries = DefaultWebhookRetryIntervals
	}
	return &WebhookNotifier{
		urls:       urls,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    retries,
		log:        log,
		lifetime:   context.Background(),
	}
}

// Start bounds every delivery, retries included, by ctx. Once ctx is done
// in-flight deliveries stop and new events are no longer sent; the event
// log still holds them for polling consumers.
func (n *WebhookNotifier) Start(ctx context.Context) {
	n.mu.Lock()
	n.lifetime = ctx
	n.mu.Unlock()
}

// Wait blocks until every delivery goroutine has returned.
func (n *WebhookNotifier) Wait() {
	n.inflight.Wait()
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Handle signs the event and delivers it to each URL in the background.
func (n *WebhookNotifier) Handle(_ context.Context, ev domain.Event) error {
	if len(n.urls) == 0 {
		return nil
	}

	n.mu.Lock()
	ctx := n.lifetime
	n.mu.Unlock()
	if ctx.Err() != nil {
		n.log.Warn().Str("event_id", ev.ID.String()).Msg("webhook: notifier stopped, event not sent")
		return nil
	}

	payload, err := n.buildPayload(ev)
	if err != nil {
		return err
	}

	for _, url := range n.urls {
		n.inflight.Add(1)
		go func(url string) {
			defer n.inflight.Done()
			d := n.deliver(ctx, url, ev, payload)
			if n.OnDelivery != nil {
				n.OnDelivery(d)
			}
		}(url)
	}
	return nil
}

func (n *WebhookNotifier) buildPayload(ev domain.Event) ([]byte, error) {
	body, err := json.Marshal(domain.WebhookPayload{Event: ev, SentAt: time.Now().Unix()})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}
	return body, nil
}

// deliver attempts the POST until a 2xx answer or the retry schedule runs out.
// Every attempt is stamped afresh so late retries stay inside the receiver's tolerance.
func (n *WebhookNotifier) deliver(ctx context.Context, url string, ev domain.Event, payload []byte) domain.WebhookDelivery {
	eventID := ev.ID.String()
	d := domain.WebhookDelivery{EventID: eventID, URL: url, Status: domain.WebhookStatusFailed}

	for attempt := 0; attempt <= len(n.retries); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.LastError = ctx.Err().Error()
				d.FinishedAt = time.Now()
				return d
			case <-time.After(n.retries[attempt-1]):
			}
		}
		d.Attempts = attempt + 1

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			n.log.Error().Err(err).Str("event_id", eventID).Int("attempt", d.Attempts).Msg("webhook: failed to create request")
			d.LastError = err.Error()
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderWebhookEvent, string(ev.Type))
		req.Header.Set(HeaderWebhookSignature, StampSignature(n.sigSvc, n.secret, time.Now(), payload))

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("event_id", eventID).Int("attempt", d.Attempts).Msg("webhook: delivery failed")
			d.LastError = err.Error()
			continue
		}
		resp.Body.Close()
		d.HTTPStatus = resp.StatusCode

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Info().Str("event_id", eventID).Int("attempt", d.Attempts).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			d.Status = domain.WebhookStatusDelivered
			d.LastError = ""
			d.FinishedAt = time.Now()
			return d
		}

		d.LastError = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		n.log.Warn().Str("event_id", eventID).Int("attempt", d.Attempts).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	n.log.Error().Str("event_id", eventID).Str("url", url).Msg("webhook: all retry attempts exhausted")
	d.FinishedAt = time.Now()
	return d
}

var _ ports.EventSubscriber = (*WebhookNotifier)(nil)
