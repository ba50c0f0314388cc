package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"renderfarm/task-engine/pkg/logger"
	"renderfarm/task-engine/pkg/task"
)

// TypeWebhookNotify is the registry name of the webhook task type.
const TypeWebhookNotify = "WebhookNotify"

// Attribute names declared by WebhookNotify.
const (
	attrURL     = "url"
	attrTimeout = "timeout"
	attrRetries = "retries"
	attrHeaders = "headers"
	attrMessage = "message"
	attrPayload = "payload"
)

const (
	defaultWebhookTimeout = 30 * time.Second
	webhookRetryDelay     = time.Second
)

var webhookSchema = task.BaseSchema.Extend(
	task.Attribute{Name: attrURL, Type: task.TypeString, Required: true, Configurable: true, Serialize: true,
		Description: "Endpoint that receives the POSTed status payload."},
	task.Attribute{Name: attrTimeout, Type: task.TypeString, Default: "30s", Configurable: true, Serialize: true,
		Description: "Per-attempt request timeout, as a duration string."},
	task.Attribute{Name: attrRetries, Type: task.TypeInt, Default: 0, Configurable: true, Serialize: true,
		Description: "Extra delivery attempts after a failure."},
	task.Attribute{Name: attrHeaders, Type: task.TypeMap, Configurable: true, Serialize: true,
		Description: "Additional request headers."},
	task.Attribute{Name: attrMessage, Type: task.TypeString, Configurable: true, Serialize: true,
		Description: "Free-form message included in the payload."},
	task.Attribute{Name: attrPayload, Type: task.TypeMap, Configurable: true, Serialize: true,
		Description: "Extra fields merged into the payload. Standard fields win on collision."},
)

// The notify tasks of every workflow share one connection pool.
var (
	webhookClient     *fasthttp.Client
	webhookClientOnce sync.Once
)

func sharedWebhookClient() *fasthttp.Client {
	webhookClientOnce.Do(func() {
		webhookClient = &fasthttp.Client{
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         defaultWebhookTimeout,
			WriteTimeout:        defaultWebhookTimeout,
		}
	})
	return webhookClient
}

// WebhookNotify posts a JSON status payload to an HTTP endpoint. A
// notification step for pipeline integration; it carries no farm
// transport duties.
type WebhookNotify struct {
	*task.Base

	// client overrides the shared pool. Tests inject one here.
	client *fasthttp.Client
}

// NewWebhookNotify creates an unconfigured WebhookNotify task.
func NewWebhookNotify() *WebhookNotify {
	return &WebhookNotify{Base: task.NewBase(TypeWebhookNotify, webhookSchema)}
}

// Validate checks the base schema, the timeout syntax and the retry
// count.
func (w *WebhookNotify) Validate() error {
	if err := w.Base.Validate(); err != nil {
		return err
	}
	if _, err := w.timeout(); err != nil {
		return task.NewValidationError(w.Name(), attrTimeout, err.Error())
	}
	if w.retries() < 0 {
		return task.NewValidationError(w.Name(), attrRetries, "retries must not be negative")
	}
	return nil
}

// Run delivers the payload, retrying failed attempts with a short delay.
func (w *WebhookNotify) Run(ctx context.Context) *task.Result {
	started := time.Now()
	result := &task.Result{Task: w.Name()}

	if err := w.deliver(ctx); err != nil {
		result.Status = 1
		result.Err = err
		logger.Error("webhook delivery failed",
			zap.String("task", w.Name()),
			zap.Error(err))
	}

	result.Duration = time.Since(started)
	return result
}

func (w *WebhookNotify) deliver(ctx context.Context) error {
	timeout, err := w.timeout()
	if err != nil {
		return err
	}
	body, err := w.payloadBody()
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	attempts := w.retries() + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(webhookRetryDelay):
			}
		}

		lastErr = w.post(body, timeout)
		if lastErr == nil {
			logger.Info("webhook delivered",
				zap.String("task", w.Name()),
				zap.Int("attempt", attempt))
			return nil
		}
		logger.Warn("webhook attempt failed",
			zap.String("task", w.Name()),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return lastErr
}

// post sends one delivery attempt.
func (w *WebhookNotify) post(body []byte, timeout time.Duration) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(task.AttrOr(w, attrURL, ""))
	req.Header.SetContentType("application/json")
	for k, v := range stringMap(w, attrHeaders) {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	client := w.client
	if client == nil {
		client = sharedWebhookClient()
	}

	if err := client.DoDeadline(req, resp, time.Now().Add(timeout)); err != nil {
		if err == fasthttp.ErrTimeout {
			return fmt.Errorf("request timed out after %s", timeout)
		}
		return err
	}

	code := resp.StatusCode()
	if code < fasthttp.StatusOK || code >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}

// payloadBody builds the JSON body. Extra payload fields never override
// the standard ones.
func (w *WebhookNotify) payloadBody() ([]byte, error) {
	body := map[string]any{
		"task":    w.Name(),
		"type":    w.TypeName(),
		"status":  "ok",
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	}
	if msg := task.AttrOr(w, attrMessage, ""); msg != "" {
		body["message"] = msg
	}
	if extra, err := task.Coerce(task.TypeMap, w.Get(attrPayload)); err == nil && extra != nil {
		for k, v := range extra.(map[string]any) {
			if _, taken := body[k]; !taken {
				body[k] = v
			}
		}
	}
	return json.Marshal(body)
}

func (w *WebhookNotify) timeout() (time.Duration, error) {
	raw := task.AttrOr(w, attrTimeout, "")
	if raw == "" {
		return defaultWebhookTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return d, nil
}

func (w *WebhookNotify) retries() int {
	n, _ := task.IntAttr(w, attrRetries)
	return n
}

func init() {
	task.Register(TypeWebhookNotify, func() task.Task { return NewWebhookNotify() })
}
