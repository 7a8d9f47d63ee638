package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/TeamDesk/internal/pkg/billing"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/env"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/metrics"
)

// WebhookController handles inbound payment-provider webhooks. Secret and
// clock are injectable for tests.
type WebhookController struct {
	Service *billing.Service
	Secret  func() string
	Now     func() time.Time
}

// NewWebhookController wires the controller against the configured secret and
// the real clock.
func NewWebhookController(svc *billing.Service) *WebhookController {
	return &WebhookController{
		Service: svc,
		Secret:  func() string { return env.GetEnv("STRIPE_WEBHOOK_SECRET", "") },
		Now:     time.Now,
	}
}

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// HandleStripeWebhook runs the intake pipeline: verify, admit, apply, finalize.
// Verification and shape errors are rejected before ledger admission and leave
// no retry state; processing failures return a non-2xx so the provider retries
// the same event id.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	if err := billing.VerifySignature(rawBody, c.Get("Stripe-Signature"), wc.Secret(), wc.Now()); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": signatureErrorCode(err)})
	}

	var payload stripeEnvelope
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json"})
	}
	if payload.ID == "" || payload.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_stripe_event"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := wc.Service.Process(ctx, billing.EventInput{
		Provider:  billing.ProviderStripe,
		EventID:   payload.ID,
		EventType: payload.Type,
		Payload:   string(rawBody),
		Object:    payload.Data.Object,
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(billing.ProviderStripe, "failed").Inc()
		// Internal detail stays in the ledger; the provider only needs a
		// retryable status.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	if res.Duplicate {
		metrics.WebhookEvents.WithLabelValues(billing.ProviderStripe, "duplicate").Inc()
		return c.JSON(fiber.Map{
			"status":    "ignored",
			"reason":    "duplicate",
			"event_id":  res.EventID,
			"duplicate": true,
		})
	}

	if res.Outcome.Applied() {
		metrics.WebhookEvents.WithLabelValues(billing.ProviderStripe, "processed").Inc()
		return c.JSON(fiber.Map{"status": "ok", "event_id": res.EventID})
	}

	metrics.WebhookEvents.WithLabelValues(billing.ProviderStripe, res.Outcome.Reason()).Inc()
	return c.JSON(fiber.Map{
		"status":   "ignored",
		"reason":   res.Outcome.Reason(),
		"event_id": res.EventID,
	})
}

func signatureErrorCode(err error) string {
	switch {
	case errors.Is(err, billing.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, billing.ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(err, billing.ErrStaleSignature):
		return "stale_signature"
	default:
		return "invalid_signature"
	}
}
