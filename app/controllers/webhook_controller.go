package controllers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
)

// WebhookReconciler is the part of the billing package the webhook endpoints
// drive. Injected so the endpoints can be tested without a DB or provider.
type WebhookReconciler interface {
	SubscriptionUpdated(ctx context.Context, eventID string) error
	InvoicePaymentSucceeded(ctx context.Context, eventID string) error
	InvoicePaymentFailed(ctx context.Context, eventID string) error
}

// WebhookController receives provider webhook deliveries. The delivered body
// is untrusted; only the event ID is read from it and the reconciler fetches
// the event back from the provider before acting.
type WebhookController struct {
	rec WebhookReconciler
}

// NewWebhookController creates a webhook controller around a reconciler.
func NewWebhookController(rec WebhookReconciler) *WebhookController {
	return &WebhookController{rec: rec}
}

// RegisterRoutes mounts the webhook endpoints. They are exempt from CSRF;
// verification happens by fetching the event from the provider.
func (wc *WebhookController) RegisterRoutes(app fiber.Router) {
	group := app.Group("/stripe_webhook")
	group.Post("/subscription_updated", wc.HandleSubscriptionUpdated)
	group.Post("/invoice_payment_succeeded", wc.HandleInvoicePaymentSucceeded)
	group.Post("/invoice_payment_failed", wc.HandleInvoicePaymentFailed)
}

// HandleSubscriptionUpdated receives customer.subscription.updated.
func (wc *WebhookController) HandleSubscriptionUpdated(c *fiber.Ctx) error {
	return wc.handle(c, wc.rec.SubscriptionUpdated)
}

// HandleInvoicePaymentSucceeded receives invoice.payment_succeeded.
func (wc *WebhookController) HandleInvoicePaymentSucceeded(c *fiber.Ctx) error {
	return wc.handle(c, wc.rec.InvoicePaymentSucceeded)
}

// HandleInvoicePaymentFailed receives invoice.payment_failed.
func (wc *WebhookController) HandleInvoicePaymentFailed(c *fiber.Ctx) error {
	return wc.handle(c, wc.rec.InvoicePaymentFailed)
}

// handle applies the shared delivery envelope policy:
//   - body that is not JSON, or has no event id: 406, the delivery is junk
//   - event the provider cannot verify: 422, worth a redelivery
//   - any other failure: 200 with the error in the body, so the provider
//     stops retrying a delivery we will never be able to process
//   - success: 200
func (wc *WebhookController) handle(c *fiber.Ctx, apply func(context.Context, string) error) error {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		return c.Status(fiber.StatusNotAcceptable).JSON(fiber.Map{
			"error": "Mime-type is not application/json",
		})
	}
	if envelope.ID == "" {
		return c.Status(fiber.StatusNotAcceptable).JSON(fiber.Map{
			"error": "Invalid webhook event",
		})
	}

	if err := apply(c.Context(), envelope.ID); err != nil {
		if gateway.IsInvalidRequest(err) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}
