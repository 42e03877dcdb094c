package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/usercontext"
)

const billingRequestTimeout = 20 * time.Second

const invoicesPerPage = 12

// HandlePricing displays the plans. Subscribed users are sent to the change
// page instead.
func HandlePricing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn && userCtx.HasSubscription {
		return c.Redirect("/subscription/update", fiber.StatusSeeOther)
	}

	return c.JSON(fiber.Map{
		"page":  "pricing",
		"plans": billingService().Catalog().Plans,
		"flash": flash.Get(c),
	})
}

// HandleSubscriptionCreate subscribes the user to the plan chosen on the
// pricing page. GET renders the payment form for ?id=<plan>; POST submits
// the tokenized card.
func HandleSubscriptionCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := billingService()

	if userCtx.HasSubscription {
		fm := fiber.Map{
			"type":    "info",
			"message": "You already have an active subscription.",
		}
		return flash.WithInfo(c, fm).Redirect("/settings")
	}

	if c.Method() == fiber.MethodGet {
		plan := svc.Catalog().PlanByID(c.Query("id"))
		if plan == nil {
			fm := fiber.Map{
				"type":    "error",
				"message": "Sorry, that plan does not exist.",
			}
			return flash.WithError(c, fm).Redirect("/pricing")
		}
		return c.JSON(fiber.Map{
			"page":  "payment_method",
			"plan":  plan,
			"flash": flash.Get(c),
		})
	}

	planID := c.FormValue("id")
	plan := svc.Catalog().PlanByID(planID)
	if plan == nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Sorry, that plan does not exist.",
		}
		return flash.WithError(c, fm).Redirect("/pricing")
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	err = svc.Subscribe(ctx, user, c.FormValue("name"), planID, c.FormValue("stripe_token"))
	if err != nil {
		return flash.WithError(c, billingErrorFlash(err)).Redirect("/settings")
	}

	setSubscriptionFlag(c, true)

	fm := fiber.Map{
		"type":    "success",
		"message": fmt.Sprintf("Awesome, thanks for subscribing to the %s plan!", strings.ToLower(plan.Name)),
	}
	return flash.WithSuccess(c, fm).Redirect("/settings")
}

// HandleSubscriptionUpdate stages a plan change for the next billing cycle.
// The pricing form submits the choice as a button named submit_<plan id>.
func HandleSubscriptionUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := billingService()

	user, err := repository.GetGlobalRepositories().User.GetWithBilling(userCtx.UserID)
	if err != nil || user.Subscription == nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "You do not have an active subscription.",
		}
		return flash.WithError(c, fm).Redirect("/settings")
	}

	if c.Method() == fiber.MethodGet {
		return c.JSON(fiber.Map{
			"page":      "change_plan",
			"plans":     svc.Catalog().Plans,
			"next_plan": svc.Catalog().PlanByID(user.Subscription.NewPlanID),
			"flash":     flash.Get(c),
		})
	}

	var formKeys []string
	c.Request().PostArgs().VisitAll(func(key, _ []byte) {
		formKeys = append(formKeys, string(key))
	})

	newPlan := svc.Catalog().PlanFromForm(formKeys)
	if newPlan == nil || newPlan.ID == user.Subscription.NewPlanID {
		return c.Redirect("/subscription/update", fiber.StatusSeeOther)
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	if err := svc.ChangePlan(ctx, user, newPlan.ID); err != nil {
		return flash.WithError(c, billingErrorFlash(err)).Redirect("/settings")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "Your subscription has been updated.",
	}
	return flash.WithSuccess(c, fm).Redirect("/settings")
}

// HandleSubscriptionCancel ends the subscription immediately.
func HandleSubscriptionCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetWithBilling(userCtx.UserID)
	if err != nil || user.Subscription == nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "You do not have an active subscription.",
		}
		return flash.WithError(c, fm).Redirect("/settings")
	}

	if c.Method() == fiber.MethodGet {
		return c.JSON(fiber.Map{
			"page":  "cancel_subscription",
			"flash": flash.Get(c),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	if err := billingService().Cancel(ctx, user); err != nil {
		return flash.WithError(c, billingErrorFlash(err)).Redirect("/settings")
	}

	setSubscriptionFlag(c, false)

	fm := fiber.Map{
		"type":    "success",
		"message": "Sorry to see you go! Your subscription has been cancelled.",
	}
	return flash.WithSuccess(c, fm).Redirect("/")
}

// HandlePaymentMethodUpdate swaps the card on file for a new tokenized one.
func HandlePaymentMethodUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetWithBilling(userCtx.UserID)
	if err != nil || user.Card == nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "You do not have a payment method on file.",
		}
		return flash.WithError(c, fm).Redirect("/settings")
	}

	if c.Method() == fiber.MethodGet {
		return c.JSON(fiber.Map{
			"page":  "update_payment_method",
			"card":  user.Card,
			"flash": flash.Get(c),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
	defer cancel()

	err = billingService().UpdatePaymentMethod(ctx, user, user.Card, c.FormValue("name"), c.FormValue("stripe_token"))
	if err != nil {
		return flash.WithError(c, billingErrorFlash(err)).Redirect("/settings")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "Your payment method has been updated.",
	}
	return flash.WithSuccess(c, fm).Redirect("/settings")
}

// HandleBillingDetails shows the invoice history plus the upcoming bill for
// active subscribers.
func HandleBillingDetails(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := billingService()

	page, offset := pageParams(c, invoicesPerPage)
	invoices, total, err := svc.BillingHistory(userCtx.UserID, offset, invoicesPerPage)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load billing history")
	}

	payload := fiber.Map{
		"page":     "billing_details",
		"invoices": invoices,
		"total":    total,
		"current":  page,
		"flash":    flash.Get(c),
	}

	if userCtx.HasSubscription {
		user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
		if err == nil && user.PaymentID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), billingRequestTimeout)
			defer cancel()
			if next, err := svc.UpcomingInvoice(ctx, user.PaymentID); err == nil {
				payload["upcoming_invoice"] = next
			}
		}
	}

	return c.JSON(payload)
}
