package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/badmintontv/badmintontv/internal/pkg/billing"
	"github.com/badmintontv/badmintontv/internal/pkg/database"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
	"github.com/badmintontv/badmintontv/internal/pkg/session"
)

const (
	AUTH_KEY              string = "authenticated"
	USER_ID               string = "user_id"
	USER_NAME             string = "username"
	USER_IS_ADMIN         string = "isAdmin"
	USER_HAS_SUBSCRIPTION string = "has_subscription"
	FROM_PROTECTED        string = "from_protected"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// billingService builds a billing service for the current request.
func billingService() *billing.Service {
	return billing.NewServiceFromDB(database.GetDB(), gateway.NewStripeGatewayFromEnv())
}

// billingErrorFlash maps a billing failure to the flash message shown to the
// user instead of a 500.
func billingErrorFlash(err error) fiber.Map {
	fm := fiber.Map{"type": "error"}

	switch {
	case errors.Is(err, billing.ErrEmptyPaymentToken):
		fm["type"] = "warning"
		fm["message"] = "You must enable JavaScript for this request."
	case gateway.IsCardDeclined(err):
		fm["message"] = "Sorry, your card was declined. Try again perhaps?"
	case gateway.IsInvalidRequest(err):
		fm["message"] = err.Error()
	case gateway.IsAuthentication(err):
		fm["message"] = "Authentication with our payment gateway failed."
	case gateway.IsConnection(err):
		fm["message"] = "Our payment gateway is experiencing connectivity issues, please try again."
	default:
		fm["message"] = "Our payment gateway is having issues, please try again."
	}
	return fm
}

// setSubscriptionFlag refreshes the cached subscription state in the session
// after a lifecycle change.
func setSubscriptionFlag(c *fiber.Ctx, has bool) {
	value := "false"
	if has {
		value = "true"
	}
	_ = session.SetSessionValue(c, USER_HAS_SUBSCRIPTION, value)
}

// pageParams reads ?page= and clamps it to something sane. Returns the page
// number and the DB offset for perPage rows.
func pageParams(c *fiber.Ctx, perPage int) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, (page - 1) * perPage
}
