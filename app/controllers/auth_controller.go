package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/jobqueue"
	"github.com/badmintontv/badmintontv/internal/pkg/session"
	"github.com/badmintontv/badmintontv/internal/pkg/usercontext"
)

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		if isLoggedIn(c) {
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		return c.JSON(fiber.Map{
			"page":  "register",
			"flash": flash.Get(c),
		})
	}

	fm := fiber.Map{"type": "error"}

	username := strings.TrimSpace(c.FormValue("username"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")

	user, err := models.CreateUser(username, email, password)
	if err != nil {
		fm["message"] = err.Error()
		return flash.WithError(c, fm).Redirect("/register")
	}

	if err := user.GenerateConfirmationToken(); err != nil {
		fm["message"] = "Something went wrong, please try again"
		return flash.WithError(c, fm).Redirect("/register")
	}

	userRepo := repository.GetGlobalRepositories().User
	if _, err := userRepo.GetByEmail(email); err == nil {
		fm["message"] = "An account with this email already exists"
		return flash.WithError(c, fm).Redirect("/register")
	}
	if _, err := userRepo.GetByUsername(username); err == nil {
		fm["message"] = "This username is taken"
		return flash.WithError(c, fm).Redirect("/register")
	}

	if err := userRepo.Create(user); err != nil {
		fm["message"] = "Could not create your account, please try again"
		return flash.WithError(c, fm).Redirect("/register")
	}

	if err := jobqueue.EnqueueEmailDelivery(user.ID, jobqueue.EmailKindConfirmation); err != nil {
		// The account exists; the user can request a new confirmation mail.
		log.Errorf("[Auth] failed to enqueue confirmation email for %s: %v", user.Username, err)
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Your account has been created, check your email to confirm it",
	}
	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		if isLoggedIn(c) {
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		return c.JSON(fiber.Map{
			"page":  "login",
			"flash": flash.Get(c),
		})
	}

	fm := fiber.Map{"type": "error"}

	// The form accepts username or email
	identity := strings.TrimSpace(c.FormValue("identity"))
	password := c.FormValue("password")

	user, err := repository.GetGlobalRepositories().User.GetByIdentity(identity)
	if err != nil {
		fm["message"] = "Identity or password is incorrect"
		return flash.WithError(c, fm).Redirect("/login")
	}

	if !user.CheckPassword(password) {
		fm["message"] = "Identity or password is incorrect"
		return flash.WithError(c, fm).Redirect("/login")
	}

	if !user.Active {
		fm["message"] = "This account has been disabled"
		return flash.WithError(c, fm).Redirect("/login")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/login")
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Username)
	sess.Set(USER_IS_ADMIN, user.IsAdmin())

	if err := sess.Save(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/login")
	}

	user.UpdateActivityTracking(c.IP())
	if err := repository.GetGlobalRepositories().User.Update(user); err != nil {
		log.Errorf("[Auth] failed to update sign-in tracking for %s: %v", user.Username, err)
	}

	fm = fiber.Map{
		"type":    "success",
		"message": fmt.Sprintf("Welcome back, %s", user.Username),
	}
	return flash.WithSuccess(c, fm).Redirect("/")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Errorf("[Auth] failed to destroy session: %v", err)
		}
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "You have been logged out",
	}
	return flash.WithSuccess(c, fm).Redirect("/login")
}

// HandleAuthConfirm confirms an account from the emailed token.
func HandleAuthConfirm(c *fiber.Ctx) error {
	token := c.Params("token")

	userRepo := repository.GetGlobalRepositories().User
	user, err := userRepo.GetByConfirmationToken(token)
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "This confirmation link is invalid or has expired",
		}
		return flash.WithError(c, fm).Redirect("/login")
	}

	user.Confirmed = true
	user.ConfirmationToken = ""
	if err := userRepo.Update(user); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Something went wrong, please try again",
		}
		return flash.WithError(c, fm).Redirect("/login")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "Your email has been confirmed",
	}
	return flash.WithSuccess(c, fm).Redirect("/login")
}

// Reset links expire after a day.
const resetTokenMaxAge = 24 * time.Hour

// HandlePasswordResetBegin mails a reset link. The response is the same
// whether or not the address has an account.
func HandlePasswordResetBegin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		if isLoggedIn(c) {
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		return c.JSON(fiber.Map{
			"page":  "begin_password_reset",
			"flash": flash.Get(c),
		})
	}

	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))

	fm := fiber.Map{
		"type":    "success",
		"message": "If that address has an account, a reset link is on its way",
	}

	userRepo := repository.GetGlobalRepositories().User
	user, err := userRepo.GetByEmail(email)
	if err != nil {
		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	if err := user.GenerateResetToken(); err != nil {
		fm = fiber.Map{"type": "error", "message": "Something went wrong, please try again"}
		return flash.WithError(c, fm).Redirect("/account/begin_password_reset")
	}
	if err := userRepo.Update(user); err != nil {
		fm = fiber.Map{"type": "error", "message": "Something went wrong, please try again"}
		return flash.WithError(c, fm).Redirect("/account/begin_password_reset")
	}

	if err := jobqueue.EnqueueEmailDelivery(user.ID, jobqueue.EmailKindPasswordReset); err != nil {
		log.Errorf("[Auth] failed to enqueue password reset email for %s: %v", user.Username, err)
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}

// HandlePasswordReset sets a new password from an emailed reset link.
func HandlePasswordReset(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet {
		return c.JSON(fiber.Map{
			"page":        "password_reset",
			"reset_token": c.Query("reset_token"),
			"flash":       flash.Get(c),
		})
	}

	token := c.FormValue("reset_token")
	password := c.FormValue("password")

	fm := fiber.Map{"type": "error"}

	userRepo := repository.GetGlobalRepositories().User
	user, err := userRepo.GetByResetToken(token)
	if err != nil || !user.ResetTokenValid(token, resetTokenMaxAge) {
		fm["message"] = "This reset link is invalid or has expired"
		return flash.WithError(c, fm).Redirect("/account/begin_password_reset")
	}

	if len(password) < 8 {
		fm["message"] = "Your password must be at least 8 characters"
		return flash.WithError(c, fm).Redirect("/account/password_reset?reset_token="+token, fiber.StatusSeeOther)
	}

	if err := user.SetPassword(password); err != nil {
		fm["message"] = "Something went wrong, please try again"
		return flash.WithError(c, fm).Redirect("/account/begin_password_reset")
	}
	user.ResetToken = ""
	user.ResetSentAt = nil

	if err := userRepo.Update(user); err != nil {
		fm["message"] = "Something went wrong, please try again"
		return flash.WithError(c, fm).Redirect("/account/begin_password_reset")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Your password has been updated, you can sign in now",
	}
	return flash.WithSuccess(c, fm).Redirect("/login")
}

// HandleSettings shows the account page with subscription and card details.
func HandleSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetWithBilling(userCtx.UserID)
	if err != nil {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	payload := fiber.Map{
		"page":  "settings",
		"user":  user,
		"flash": flash.Get(c),
	}
	if user.Subscription != nil {
		payload["plan"] = billingService().Catalog().PlanName(user.Subscription.PlanID)
	}
	return c.JSON(payload)
}
