package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/jobqueue"
)

const usersPerPage = 50

// HandleAdminUsers lists users for the admin dashboard. Supports ?q= search
// over username and email.
func HandleAdminUsers(c *fiber.Ctx) error {
	userRepo := repository.GetGlobalRepositories().User

	if query := c.Query("q"); query != "" {
		users, err := userRepo.Search(query)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not search users")
		}
		return c.JSON(fiber.Map{
			"page":  "admin_users",
			"query": query,
			"users": users,
			"flash": flash.Get(c),
		})
	}

	page, offset := pageParams(c, usersPerPage)
	users, err := userRepo.List(offset, usersPerPage)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load users")
	}
	total, _ := userRepo.Count()

	return c.JSON(fiber.Map{
		"page":    "admin_users",
		"users":   users,
		"total":   total,
		"current": page,
		"flash":   flash.Get(c),
	})
}

// HandleAdminUsersDelete queues the selected users for deletion. Their
// provider subscriptions are cancelled by the background worker before the
// rows go away.
func HandleAdminUsersDelete(c *fiber.Ctx) error {
	raw := c.FormValue("ids")
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}

	if len(ids) == 0 {
		fm := fiber.Map{
			"type":    "error",
			"message": "No users selected",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	if err := jobqueue.EnqueueUserBulkDelete(ids); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not queue the deletion, please try again",
		}
		return flash.WithError(c, fm).Redirect("/admin/users")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": strconv.Itoa(len(ids)) + " user(s) scheduled for deletion",
	}
	return flash.WithSuccess(c, fm).Redirect("/admin/users")
}
