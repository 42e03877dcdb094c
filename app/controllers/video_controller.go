package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/badmintontv/badmintontv/app/repository"
)

const videosPerPage = 24

// HandleStart renders the landing page with catalog counts. The catalog
// itself sits behind the subscription gate.
func HandleStart(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	videoCount, _ := repos.Video.Count()
	tournamentCount, _ := repos.Catalog.CountTournaments()

	return c.JSON(fiber.Map{
		"page":        "home",
		"videos":      videoCount,
		"tournaments": tournamentCount,
		"flash":       flash.Get(c),
	})
}

// HandleVideoIndex lists the catalog, newest matches first. Supports ?q= for
// search and ?page= for paging.
func HandleVideoIndex(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()
	page, offset := pageParams(c, videosPerPage)

	if query := c.Query("q"); query != "" {
		videos, total, err := repos.Video.Search(query, offset, videosPerPage)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not search videos")
		}
		return c.JSON(fiber.Map{
			"page":    "videos",
			"query":   query,
			"videos":  videos,
			"total":   total,
			"current": page,
		})
	}

	videos, err := repos.Video.List(offset, videosPerPage)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load videos")
	}
	total, _ := repos.Video.Count()

	return c.JSON(fiber.Map{
		"page":    "videos",
		"videos":  videos,
		"total":   total,
		"current": page,
	})
}

// HandleVideoShow renders one video with its tournament and teams.
func HandleVideoShow(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fiber.ErrNotFound
	}

	video, err := repository.GetGlobalRepositories().Video.GetByID(uint(id))
	if err != nil {
		return fiber.ErrNotFound
	}

	return c.JSON(fiber.Map{
		"page":  "video",
		"video": video,
	})
}

// HandleTournamentIndex lists tournaments, most recent event first.
func HandleTournamentIndex(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()
	page, offset := pageParams(c, videosPerPage)

	tournaments, err := repos.Catalog.ListTournaments(offset, videosPerPage)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load tournaments")
	}
	total, _ := repos.Catalog.CountTournaments()

	return c.JSON(fiber.Map{
		"page":        "tournaments",
		"tournaments": tournaments,
		"total":       total,
		"current":     page,
	})
}

// HandleTournamentShow renders one tournament and its videos.
func HandleTournamentShow(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fiber.ErrNotFound
	}

	repos := repository.GetGlobalRepositories()
	tournament, err := repos.Catalog.GetTournamentByID(uint(id))
	if err != nil {
		return fiber.ErrNotFound
	}

	page, offset := pageParams(c, videosPerPage)
	videos, err := repos.Video.ListByTournament(tournament.ID, offset, videosPerPage)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load tournament videos")
	}
	total, _ := repos.Video.CountByTournament(tournament.ID)

	return c.JSON(fiber.Map{
		"page":       "tournament",
		"tournament": tournament,
		"videos":     videos,
		"total":      total,
		"current":    page,
	})
}
