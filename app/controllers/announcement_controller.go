package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// HandleAnnouncements lists published announcements for everyone.
func HandleAnnouncements(c *fiber.Ctx) error {
	announcements, err := deps.Repos.Announcement.ListPublished()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"announcements": announcements})
}
