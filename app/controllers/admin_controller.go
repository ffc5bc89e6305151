package controllers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

// auditLog appends one admin audit row. Failures are logged, never surfaced;
// the mutation itself already happened.
func auditLog(c *fiber.Ctx, action, target, detail string) {
	entry := &models.AdminLog{
		AdminID: usercontext.GetUserID(c),
		Action:  action,
		Target:  target,
		Detail:  detail,
	}
	if err := deps.Repos.AdminLog.Create(entry); err != nil {
		log.Errorf("[Admin] Failed to write audit log (%s %s): %v", action, target, err)
	}
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return uint(id), nil
}

// HandleAdminUsers lists accounts with pagination, or searches by email/name.
func HandleAdminUsers(c *fiber.Ctx) error {
	if query := c.Query("q"); query != "" {
		users, err := deps.Repos.User.Search(query)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"users": users, "total": len(users)})
	}

	offset, limit := pagination(c, 25, 100)
	users, err := deps.Repos.User.List(offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := deps.Repos.User.Count()
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"users":  users,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

type adminUserPatch struct {
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
	Plan     *string `json:"plan"`
}

// HandleAdminPatchUser applies account changes: activate/deactivate, admin
// flag, plan override. Every change is audited.
func HandleAdminPatchUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid user id")
	}

	var patch adminUserPatch
	if err := c.BodyParser(&patch); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	user, err := deps.Repos.User.GetByID(id)
	if err != nil {
		return serviceError(c, err)
	}
	target := fmt.Sprintf("user:%d", user.ID)

	if patch.IsActive != nil && *patch.IsActive != user.IsActive {
		if err := deps.Repos.User.SetActive(user.ID, *patch.IsActive); err != nil {
			return serviceError(c, err)
		}
		auditLog(c, "user.set_active", target, fmt.Sprintf("active=%t", *patch.IsActive))
	}

	if patch.IsAdmin != nil && *patch.IsAdmin != user.IsAdmin {
		if err := deps.Repos.User.SetAdmin(user.ID, *patch.IsAdmin); err != nil {
			return serviceError(c, err)
		}
		auditLog(c, "user.set_admin", target, fmt.Sprintf("admin=%t", *patch.IsAdmin))
	}

	if patch.Plan != nil && *patch.Plan != user.Plan {
		if !entitlements.Known(*patch.Plan) {
			return fail(c, fiber.StatusBadRequest, "unknown_plan", "unknown plan: "+*patch.Plan)
		}
		if err := deps.Repos.User.UpdatePlan(user.ID, *patch.Plan); err != nil {
			return serviceError(c, err)
		}
		auditLog(c, "user.set_plan", target, fmt.Sprintf("plan=%s", *patch.Plan))
	}

	updated, err := deps.Repos.User.GetByID(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(userPayload(updated))
}

// HandleAdminPayments lists all payments with pagination.
func HandleAdminPayments(c *fiber.Ctx) error {
	offset, limit := pagination(c, 25, 100)

	payments, err := deps.Repos.Payment.List(offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := deps.Repos.Payment.Count()
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"payments": payments,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleAdminGenerations lists the generation log across all users.
func HandleAdminGenerations(c *fiber.Ctx) error {
	offset, limit := pagination(c, 25, 100)

	generations, err := deps.Repos.Generation.List(offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := deps.Repos.Generation.Count()
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"generations": generations,
		"total":       total,
		"offset":      offset,
		"limit":       limit,
	})
}

type announcementRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	IsPublished bool   `json:"is_published"`
}

// HandleAdminListAnnouncements lists all announcements including drafts.
func HandleAdminListAnnouncements(c *fiber.Ctx) error {
	offset, limit := pagination(c, 25, 100)

	announcements, err := deps.Repos.Announcement.ListAll(offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"announcements": announcements})
}

// HandleAdminCreateAnnouncement creates an announcement.
func HandleAdminCreateAnnouncement(c *fiber.Ctx) error {
	var req announcementRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}
	if req.Title == "" {
		return fail(c, fiber.StatusBadRequest, "validation_error", "title is required")
	}

	announcement := &models.Announcement{
		Title:       req.Title,
		Body:        req.Body,
		IsPublished: req.IsPublished,
		CreatedBy:   usercontext.GetUserID(c),
	}
	if err := deps.Repos.Announcement.Create(announcement); err != nil {
		return serviceError(c, err)
	}

	auditLog(c, "announcement.create", fmt.Sprintf("announcement:%d", announcement.ID), req.Title)
	return c.Status(fiber.StatusCreated).JSON(announcement)
}

// HandleAdminUpdateAnnouncement updates title, body or publish state.
func HandleAdminUpdateAnnouncement(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid announcement id")
	}

	var req announcementRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	announcement, err := deps.Repos.Announcement.GetByID(id)
	if err != nil {
		return serviceError(c, err)
	}

	if req.Title != "" {
		announcement.Title = req.Title
	}
	announcement.Body = req.Body
	announcement.IsPublished = req.IsPublished

	if err := deps.Repos.Announcement.Update(announcement); err != nil {
		return serviceError(c, err)
	}

	auditLog(c, "announcement.update", fmt.Sprintf("announcement:%d", id), announcement.Title)
	return c.JSON(announcement)
}

// HandleAdminDeleteAnnouncement removes an announcement.
func HandleAdminDeleteAnnouncement(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid announcement id")
	}

	if _, err := deps.Repos.Announcement.GetByID(id); err != nil {
		return serviceError(c, err)
	}
	if err := deps.Repos.Announcement.Delete(id); err != nil {
		return serviceError(c, err)
	}

	auditLog(c, "announcement.delete", fmt.Sprintf("announcement:%d", id), "")
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleAdminLogs lists the admin audit trail, newest first.
func HandleAdminLogs(c *fiber.Ctx) error {
	offset, limit := pagination(c, 50, 200)

	logs, err := deps.Repos.AdminLog.List(offset, limit)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := deps.Repos.AdminLog.Count()
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":   logs,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}
