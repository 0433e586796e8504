package server

import (
	"context"
	"strconv"

	"gatekeeper/internal/models"
	"gatekeeper/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreatePost handles POST /post/create. The author is the authenticated user.
// @Summary Submit a post
// @Description Create a post in PENDING status authored by the caller
// @Tags posts
// @Accept json
// @Produce plain
// @Security BearerAuth
// @Param request body createPostRequest true "Post content"
// @Success 201 {string} string "Post published, awaiting moderation"
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /post/create [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	actor, _ := currentActor(c)

	post, err := s.postService.Create(c.UserContext(), actor, service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.Set("X-Post-ID", strconv.FormatUint(uint64(post.ID), 10))
	return respondText(c, fiber.StatusCreated, service.PostCreatedMessage(post.UserName))
}

// ApprovePost handles GET /post/approvePost/:id
// @Summary Approve a pending post
// @Tags moderation
// @Produce plain
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {string} string "Post Approved !! or Post is not pending."
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/approvePost/{id} [get]
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	return s.moderatePost(c, s.postService.Approve)
}

// RejectPost handles GET /post/removePost/:id
// @Summary Reject a pending post
// @Tags moderation
// @Produce plain
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {string} string "Post Rejected !! or Post is not pending."
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/removePost/{id} [get]
func (s *Server) RejectPost(c *fiber.Ctx) error {
	return s.moderatePost(c, s.postService.Reject)
}

// ApproveAll handles GET /post/approveAll
// @Summary Approve every pending post
// @Tags moderation
// @Produce plain
// @Security BearerAuth
// @Success 200 {string} string "Approved all posts!"
// @Success 204 "No pending posts"
// @Failure 403 {object} models.ErrorResponse
// @Router /post/approveAll [get]
func (s *Server) ApproveAll(c *fiber.Ctx) error {
	actor, _ := currentActor(c)
	return respondBulk(c, func() (*service.BulkOutcome, error) {
		return s.postService.ApproveAll(c.UserContext(), actor)
	})
}

// RejectAll handles GET /post/rejectAll
// @Summary Reject every pending post
// @Tags moderation
// @Produce plain
// @Security BearerAuth
// @Success 200 {string} string "Rejected all posts!"
// @Success 204 "No pending posts"
// @Failure 403 {object} models.ErrorResponse
// @Router /post/rejectAll [get]
func (s *Server) RejectAll(c *fiber.Ctx) error {
	actor, _ := currentActor(c)
	return respondBulk(c, func() (*service.BulkOutcome, error) {
		return s.postService.RejectAll(c.UserContext(), actor)
	})
}

// ViewApproved handles GET /post/viewAll; 204 when nothing is approved.
// @Summary List approved posts
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Success 204 "Nothing approved yet"
// @Router /post/viewAll [get]
func (s *Server) ViewApproved(c *fiber.Ctx) error {
	posts, err := s.postService.ListApproved(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if len(posts) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(posts)
}

// MarkForDeletion handles POST /post/deletePost/:id.
// @Summary Request deletion of an approved post
// @Description Allowed for the author or ADMIN_TIER. Notifies the super admin with approve/reject links.
// @Tags deletion
// @Produce plain
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {string} string "Post marked for deletion. Awaiting approval from super admin."
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/deletePost/{id} [post]
func (s *Server) MarkForDeletion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _ := currentActor(c)

	out, err := s.deletion.MarkForDeletion(c.UserContext(), actor, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondText(c, fiber.StatusOK, out.Message)
}

// ApproveDeletion handles PUT /post/approveDeletion/:token
// @Summary Approve a deletion request
// @Tags deletion
// @Produce plain
// @Security BearerAuth
// @Param token path string true "Deletion request ID"
// @Success 200 {string} string "Post successfully deleted."
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/approveDeletion/{token} [put]
func (s *Server) ApproveDeletion(c *fiber.Ctx) error {
	return s.resolveDeletion(c, s.deletion.ApproveDeletion)
}

// RejectDeletion handles PUT /post/rejectDeletion/:token
// @Summary Reject a deletion request and restore the post
// @Tags deletion
// @Produce plain
// @Security BearerAuth
// @Param token path string true "Deletion request ID"
// @Success 200 {string} string "Post deletion rejected. The post has been restored."
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post/rejectDeletion/{token} [put]
func (s *Server) RejectDeletion(c *fiber.Ctx) error {
	return s.resolveDeletion(c, s.deletion.RejectDeletion)
}

type postCommand func(ctx context.Context, actor service.Actor, postID uint) (*service.Outcome, error)

func (s *Server) moderatePost(c *fiber.Ctx, cmd postCommand) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	actor, _ := currentActor(c)

	out, err := cmd(c.UserContext(), actor, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondText(c, fiber.StatusOK, out.Message)
}

type tokenCommand func(ctx context.Context, actor service.Actor, token string) (*service.Outcome, error)

func (s *Server) resolveDeletion(c *fiber.Ctx, cmd tokenCommand) error {
	actor, _ := currentActor(c)

	out, err := cmd(c.UserContext(), actor, c.Params("token"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondText(c, fiber.StatusOK, out.Message)
}

// respondBulk maps the empty outcome to 204.
func respondBulk(c *fiber.Ctx, run func() (*service.BulkOutcome, error)) error {
	out, err := run()
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if out.Empty() {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return respondText(c, fiber.StatusOK, out.Message)
}
