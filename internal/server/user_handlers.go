package server

import (
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	UserName      string `json:"userName"`
	UserNameSnake string `json:"user_name"`
	Password      string `json:"password"`
}

func (r credentialsRequest) name() string {
	if r.UserName != "" {
		return r.UserName
	}
	return r.UserNameSnake
}

// Join registers a new account holding ROLE_USER.
// @Summary Register
// @Tags users
// @Accept json
// @Produce plain
// @Param request body credentialsRequest true "Credentials"
// @Success 201 {string} string "Hi <name>, welcome to the group!"
// @Failure 400 {object} models.ErrorResponse
// @Router /user/join [post]
func (s *Server) Join(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		UserName: req.name(),
		Password: req.Password,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondText(c, fiber.StatusCreated, service.WelcomeMessage(user.UserName))
}

// Login exchanges a username and password for a bearer token.
// @Summary Log in
// @Tags users
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Credentials"
// @Success 200 {object} object{token=string,token_type=string,expires_in=int,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /user/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.name() == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(service.MsgCredentialsRequired))
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.name(), req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := middleware.IssueToken(s.config.JWTSecret, user.ID, user.UserName, middleware.TokenTTL)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(middleware.TokenTTL.Seconds()),
		"user":       user,
	})
}

// UserTest is a probe reachable by any ROLE_USER holder.
// @Summary ROLE_USER access check
// @Tags users
// @Produce plain
// @Security BearerAuth
// @Success 200 {string} string "User can only access this!"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /user/test [get]
func (s *Server) UserTest(c *fiber.Ctx) error {
	return respondText(c, fiber.StatusOK, service.MsgUserAccessOnly)
}

// GrantRole handles GET /user/access/:userId/:role.
// @Summary Grant a role
// @Description Admins may grant ROLE_ADMIN or ROLE_MODERATOR; moderators may grant ROLE_MODERATOR.
// @Tags users
// @Produce plain
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param role path string true "Role" Enums(ROLE_ADMIN, ROLE_MODERATOR)
// @Success 200 {string} string "Hi <name>, the role <role> has been assigned to you by <grantor>"
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /user/access/{userId}/{role} [get]
func (s *Server) GrantRole(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	actor, _ := currentActor(c)

	_, msg, err := s.userService.GrantRole(c.UserContext(), actor, userID, c.Params("role"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondText(c, fiber.StatusOK, msg)
}

// ListUsers handles GET /user.
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /user [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	actor, _ := currentActor(c)
	page := parsePagination(c, 100)

	users, err := s.userService.ListUsers(c.UserContext(), actor, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}
