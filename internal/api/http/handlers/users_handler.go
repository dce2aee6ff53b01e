package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/api/dto"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/domain"
	"github.com/vuny-labs/marketplace-service/internal/service"
)

// UsersHandler exposes auth and account administration endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService) *UsersHandler {
	return &UsersHandler{auth: authService, users: userService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.auth.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authBody(result)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authBody(result)})
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	return c.JSON(fiber.Map{"data": userBody(principal)})
}

// GrantRole handles PUT /api/users/:id/role.
func (h *UsersHandler) GrantRole(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.RoleGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	target, err := h.users.GrantRole(c.UserContext(), principal, c.Params("id"), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userBody(target)})
}

// Ban handles POST /api/users/:id/ban.
func (h *UsersHandler) Ban(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.BanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	target, err := h.users.Ban(c.UserContext(), principal, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userBody(target)})
}

// Unban handles DELETE /api/users/:id/ban.
func (h *UsersHandler) Unban(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	target, err := h.users.Unban(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userBody(target)})
}

func authBody(result *service.AuthResult) fiber.Map {
	return fiber.Map{
		"user": userBody(result.User),
		"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
	}
}

func userBody(user *domain.User) fiber.Map {
	body := fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
		"avatar":   user.Avatar,
		"banned":   user.Banned,
	}
	if user.BanReason != nil {
		body["ban_reason"] = *user.BanReason
	}
	return body
}
