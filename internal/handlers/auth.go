package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/hash"
	"github.com/mcoutinho/atelie-shop/internal/logging"
	"github.com/mcoutinho/atelie-shop/internal/models"
	"github.com/mcoutinho/atelie-shop/internal/mykafka"
	"github.com/mcoutinho/atelie-shop/internal/service"
	"github.com/mcoutinho/atelie-shop/internal/util"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *service.TokenService
	Producer *mykafka.Producer
}

type registerRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
	Phone    string `json:"telefone"`
	Address  string `json:"endereco"`
	CEP      string `json:"cep"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		l.Warn("register_error", "status", 400, "reason", "campos obrigatórios ausentes")
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "nome, email e senha são obrigatórios"})
	}

	var existing models.User
	err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		l.Warn("register_error", "status", 409, "email", req.Email)
		return c.JSON(http.StatusConflict, echo.Map{"erro": "email já cadastrado"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
		Phone:        req.Phone,
		Address:      req.Address,
		CEP:          req.CEP,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	h.publish(c, user.ID, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("user_registered", "userID", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"senha"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("login_error", "status", 401, "email", req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "email ou senha inválidos"})
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_error", "status", 401, "email", req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "email ou senha inválidos"})
	}

	access, err := service.SignAccessToken(user.ID, user.Role, h.Tokens.JWTSecret)
	if err != nil {
		l.Error("login_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}
	refresh, exp, err := service.SignRefreshToken(user.ID, user.Role, h.Tokens.RefreshSecret)
	if err != nil {
		l.Error("login_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}
	if err := h.Tokens.SaveRefreshToken(refresh, user.ID, user.Role, exp); err != nil {
		l.Error("login_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	l.Info("login_success", "userID", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  access,
		"refreshToken": refresh,
		"usuario":      user,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("refresh_error", "status", 400)
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "refreshToken é obrigatório"})
	}

	access, refresh, err := h.Tokens.RotateToken(req.RefreshToken)
	if err != nil {
		l.Warn("refresh_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "refresh token inválido"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "refreshToken é obrigatório"})
	}

	if err := h.Tokens.RevokeRefresh(req.RefreshToken); err != nil {
		l.Error("logout_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "sessão encerrada"})
}

func (h *AuthHandler) GetUsuario(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := service.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"erro": "usuário não encontrado"})
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateUsuario(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.update_usuario")

	userID, err := service.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"erro": "não autenticado"})
	}

	var req struct {
		Name      string `json:"nome"`
		Phone     string `json:"telefone"`
		Address   string `json:"endereco"`
		CEP       string `json:"cep"`
		AvatarURL string `json:"avatar"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"erro": "corpo inválido"})
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"erro": "usuário não encontrado"})
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	user.Phone = req.Phone
	user.Address = req.Address
	user.CEP = req.CEP
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}

	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		l.Error("update_usuario_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	l.Info("usuario_atualizado", "userID", user.ID)
	return c.JSON(http.StatusOK, user)
}

// GetUsuarios is the admin customer listing, paginated like the catalog.
func (h *AuthHandler) GetUsuarios(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.listar_usuarios")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		l.Error("listar_usuarios_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	var users []models.User
	if err := h.DB.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		l.Error("listar_usuarios_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"erro": "erro interno"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": users,
		"meta": echo.Map{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func (h *AuthHandler) publish(c echo.Context, userID uint, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, mykafka.TopicUserEvents, fmt.Sprint(userID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
