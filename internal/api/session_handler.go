package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
)

// SessionHandler 登录、注册、登出与个人资料
type SessionHandler struct {
	logger *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{logger: logger}
}

// SignIn 邮箱密码登录，成功后客户端的购物车随身份重新加载
// @Summary 登录
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body domain.SignInRequest true "登录请求"
// @Success 200 {object} resp.Response[domain.SessionView] "成功"
// @Failure 401 {object} resp.Response[any] "邮箱或密码错误"
// @Failure 429 {object} resp.Response[any] "请求过于频繁"
// @Router /api/v1/auth/sign-in [post]
func (h *SessionHandler) SignIn(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	var req domain.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("参数绑定失败", zap.Error(err))
		badRequest(c, "请求参数格式错误")
		return
	}
	if _, err := client.Session.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		fail(c, h.logger, "sign in", err)
		return
	}
	ok(c, client.Session.View())
}

// SignUp 注册并登录
// @Router /api/v1/auth/sign-up [post]
func (h *SessionHandler) SignUp(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	var req domain.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("参数绑定失败", zap.Error(err))
		badRequest(c, "请求参数格式错误")
		return
	}
	if _, err := client.Session.SignUp(c.Request.Context(), req.Email, req.Password, req.FullName); err != nil {
		fail(c, h.logger, "sign up", err)
		return
	}
	created(c, client.Session.View())
}

// SignOut 登出；本地身份总会被清空
// @Router /api/v1/auth/sign-out [post]
func (h *SessionHandler) SignOut(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	if err := client.Session.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn("sign out reported backend error",
			zap.String("request_id", requestID(c)), zap.Error(err))
	}
	ok(c, client.Session.View())
}

// GetSession 当前身份与已加载的资料
// @Router /api/v1/auth/session [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	ok(c, client.Session.View())
}

// GetProfile 个人资料，不存在时自动创建
// @Router /api/v1/profile [get]
func (h *SessionHandler) GetProfile(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	profile, err := client.Session.Profile(c.Request.Context())
	if err != nil {
		fail(c, h.logger, "get profile", err)
		return
	}
	ok(c, profile)
}

// UpdateProfile 局部更新个人资料
// @Router /api/v1/profile [put]
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	client, found := middleware.RequireClient(c)
	if !found {
		return
	}
	var patch domain.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.logger.Debug("参数绑定失败", zap.Error(err))
		badRequest(c, "请求参数格式错误")
		return
	}
	profile, err := client.Session.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		fail(c, h.logger, "update profile", err)
		return
	}
	ok(c, profile)
}
