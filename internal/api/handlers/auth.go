package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/langchou/meterbook/internal/service"
)

// setSession 写入 httpOnly 会话 cookie
func (h *Handler) setSession(c *gin.Context, sess *service.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookie, sess.Token, maxAge, "/", "", h.opts.CookieSecure, true)
}

// Register 注册
func (h *Handler) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	sess, err := h.authService.Register(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, "register", err)
		return
	}

	h.setSession(c, sess)
	created(c, sess)
}

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var in service.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	sess, err := h.authService.Login(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, "login", err)
		return
	}

	h.setSession(c, sess)
	ok(c, sess)
}

// Logout 清除会话 cookie
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AuthCookie, "", -1, "/", "", h.opts.CookieSecure, true)
	message(c, "Logged out")
}

// GetProfile 获取当前用户资料
func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.authService.Profile(c.Request.Context(), userID(c))
	if err != nil {
		h.handleError(c, "get profile", err)
		return
	}
	ok(c, u)
}

// UpdateProfile 更新当前用户资料
func (h *Handler) UpdateProfile(c *gin.Context) {
	var in service.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	u, err := h.authService.UpdateProfile(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "update profile", err)
		return
	}
	ok(c, u)
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(c *gin.Context) {
	var in service.ChangePasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID(c), in); err != nil {
		h.handleError(c, "change password", err)
		return
	}
	message(c, "Password changed")
}

// GetPreferences 获取偏好设置
func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.authService.Preferences(c.Request.Context(), userID(c))
	if err != nil {
		h.handleError(c, "get preferences", err)
		return
	}
	ok(c, prefs)
}

// UpdatePreferences 更新偏好设置
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var in service.PreferencesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	prefs, err := h.authService.UpdatePreferences(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "update preferences", err)
		return
	}
	ok(c, prefs)
}
