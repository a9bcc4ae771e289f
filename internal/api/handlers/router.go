package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/pkg/ws"
)

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RateLimit(h.logger, h.opts.RateLimitRPS))

	// 认证（无需登录）
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
	}

	api := r.Group("/api", h.RequireAuth())
	{
		// 用户
		api.GET("/user/profile", h.GetProfile)
		api.PUT("/user/profile", h.UpdateProfile)
		api.PUT("/user/change-password", h.ChangePassword)
		api.GET("/user/preferences", h.GetPreferences)
		api.PUT("/user/preferences", h.UpdatePreferences)

		// 电表读数
		api.GET("/meter-readings", h.ListReadings)
		api.POST("/meter-readings", h.CreateReading)
		api.GET("/meter-readings/:id", h.GetReading)
		api.PUT("/meter-readings/:id", h.UpdateReading)
		api.DELETE("/meter-readings/:id", h.DeleteReading)

		// 电价方案（写操作仅管理员）
		api.GET("/settings", h.ListTariffs)
		api.GET("/settings/:id", h.GetTariff)
		api.POST("/settings", h.RequireAdmin(), h.CreateTariff)
		api.PUT("/settings/:id", h.RequireAdmin(), h.UpdateTariff)
		api.DELETE("/settings/:id", h.RequireAdmin(), h.DeleteTariff)
		api.POST("/tariff/preview", h.PreviewTariff)

		// 预算
		api.GET("/budget-plans", h.ListBudgetPlans)
		api.POST("/budget-plans", h.CreateBudgetPlan)
		api.GET("/budget-plans/:id", h.GetBudgetPlan)
		api.PUT("/budget-plans/:id", h.UpdateBudgetPlan)
		api.DELETE("/budget-plans/:id", h.DeleteBudgetPlan)
		api.GET("/budget-tracking", h.ListBudgetTracking)
		api.POST("/budget-tracking", h.TrackBudget)
		api.GET("/budget-alerts", h.ListBudgetAlerts)
		api.POST("/budget-alerts", h.UpdateBudgetAlert)

		// 报告
		api.GET("/reports", h.GetReport)
		api.GET("/reports/export", h.ExportReport)
	}

	// WebSocket
	r.GET("/ws", h.RequireAuth(), h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn, userID(c))
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
