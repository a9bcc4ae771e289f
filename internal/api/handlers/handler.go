package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/auth"
	"github.com/langchou/meterbook/internal/service"
	"github.com/langchou/meterbook/pkg/ws"
)

// AuthCookie 会话 cookie 名称
const AuthCookie = "auth-token"

// Options HTTP 层配置
type Options struct {
	CookieSecure bool
	RateLimitRPS int
}

// Handler HTTP 处理器
type Handler struct {
	logger        *zap.Logger
	authService   *service.AuthService
	readingSvc    *service.ReadingService
	tariffService *service.TariffService
	budgetService *service.BudgetService
	reportService *service.ReportService
	wsHub         *ws.Hub
	upgrader      websocket.Upgrader
	opts          Options
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	authService *service.AuthService,
	readingSvc *service.ReadingService,
	tariffService *service.TariffService,
	budgetService *service.BudgetService,
	reportService *service.ReportService,
	wsHub *ws.Hub,
	opts Options,
) *Handler {
	registerValidators(logger)

	return &Handler{
		logger:        logger,
		authService:   authService,
		readingSvc:    readingSvc,
		tariffService: tariffService,
		budgetService: budgetService,
		reportService: reportService,
		wsHub:         wsHub,
		opts:          opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// handleError 将业务错误映射为 HTTP 状态码
func (h *Handler) handleError(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"success": false, "error": verr.Msg}
		if len(verr.Details) > 0 {
			body["details"] = verr.Details
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrNoActiveTariff),
		errors.Is(err, service.ErrUnpricedUsage),
		errors.Is(err, service.ErrActiveTariffDelete):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		fail(c, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrEmailTaken):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountDisabled):
		fail(c, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("Request failed", zap.String("op", op), zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to "+op)
	}
}

// bindError 请求体或查询参数解析失败
func bindError(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid "+what+" ID")
		return 0, false
	}
	return id, true
}

// pagination 解析 page/per_page，返回 limit 与 offset
func pagination(c *gin.Context, defaultPerPage int) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}
	return page, perPage, (page - 1) * perPage
}
