package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payguard/backend/config"
	"payguard/backend/internal/api/handler"
	"payguard/backend/internal/api/middleware"
	"payguard/backend/pkg/jwt"
	"payguard/backend/pkg/metrics"
	"payguard/backend/pkg/redis"
)

// 扫描接口限流：每用户每分钟
const (
	scanRateLimit  = 6
	scanRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时扫描接口不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if cfg.Server.MaxBodyBytes > 0 {
		r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	}

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	admin := middleware.RoleAuth(middleware.RoleAdmin)
	reviewers := middleware.RoleAuth(middleware.RoleAdmin, middleware.RoleReviewer)
	treasury := middleware.RoleAuth(middleware.RoleAdmin, middleware.RoleTreasury)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 异常检测与台账
		anomalies := v1.Group("/anomalies")
		{
			anomalies.POST("/scan", admin, middleware.RateLimit(rdb, scanRateLimit, scanRateWindow), h.Anomaly.Scan)
			anomalies.GET("", reviewers, h.Anomaly.ListAnomalies)
			anomalies.GET("/summary", reviewers, h.Anomaly.GetSummary)
			anomalies.GET("/export", reviewers, h.Export.ExportAnomalies)
			anomalies.POST("/:id/resolve", reviewers, h.Anomaly.ResolveAnomaly)
			anomalies.PUT("/:id/remediation", treasury, h.Anomaly.AttachRemediation)
		}

		// 信誉分
		reputations := v1.Group("/reputations")
		{
			reputations.GET("", reviewers, h.Reputation.GetReputations)
			reputations.GET("/export", admin, h.Reputation.ExportSnapshot)
			reputations.POST("/import", admin, h.Reputation.ImportSnapshot)
		}

		// 工作班表
		v1.POST("/work-schedules/import", admin, h.WorkSchedule.ImportICS)
	}

	return r
}
