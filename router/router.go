package router

import (
	"time"

	"careledger/api"
	"careledger/audit"
	"careledger/config"
	"careledger/database"
	_ "careledger/docs"
	"careledger/ledger"
	"careledger/middleware"
	"careledger/models"
	"careledger/repository"
	"careledger/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 与请求追踪中间件
	r.Use(CORSMiddleware())
	r.Use(middleware.RequestID())

	store := repository.NewStore(database.DB)
	recorder := audit.NewRecorder(&cfg.Audit)
	ledgerService := ledger.New(store, recorder, cfg)
	alerts := service.NewAlertService(&cfg.Email)

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(5, time.Minute), authHandler.Login)
		}

		// 预算类别（无需登录）
		expenseHandler := api.NewExpenseHandler(ledgerService, store)
		v1.GET("/categories", expenseHandler.GetCategories)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)

			// 服务对象档案
			profileHandler := api.NewProfileHandler(recorder)
			profiles := authorized.Group("/profiles")
			{
				profiles.POST("", profileHandler.Create)
				profiles.GET("", profileHandler.List)
				profiles.GET("/:id", profileHandler.Get)
				profiles.PUT("/:id", profileHandler.Update)
				profiles.DELETE("/:id", profileHandler.Delete)
			}

			// 上门服务
			visitHandler := api.NewVisitHandler(ledgerService, recorder)
			visits := authorized.Group("/visits")
			{
				visits.POST("", visitHandler.Schedule)
				visits.GET("", visitHandler.List)
				visits.POST("/:id/complete", visitHandler.Complete)
			}

			// 照护计划
			carePlanHandler := api.NewCarePlanHandler(recorder)
			carePlans := authorized.Group("/care-plans")
			{
				carePlans.POST("", carePlanHandler.Create)
				carePlans.GET("", carePlanHandler.List)
				carePlans.PUT("/:id", carePlanHandler.Update)
			}

			// 预算相关
			budgetHandler := api.NewBudgetHandler(ledgerService, store, recorder, alerts)
			budgets := authorized.Group("/budgets")
			{
				budgets.POST("", budgetHandler.Create)
				budgets.GET("", budgetHandler.List)
				budgets.GET("/:id", budgetHandler.Get)
				budgets.GET("/:id/threshold", budgetHandler.Threshold)
			}

			// 支出相关
			expenses := authorized.Group("/expenses")
			{
				expenses.POST("", expenseHandler.Submit)
				expenses.GET("", expenseHandler.List)
				expenses.GET("/:id", expenseHandler.Get)
			}

			// 导出相关
			exportHandler := api.NewExportHandler()
			export := authorized.Group("/export")
			{
				export.GET("/excel", exportHandler.ExportBudgetExcel)
			}

			// 主管及管理员专属接口
			supervisor := authorized.Group("")
			supervisor.Use(middleware.RequireRole(models.RoleSupervisor, models.RoleAdmin))
			{
				supervisor.POST("/expenses/:id/approve", expenseHandler.Approve)
				supervisor.POST("/expenses/:id/reject", expenseHandler.Reject)
				supervisor.POST("/expenses/:id/reverse", expenseHandler.Reverse)
				supervisor.POST("/budgets/:id/suspend", budgetHandler.Suspend)
				supervisor.POST("/budgets/:id/resume", budgetHandler.Resume)

				auditHandler := api.NewAuditHandler(store)
				supervisor.GET("/audit-logs", auditHandler.List)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
