package routes

import (
	"net/http"

	"crm-backend/config"
	"crm-backend/controllers"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg config.Config, ledger *services.OrderLedger) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.Use(utils.RequestID())
	r.Use(config.PerformanceLogger())

	if cfg.RateLimit != "" {
		limit, err := utils.RateLimit(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if cfg.Auth.Enabled() {
		api.Use(utils.AuthMiddleware(cfg.Auth.JWTSecret))
	}
	{
		// Customer routes
		customerController := controllers.CustomerController{Ledger: ledger}
		customers := api.Group("/customers")
		{
			customers.POST("", controllers.CreateCustomer)
			customers.GET("", controllers.GetCustomers)
			customers.GET("/:id", controllers.GetCustomer)
			customers.PUT("/:id", controllers.UpdateCustomer)
			customers.DELETE("/:id", controllers.DeleteCustomer)
			customers.GET("/:id/summary", customerController.GetCustomerSummary)
		}

		// Service routes
		catalog := api.Group("/services")
		{
			catalog.POST("", controllers.CreateService)
			catalog.GET("", controllers.GetServices)
			catalog.GET("/:id", controllers.GetService)
			catalog.PUT("/:id", controllers.UpdateService)
			catalog.DELETE("/:id", controllers.DeleteService)
		}

		// Order routes
		orderController := controllers.OrderController{Ledger: ledger}
		reportController := controllers.ReportController{Ledger: ledger}
		orders := api.Group("/orders")
		{
			orders.GET("", orderController.GetOrders)
			orders.POST("", orderController.CreateOrder)
			orders.GET("/stats", reportController.GetOrderStats)
			orders.GET("/:id", orderController.GetOrder)
			orders.PUT("/:id", orderController.UpdateOrder)
			orders.DELETE("/:id", orderController.DeleteOrder)
			orders.POST("/:id/restore", orderController.RestoreOrder)
			orders.PUT("/:id/status", orderController.SetStatus)
			orders.PUT("/:id/payment-status", orderController.SetPaymentStatus)
			orders.POST("/:id/payments", orderController.AddPayment)

			items := orders.Group("/:id/items")
			{
				items.GET("", orderController.GetItems)
				items.POST("", orderController.AddItem)
				items.PUT("/:itemId", orderController.UpdateItem)
				items.DELETE("/:itemId", orderController.DeleteItem)
				items.PUT("/:itemId/status", orderController.SetItemStatus)
				items.PUT("/:itemId/progress", orderController.UpdateItemProgress)
			}
		}
	}

	return r, nil
}

// corsConfig allows every origin when the list is empty or contains "*".
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", utils.RequestIDHeader},
	}
	for _, origin := range origins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
