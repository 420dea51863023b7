// Package handlers exposes the library over HTTP.
package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"library-api/config"
	"library-api/middleware"
	"library-api/service"
)

// NewRouter wires every route of the API onto a new gin engine.
func NewRouter(lib *service.Library, cfg config.Config, logger *logrus.Logger) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(logger),
		middleware.AccessLog(),
		middleware.Recovery(cfg.Server.Development()),
		cors.New(corsConfig(cfg.CORS)),
	)

	errs := errorResponder{exposeErrors: cfg.Server.Development()}
	members := &MemberHandler{lib: lib, errs: errs}
	books := &BookHandler{lib: lib, errs: errs}
	circulation := &CirculationHandler{lib: lib, errs: errs}
	reservations := &ReservationHandler{lib: lib, errs: errs}

	started := time.Now()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(started).Seconds(),
		})
	})

	api := r.Group("/api")
	{
		m := api.Group("/members")
		m.POST("", members.Create)
		m.GET("", members.List)
		m.GET("/:member_id", members.Get)
		m.PUT("/:member_id", members.Update)
		m.DELETE("/:member_id", members.Delete)
		m.GET("/:member_id/reservations", reservations.ForMember)

		b := api.Group("/books")
		b.POST("", books.Create)
		b.GET("", books.List)
		b.GET("/search", books.Search)
		b.GET("/:book_id", books.Get)
		b.PUT("/:book_id", books.Update)
		b.DELETE("/:book_id", books.Delete)
		b.GET("/:book_id/queue", reservations.Queue)

		api.POST("/borrow", circulation.Borrow)
		api.POST("/return", circulation.Return)
		api.GET("/borrowed", circulation.Borrowed)
		api.GET("/borrow/history/:member_id", circulation.History)
		api.GET("/borrow/overdue", circulation.Overdue)

		res := api.Group("/reservations")
		res.POST("", reservations.Create)
		res.GET("/:reservation_id", reservations.Get)
		res.DELETE("/:reservation_id", reservations.Cancel)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Route not found",
			"path":    c.Request.URL.Path,
		})
	})
	return r, nil
}

func corsConfig(cfg config.CORS) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return c
}
