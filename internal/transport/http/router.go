package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/handlers"
	"github.com/sundarv/curryleaf/internal/handlers/cart"
	"github.com/sundarv/curryleaf/internal/handlers/checkout"
	"github.com/sundarv/curryleaf/internal/service/token"
)

type Deps struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Auth     *handlers.AuthHandler
	Menu     *handlers.MenuHandler
	Search   *handlers.SearchHandler
	Orders   *handlers.OrderHandler
	Track    *handlers.TrackHandler
	Push     *handlers.PushHandler
	Cart     *cart.CartHandler
	Checkout *checkout.CheckoutHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.Auth.Register)
	v1.POST("/login", d.Auth.Login)
	v1.POST("/logout", d.Auth.Logout)

	v1.GET("/menu", d.Menu.GetMenu)
	v1.GET("/menu/:id", d.Menu.GetMenuItem)
	v1.GET("/search", d.Search.Handler)
	v1.GET("/push/key", d.Push.PublicKey)

	cartGroup := v1.Group("/cart", d.Tokens.AutoRefreshMiddleware)
	cartGroup.GET("", d.Cart.GetCart)
	cartGroup.POST("", d.Cart.AddToCart)
	cartGroup.DELETE("/:id", d.Cart.DeleteOneFromCart)
	cartGroup.DELETE("/:id/all", d.Cart.DeleteAllFromCart)

	checkoutGroup := v1.Group("/checkout", d.Tokens.AutoRefreshMiddleware)
	checkoutGroup.POST("", d.Checkout.MakeOrder)
	checkoutGroup.POST("/quote", d.Checkout.Quote)

	orders := v1.Group("/orders", d.Tokens.AutoRefreshMiddleware)
	orders.GET("", d.Orders.GetMyOrders)
	orders.GET("/:id", d.Orders.GetOrder)
	orders.POST("/:id/cancel", d.Orders.CancelOrder)
	orders.GET("/:id/events", d.Track.StreamOrderEvents)

	push := v1.Group("/push", d.Tokens.AutoRefreshMiddleware)
	push.POST("/subscribe", d.Push.Subscribe)
	push.DELETE("/subscribe", d.Push.Unsubscribe)

	admin := v1.Group("/admin", d.Tokens.AutoRefreshMiddlewareAdmin)
	admin.POST("/menu", d.Menu.CreateMenuItem)
	admin.PATCH("/menu/:id", d.Menu.PatchMenuItem)
	admin.DELETE("/menu/:id", d.Menu.DeleteMenuItem)
	admin.GET("/orders", d.Orders.AdminListOrders)
	admin.PATCH("/orders/:id/status", d.Orders.AdminUpdateStatus)
}
