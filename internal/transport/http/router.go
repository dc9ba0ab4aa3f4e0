package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/restausimplon/api/internal/handlers"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
)

type Deps struct {
	Auth             *authmw.Authenticator
	AuthHandler      *handlers.AuthHandler
	UserHandler      *handlers.UserHandler
	ProductHandler   *handlers.ProductHandler
	OrderHandler     *handlers.OrderHandler
	OrderItemHandler *handlers.OrderItemHandler
	DeliveryHandler  *handlers.DeliveryHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	login := e.Group("/login")
	login.POST("/token", d.AuthHandler.Token)
	login.POST("/refresh-token", d.AuthHandler.RefreshToken)
	login.POST("/register", d.AuthHandler.Register)
	login.GET("/me", d.AuthHandler.Me, d.Auth.Middleware)

	user := e.Group("/user", d.Auth.Middleware)
	user.GET("", d.UserHandler.ListUsers)
	user.GET("/:id", d.UserHandler.GetUser)
	user.POST("", d.UserHandler.CreateUser)
	user.PATCH("/:id", d.UserHandler.PatchUser)
	user.DELETE("/:id", d.UserHandler.DeleteUser)

	product := e.Group("/product", d.Auth.Middleware)
	product.GET("", d.ProductHandler.GetProducts)
	product.GET("/search", d.ProductHandler.SearchProducts)
	product.GET("/:id", d.ProductHandler.GetProduct)
	product.POST("", d.ProductHandler.CreateProduct)
	product.PATCH("/:id", d.ProductHandler.PatchProduct)
	product.DELETE("/:id", d.ProductHandler.DeleteProduct)

	orders := e.Group("/orders", d.Auth.Middleware)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/by-date", d.OrderHandler.ListOrdersByDate)
	orders.GET("/user/:user_id", d.OrderHandler.ListOrdersByUser)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.PATCH("/:id", d.OrderHandler.PatchOrder)
	orders.DELETE("/:id", d.OrderHandler.DeleteOrder)

	orderitem := e.Group("/orderitem", d.Auth.Middleware)
	orderitem.GET("", d.OrderItemHandler.ListOrderItems)
	orderitem.GET("/by-order/:order_id", d.OrderItemHandler.ListByOrder)
	orderitem.GET("/by-product/:product_id", d.OrderItemHandler.ListByProduct)
	orderitem.GET("/:order_id/:product_id", d.OrderItemHandler.GetOrderItem)
	orderitem.PATCH("/:order_id/:product_id", d.OrderItemHandler.PatchOrderItem)
	orderitem.DELETE("/:order_id/:product_id", d.OrderItemHandler.DeleteOrderItem)

	delivery := e.Group("/delivery", d.Auth.Middleware)
	delivery.GET("", d.DeliveryHandler.ListDeliveries)
	delivery.GET("/:id", d.DeliveryHandler.GetDelivery)
	delivery.POST("", d.DeliveryHandler.CreateDelivery)
	delivery.PATCH("/:id", d.DeliveryHandler.PatchDelivery)
	delivery.DELETE("/:id", d.DeliveryHandler.DeleteDelivery)
}
