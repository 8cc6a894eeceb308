package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/logging"
)

type Handlers struct {
	Cart        *CartHandler
	Checkout    *CheckoutHandler
	Payment     *PaymentHandler
	Membership  *MembershipHandler
	Fulfillment *FulfillmentHandler
	Token       *TokenHandler
}

func NewRouter(h Handlers, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", h.Token.IssueToken)

	// Gateway push; authenticated by HMAC signature, not a bearer token.
	r.POST("/v1/payments/callback", h.Payment.Callback)

	v1 := r.Group("/v1")
	{
		crt := v1.Group("/cart", authz.Require("cart.write"))
		{
			crt.GET("", h.Cart.Get)
			crt.POST("/items", h.Cart.AddItem)
			crt.PATCH("/items/:itemId", h.Cart.PatchItem)
			crt.DELETE("/items/:itemId", h.Cart.RemoveItem)
			crt.DELETE("", h.Cart.Clear)
		}

		v1.POST("/checkout/quote", authz.Require("orders.write"), h.Checkout.Quote)
		v1.POST("/checkout", authz.Require("orders.write"), h.Checkout.PlaceOrder)
		v1.POST("/membership/verify", authz.Require("orders.write"), h.Membership.Verify)

		orders := v1.Group("/orders")
		{
			orders.GET("/:id", authz.Require("orders.read"), h.Checkout.GetOrder)
			orders.POST("/:id/pay", authz.Require("orders.write"), h.Payment.Pay)
			orders.GET("/:id/payment", authz.Require("orders.read"), h.Payment.PaymentStatus)
			orders.POST("/:id/payment/close", authz.Require("orders.write"), h.Payment.CloseSurface)
		}

		ful := v1.Group("/fulfillment", authz.Require("fulfillment.write"))
		{
			ful.GET("/board", h.Fulfillment.Board)
			ful.GET("/lanes", h.Fulfillment.Lanes)
			ful.GET("/stats", h.Fulfillment.Stats)
			ful.POST("/orders/:id/advance", h.Fulfillment.Advance)
			ful.POST("/orders/:id/cancel", h.Fulfillment.Cancel)
		}
	}

	return r
}
