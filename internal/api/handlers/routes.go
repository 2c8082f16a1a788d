package handlers

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the REST surface under /api/v1.
func RegisterRoutes(e *echo.Echo, bids *BidHandler, auctions *AuctionHandler, users *UserHandler) {
	api := e.Group("/api/v1")

	api.POST("/bids", bids.SubmitBid)

	api.POST("/auctions", auctions.CreateAuction)
	api.GET("/auctions", auctions.ListAuctions)
	api.GET("/auctions/:id", auctions.GetAuction)
	api.GET("/auctions/:id/bids", auctions.BidHistory)
	api.GET("/auctions/:id/price", auctions.CurrentPrice)

	api.POST("/users", users.RegisterUser)
	api.GET("/users", users.ListUsers)
}
