package handlers

import (
	"errors"
	"net/http"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	registry   *services.Registry
	ledger     *services.Ledger
	stateCache domain.AuctionStateCache
	log        logger.Logger
}

type CreateAuctionRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	StartingPrice float64 `json:"starting_price"`
	DurationHours int     `json:"duration_hours"`
}

type AuctionResponse struct {
	AuctionID     string    `json:"auction_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartingPrice float64   `json:"starting_price"`
	CurrentPrice  float64   `json:"current_price"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
}

type BidHistoryEntry struct {
	BidID    string    `json:"bid_id"`
	UserID   string    `json:"user_id"`
	Amount   float64   `json:"amount"`
	Sequence uint64    `json:"sequence"`
	PlacedAt time.Time `json:"placed_at"`
}

func NewAuctionHandler(registry *services.Registry, ledger *services.Ledger,
	stateCache domain.AuctionStateCache, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		registry:   registry,
		ledger:     ledger,
		stateCache: stateCache,
		log:        log,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	}

	if req.DurationHours == 0 {
		req.DurationHours = 24
	}

	auction, err := h.registry.CreateAuction(c.Request().Context(),
		req.Title, req.Description, req.StartingPrice,
		time.Duration(req.DurationHours)*time.Hour)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingTitle),
			errors.Is(err, services.ErrInvalidStartingPrice),
			errors.Is(err, services.ErrInvalidDuration):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.log.Error("Failed to create auction", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// ListAuctions returns open auctions by default; ?include_closed=true widens
// the listing to finished ones.
func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	var auctions []*domain.Auction
	var err error
	if c.QueryParam("include_closed") == "true" {
		auctions, err = h.ledger.ListAllAuctions(c.Request().Context())
	} else {
		auctions, err = h.ledger.ListOpenAuctions(c.Request().Context())
	}
	if err != nil {
		h.log.Error("Failed to list auctions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	out := make([]AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		out = append(out, toAuctionResponse(auction))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.ledger.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction_not_found"})
		}
		h.log.Error("Failed to get auction", "auction_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) BidHistory(c echo.Context) error {
	bids, err := h.registry.BidHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction_not_found"})
		}
		h.log.Error("Failed to load bid history", "auction_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	out := make([]BidHistoryEntry, 0, len(bids))
	for _, bid := range bids {
		out = append(out, BidHistoryEntry{
			BidID:    bid.ID,
			UserID:   bid.UserID,
			Amount:   bid.Amount,
			Sequence: bid.Sequence,
			PlacedAt: bid.PlacedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// CurrentPrice is a lightweight poll endpoint: cache first, ledger fallback.
func (h *AuctionHandler) CurrentPrice(c echo.Context) error {
	auctionID := c.Param("id")
	ctx := c.Request().Context()

	if h.stateCache != nil {
		price, priceOK, priceErr := h.stateCache.GetCurrentPrice(ctx, auctionID)
		status, statusOK, statusErr := h.stateCache.GetStatus(ctx, auctionID)
		if priceErr == nil && statusErr == nil && priceOK && statusOK {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"auction_id":    auctionID,
				"current_price": price,
				"status":        status.String(),
			})
		}
	}

	auction, err := h.ledger.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction_not_found"})
		}
		h.log.Error("Failed to resolve current price", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"auction_id":    auctionID,
		"current_price": auction.CurrentPrice,
		"status":        auction.Status.String(),
	})
}

func toAuctionResponse(auction *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     auction.ID,
		Title:         auction.Title,
		Description:   auction.Description,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		StartTime:     auction.StartTime,
		EndTime:       auction.EndTime,
		Status:        auction.Status.String(),
	}
}
