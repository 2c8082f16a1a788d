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

type BidHandler struct {
	ledger *services.Ledger
	log    logger.Logger
}

type SubmitBidRequest struct {
	AuctionID string  `json:"auction_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
}

type SubmitBidResponse struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Sequence  uint64    `json:"sequence"`
	PlacedAt  time.Time `json:"placed_at"`
}

func NewBidHandler(ledger *services.Ledger, log logger.Logger) *BidHandler {
	return &BidHandler{ledger: ledger, log: log}
}

// SubmitBid resolves a bid attempt to a definite accepted/rejected outcome.
// Rejections carry a reason code, and bid_too_low additionally reports the
// price the caller must exceed.
func (h *BidHandler) SubmitBid(c echo.Context) error {
	var req SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	}
	if req.AuctionID == "" || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	}

	bid, err := h.ledger.SubmitBid(c.Request().Context(), req.AuctionID, req.UserID, req.Amount)
	if err != nil {
		var tooLow *domain.BidTooLowError
		switch {
		case errors.Is(err, domain.ErrAuctionNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction_not_found"})
		case errors.Is(err, domain.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "user_not_found"})
		case errors.Is(err, domain.ErrAuctionClosed):
			return c.JSON(http.StatusConflict, map[string]string{"error": "auction_closed"})
		case errors.As(err, &tooLow):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error":         "bid_too_low",
				"current_price": tooLow.CurrentPrice,
			})
		default:
			h.log.Error("Failed to submit bid", "auction_id", req.AuctionID, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
	}

	return c.JSON(http.StatusCreated, SubmitBidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		Sequence:  bid.Sequence,
		PlacedAt:  bid.PlacedAt,
	})
}
