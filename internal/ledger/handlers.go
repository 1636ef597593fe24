package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for balance queries and transfers.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes sets up public (read-only) ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/balances/:address", h.GetBalance)
	r.GET("/balances/:address/history", h.GetHistory)
}

// RegisterProtectedRoutes sets up auth-required ledger routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/balances/:address/deposit", h.Deposit)
	r.POST("/balances/:address/withdraw", h.Withdraw)
}

// GetBalance handles GET /v1/balances/:address
func (h *Handler) GetBalance(c *gin.Context) {
	bal, err := h.ledger.GetBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "balance_failed",
			"message": "Failed to load balance",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal})
}

// GetHistory handles GET /v1/balances/:address/history
func (h *Handler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.ledger.History(c.Request.Context(), c.Param("address"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "history_failed",
			"message": "Failed to load ledger history",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

type transferRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Reference string `json:"reference"`
}

// Deposit handles POST /v1/balances/:address/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.ledger.Deposit(c.Request.Context(), c.Param("address"), req.Amount, req.Reference); err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "Amount must be greater than zero",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "deposit_failed",
			"message": "Failed to deposit",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deposited"})
}

// Withdraw handles POST /v1/balances/:address/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.ledger.Withdraw(c.Request.Context(), c.Param("address"), req.Amount, req.Reference); err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_amount",
				"message": "Amount must be greater than zero",
			})
		case errors.Is(err, ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":   "insufficient_balance",
				"message": "Available balance does not cover the withdrawal",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "withdraw_failed",
				"message": "Failed to withdraw",
			})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}
