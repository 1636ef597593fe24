package betting

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/wagervault/internal/ledger"
	"github.com/mbd888/wagervault/internal/validation"
)

// Handler provides HTTP endpoints for arbitrated bets.
type Handler struct {
	service *Service
}

// NewHandler creates a new betting handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) bet routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/bets", h.ListBets)
	r.GET("/bets/:id", h.GetBet)
	r.GET("/bets/:id/group-bets", h.ListGroupBets)
	r.GET("/accounts/:address/bets", h.ListBetsByParticipant)
}

// RegisterProtectedRoutes sets up protected (auth-required) bet routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/bets", h.CreateBet)
	r.POST("/bets/:id/deposit", h.Deposit)
	r.POST("/bets/:id/join", h.JoinBet)
	r.POST("/bets/:id/declare-winner", h.DeclareWinner)
	r.POST("/bets/:id/withdraw", h.WithdrawWinnings)
	r.POST("/bets/:id/arbiter-fee", h.PayArbiterFee)
	r.POST("/bets/:id/group-bets", h.PlaceGroupBet)
	r.POST("/group-bets/:groupBetId/claim", h.ClaimGroupBet)
}

// CreateBet handles POST /v1/bets
func (h *Handler) CreateBet(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("arbiter", req.Arbiter),
		validation.PositiveAmount("amount", req.Amount),
		validation.MaxLength("description", req.Description, 500),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	creator := c.GetString("authPlayerAddr")
	bet, err := h.service.Create(c.Request.Context(), creator, req)
	if err != nil {
		respondError(c, err, "create_failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bet": bet})
}

// GetBet handles GET /v1/bets/:id
func (h *Handler) GetBet(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	bet, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bet": bet})
}

// ListBets handles GET /v1/bets
func (h *Handler) ListBets(c *gin.Context) {
	status := Status(c.Query("status"))
	limit := queryLimit(c)

	bets, err := h.service.List(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  bets,
		"count": len(bets),
	})
}

// ListBetsByParticipant handles GET /v1/accounts/:address/bets
func (h *Handler) ListBetsByParticipant(c *gin.Context) {
	address := c.Param("address")
	limit := queryLimit(c)

	bets, err := h.service.ListByParticipant(c.Request.Context(), address, limit)
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  bets,
		"count": len(bets),
	})
}

// Deposit handles POST /v1/bets/:id/deposit
func (h *Handler) Deposit(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	bet, err := h.service.Deposit(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "deposit_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bet": bet})
}

// JoinBet handles POST /v1/bets/:id/join
func (h *Handler) JoinBet(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	bet, err := h.service.Join(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "join_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bet": bet})
}

// DeclareWinnerRequest names the winning participant.
type DeclareWinnerRequest struct {
	Winner string `json:"winner" binding:"required"`
}

// DeclareWinner handles POST /v1/bets/:id/declare-winner
func (h *Handler) DeclareWinner(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	var req DeclareWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	caller := c.GetString("authPlayerAddr")
	bet, err := h.service.DeclareWinner(c.Request.Context(), id, caller, req.Winner)
	if err != nil {
		respondError(c, err, "declare_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bet": bet})
}

// WithdrawWinnings handles POST /v1/bets/:id/withdraw
func (h *Handler) WithdrawWinnings(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	bet, err := h.service.WithdrawWinnings(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "withdraw_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bet":    bet,
		"payout": bet.Payout,
	})
}

// PayArbiterFee handles POST /v1/bets/:id/arbiter-fee
func (h *Handler) PayArbiterFee(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	bet, err := h.service.PayArbiterFee(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "arbiter_fee_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bet": bet,
		"fee": bet.ArbiterFee,
	})
}

// PlaceGroupBetRequest contains the side-bet parameters.
type PlaceGroupBetRequest struct {
	Choice string `json:"choice" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// PlaceGroupBet handles POST /v1/bets/:id/group-bets
func (h *Handler) PlaceGroupBet(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	var req PlaceGroupBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	bettor := c.GetString("authPlayerAddr")
	gb, err := h.service.PlaceGroupBet(c.Request.Context(), id, bettor, req.Choice, req.Amount)
	if err != nil {
		respondError(c, err, "group_bet_failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"groupBet": gb})
}

// ListGroupBets handles GET /v1/bets/:id/group-bets
func (h *Handler) ListGroupBets(c *gin.Context) {
	id, ok := parseBetID(c)
	if !ok {
		return
	}

	gbs, err := h.service.ListGroupBets(c.Request.Context(), id, queryLimit(c))
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groupBets": gbs,
		"count":     len(gbs),
	})
}

// ClaimGroupBet handles POST /v1/group-bets/:groupBetId/claim
func (h *Handler) ClaimGroupBet(c *gin.Context) {
	caller := c.GetString("authPlayerAddr")
	gb, err := h.service.ClaimGroupBet(c.Request.Context(), c.Param("groupBetId"), caller)
	if err != nil {
		respondError(c, err, "claim_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groupBet": gb,
		"payout":   gb.Payout,
	})
}

func parseBetID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Bet id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}
	return limit
}

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrBetNotFound),
		errors.Is(err, ErrGroupBetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, ErrBetExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists", "message": "A bet with this id already exists"})
	case errors.Is(err, ErrUnauthorizedArbiter),
		errors.Is(err, ErrUnauthorizedDepositor),
		errors.Is(err, ErrNotWinner):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, ErrInvalidBetType),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidChoice),
		errors.Is(err, ErrInvalidWinner),
		errors.Is(err, ErrArbiterIsParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient_balance", "message": "Insufficient balance to cover the stake"})
	case errors.Is(err, ErrInvalidBetStatus),
		errors.Is(err, ErrBetFull),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrAlreadyDeposited),
		errors.Is(err, ErrMinimumTimeNotMet),
		errors.Is(err, ErrWinningsClaimed),
		errors.Is(err, ErrArbiterFeePaid),
		errors.Is(err, ErrNotExpired),
		errors.Is(err, ErrGroupBetLost),
		errors.Is(err, ErrGroupBetClaimed),
		errors.Is(err, ErrNoWinningSideBets):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "message": err.Error()})
	}
}
