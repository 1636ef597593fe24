package dicegame

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/wagervault/internal/ledger"
	"github.com/mbd888/wagervault/internal/validation"
)

// Handler provides HTTP endpoints for dice games.
type Handler struct {
	service *Service
}

// NewHandler creates a new dice game handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) game routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/games", h.ListGames)
	r.GET("/games/:id", h.GetGame)
}

// RegisterProtectedRoutes sets up protected (auth-required) game routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/games", h.CreateGame)
	r.POST("/games/:id/join", h.JoinGame)
	r.POST("/games/:id/start", h.StartGame)
	r.POST("/games/:id/roll", h.RollDice)
	r.POST("/games/:id/finalize", h.FinalizeGame)
	r.POST("/games/:id/claim", h.ClaimPrize)
	r.POST("/games/:id/withdraw", h.EmergencyWithdraw)
}

// CreateGame handles POST /v1/games
func (h *Handler) CreateGame(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.PositiveAmount("entry_fee", req.EntryFee),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	creator := c.GetString("authPlayerAddr")
	game, err := h.service.Create(c.Request.Context(), creator, req)
	if err != nil {
		respondError(c, err, "create_failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"game": game})
}

// GetGame handles GET /v1/games/:id
func (h *Handler) GetGame(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

// ListGames handles GET /v1/games
func (h *Handler) ListGames(c *gin.Context) {
	status := Status(c.Query("status"))
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	games, err := h.service.List(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err, "internal_error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"games": games,
		"count": len(games),
	})
}

// JoinGame handles POST /v1/games/:id/join
func (h *Handler) JoinGame(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	player := c.GetString("authPlayerAddr")
	game, err := h.service.Join(c.Request.Context(), id, player)
	if err != nil {
		respondError(c, err, "join_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

// StartGame handles POST /v1/games/:id/start
func (h *Handler) StartGame(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	game, err := h.service.Start(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "start_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

// RollDice handles POST /v1/games/:id/roll
func (h *Handler) RollDice(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	player := c.GetString("authPlayerAddr")
	game, err := h.service.Roll(c.Request.Context(), id, player)
	if err != nil {
		respondError(c, err, "roll_failed")
		return
	}

	idx := game.PlayerIndex(player)
	resp := gin.H{"game": game}
	if idx >= 0 && game.Rolls[idx] != nil {
		resp["roll"] = game.Rolls[idx]
	}
	c.JSON(http.StatusOK, resp)
}

// FinalizeGame handles POST /v1/games/:id/finalize
func (h *Handler) FinalizeGame(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	game, err := h.service.Finalize(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "finalize_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": game})
}

// ClaimPrize handles POST /v1/games/:id/claim
func (h *Handler) ClaimPrize(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	game, err := h.service.Claim(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "claim_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game":  game,
		"prize": game.Prize,
	})
}

// EmergencyWithdraw handles POST /v1/games/:id/withdraw
func (h *Handler) EmergencyWithdraw(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	caller := c.GetString("authPlayerAddr")
	game, err := h.service.EmergencyWithdraw(c.Request.Context(), id, caller)
	if err != nil {
		respondError(c, err, "withdraw_failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game":   game,
		"refund": game.EntryFee,
	})
}

func parseGameID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Game id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Game not found"})
	case errors.Is(err, ErrGameExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists", "message": "A game with this id already exists"})
	case errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotWinner),
		errors.Is(err, ErrPlayerNotInGame):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, ErrInvalidEntryFee),
		errors.Is(err, ErrInvalidCapacity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient_balance", "message": "Insufficient balance to cover the entry fee"})
	case errors.Is(err, ErrGameFull),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrGameNotWaiting),
		errors.Is(err, ErrGameNotPlaying),
		errors.Is(err, ErrGameNotCompleted),
		errors.Is(err, ErrAlreadyRolled),
		errors.Is(err, ErrRollsIncomplete),
		errors.Is(err, ErrNotEnoughPlayers),
		errors.Is(err, ErrPrizeClaimed),
		errors.Is(err, ErrNotExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "message": err.Error()})
	}
}
