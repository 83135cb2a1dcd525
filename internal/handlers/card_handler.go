package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// CardHandler handles card-related requests.
type CardHandler struct {
	cardService  services.CardServicer
	auditService services.AuditServicer
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardService services.CardServicer, auditService services.AuditServicer) *CardHandler {
	return &CardHandler{cardService: cardService, auditService: auditService}
}

// CreateCardRequest represents the request payload for creating a card.
type CreateCardRequest struct {
	Name        string              `json:"name" binding:"required,min=1,max=100"`
	Brand       string              `json:"brand" binding:"max=50"`
	CreditLimit decimal.NullDecimal `json:"credit_limit" swaggertype:"number"`
	ClosingDay  int                 `json:"closing_day" binding:"required,card_day"`
	DueDay      int                 `json:"due_day" binding:"required,card_day"`
	IsActive    *bool               `json:"is_active"`
}

// UpdateCardRequest represents the request payload for updating a card.
// Omitted fields are left unchanged.
type UpdateCardRequest struct {
	Name        *string             `json:"name" binding:"omitempty,min=1,max=100"`
	Brand       *string             `json:"brand" binding:"omitempty,max=50"`
	CreditLimit decimal.NullDecimal `json:"credit_limit" swaggertype:"number"`
	ClosingDay  *int                `json:"closing_day" binding:"omitempty,card_day"`
	DueDay      *int                `json:"due_day" binding:"omitempty,card_day"`
	IsActive    *bool               `json:"is_active"`
}

// CreateCard handles the creation of a new card.
// @Summary     Create a card
// @Description Register a credit card with its closing and due days
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCardRequest true "Card details"
// @Success     201 {object} models.Card "Card created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards [post]
func (h *CardHandler) CreateCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	card, err := h.cardService.CreateCard(userID, services.CardInput{
		Name:        &req.Name,
		Brand:       &req.Brand,
		CreditLimit: req.CreditLimit,
		ClosingDay:  &req.ClosingDay,
		DueDay:      &req.DueDay,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"card": card})
}

// GetCards handles listing cards for the authenticated user.
// @Summary     Get cards
// @Description Get a paginated list of cards for the authenticated user
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       active    query bool false "Only active cards"
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Card] "Paginated cards"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards [get]
func (h *CardHandler) GetCards(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	activeOnly, err := parseBoolQuery(c, "active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.cardService.GetUserCards(userID, page, activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCard handles retrieving a specific card.
// @Summary     Get card by ID
// @Description Get a specific card by ID
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Card ID"
// @Success     200 {object} models.Card "Card details"
// @Failure     400 {object} ErrorResponse "Invalid card ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [get]
func (h *CardHandler) GetCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	card, err := h.cardService.GetCardByID(userID, cardID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"card": card})
}

// UpdateCard handles updating an existing card.
// @Summary     Update card
// @Description Update an existing card. Changing the closing or due day only affects cycles computed afterwards.
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Card ID"
// @Param       request body UpdateCardRequest true "Updated card details"
// @Success     200 {object} models.Card "Updated card"
// @Failure     400 {object} ErrorResponse "Invalid input or card ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [put]
func (h *CardHandler) UpdateCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	card, err := h.cardService.UpdateCard(userID, cardID, services.CardInput{
		Name:        req.Name,
		Brand:       req.Brand,
		CreditLimit: req.CreditLimit,
		ClosingDay:  req.ClosingDay,
		DueDay:      req.DueDay,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"card": card})
}

// DeleteCard handles deleting a card.
// @Summary     Delete card
// @Description Delete a card that has no purchases or statements
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Card ID"
// @Success     200 {object} MessageResponse "Card deleted"
// @Failure     400 {object} ErrorResponse "Invalid card ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     409 {object} ErrorResponse "Card in use"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id} [delete]
func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.cardService.DeleteCard(userID, cardID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_CARD", "card", cardID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Card deleted successfully"})
}

// EstimateStatements handles projecting the card's upcoming statements.
// @Summary     Estimate statements
// @Description Predicted amount of the open cycle and the following ones
// @Tags        cards
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true  "Card ID"
// @Param       months query int    false "Number of cycles (default 3, max 24)"
// @Success     200 {array}  services.CardEstimate "Estimated statements"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id}/estimate [get]
func (h *CardHandler) EstimateStatements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	months, err := parseIntQuery(c, "months", 1, 24)
	if err != nil {
		respondWithError(c, err)
		return
	}
	n := 0
	if months != nil {
		n = *months
	}

	estimates, err := h.cardService.EstimateStatements(userID, cardID, n)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"estimates": estimates})
}
