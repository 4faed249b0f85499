package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/internal/domain/services/investment"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// InvestmentHandlers handles investment position operations
type InvestmentHandlers struct {
	investmentService *investment.Service
	planRepo          repositories.PlanRepository
	profitLogRepo     repositories.ProfitLogRepository
	logger            *logger.Logger
}

// NewInvestmentHandlers creates a new InvestmentHandlers instance
func NewInvestmentHandlers(
	investmentService *investment.Service,
	planRepo repositories.PlanRepository,
	profitLogRepo repositories.ProfitLogRepository,
	logger *logger.Logger,
) *InvestmentHandlers {
	return &InvestmentHandlers{
		investmentService: investmentService,
		planRepo:          planRepo,
		profitLogRepo:     profitLogRepo,
		logger:            logger,
	}
}

// CreateInvestmentBody is the request body for POST /investments
type CreateInvestmentBody struct {
	Plan     string `json:"plan"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

// CreateInvestment handles POST /investments
func (h *InvestmentHandlers) CreateInvestment(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	var body CreateInvestmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondBadRequest(c, "Invalid amount", map[string]interface{}{"amount": body.Amount})
		return
	}

	result, err := h.investmentService.Create(ctx, &entities.CreateInvestmentRequest{
		OwnerID:        ownerID,
		PlanIdentifier: body.Plan,
		Amount:         amount,
		Currency:       body.Currency,
	})
	if err != nil {
		h.logger.Error("Failed to create investment",
			"owner_id", ownerID.String(),
			"request_id", getRequestID(c),
			"error", err)
		respondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Status == entities.PositionPending {
		// Accepted but not funded; diagnostics explain the shortfall
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// ListInvestments handles GET /investments
func (h *InvestmentHandlers) ListInvestments(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	positions, err := h.investmentService.ListPositions(ctx, ownerID)
	if err != nil {
		h.logger.Error("Failed to list investments", "owner_id", ownerID.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// GetInvestmentProfits handles GET /investments/:id/profits
func (h *InvestmentHandlers) GetInvestmentProfits(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	position, err := h.investmentService.GetPosition(ctx, c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if position.OwnerID != ownerID {
		respondNotFound(c, "position not found")
		return
	}

	entries, err := h.profitLogRepo.ListByInvestment(ctx, position.ID)
	if err != nil {
		h.logger.Error("Failed to list profit entries", "position_id", position.ID.String(), "error", err)
		respondInternalError(c, "Failed to retrieve profit history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"position": position,
		"profits":  entries,
	})
}

// ListPlans handles GET /plans
func (h *InvestmentHandlers) ListPlans(c *gin.Context) {
	plans, err := h.planRepo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list plans", "error", err)
		respondInternalError(c, "Failed to retrieve plans")
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
