package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vestra-platform/vestra_service/internal/domain/repositories"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// TransactionHandlers handles the owner statement read operations
type TransactionHandlers struct {
	transactionRepo repositories.TransactionRepository
	logger          *logger.Logger
}

// NewTransactionHandlers creates a new TransactionHandlers instance
func NewTransactionHandlers(transactionRepo repositories.TransactionRepository, logger *logger.Logger) *TransactionHandlers {
	return &TransactionHandlers{
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// ListTransactions handles GET /transactions
func (h *TransactionHandlers) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, err := h.transactionRepo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list transactions", "owner_id", ownerID.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
