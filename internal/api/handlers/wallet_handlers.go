package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vestra-platform/vestra_service/internal/domain/services/ledger"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// WalletHandlers handles wallet and ledger read operations
type WalletHandlers struct {
	ledgerService *ledger.Service
	logger        *logger.Logger
}

// NewWalletHandlers creates a new WalletHandlers instance
func NewWalletHandlers(ledgerService *ledger.Service, logger *logger.Logger) *WalletHandlers {
	return &WalletHandlers{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// ListWallets handles GET /wallets
func (h *WalletHandlers) ListWallets(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	wallets, err := h.ledgerService.ListWallets(ctx, ownerID)
	if err != nil {
		h.logger.Error("Failed to list wallets", "owner_id", ownerID.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	totalUSD, err := h.ledgerService.TotalAvailableUSD(ctx, ownerID)
	if err != nil {
		h.logger.Error("Failed to total wallets", "owner_id", ownerID.String(), "error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallets":             wallets,
		"total_available_usd": totalUSD,
	})
}

// GetBalance handles GET /wallets/:currency/balance
func (h *WalletHandlers) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	currency := strings.ToUpper(c.Param("currency"))
	balance, err := h.ledgerService.GetBalance(ctx, ownerID, currency)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"balance":  balance,
	})
}

// GetMovements handles GET /wallets/:currency/movements
func (h *WalletHandlers) GetMovements(c *gin.Context) {
	ctx := c.Request.Context()

	ownerID, err := getOwnerID(c)
	if err != nil {
		respondBadRequest(c, "Invalid or missing owner ID", map[string]interface{}{"error": err.Error()})
		return
	}

	currency := strings.ToUpper(c.Param("currency"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	movements, err := h.ledgerService.MovementHistory(ctx, ownerID, currency, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list movements",
			"owner_id", ownerID.String(),
			"currency", currency,
			"error", err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}
