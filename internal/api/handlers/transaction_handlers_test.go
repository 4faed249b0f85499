package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestra-platform/vestra_service/internal/api/handlers"
	"github.com/vestra-platform/vestra_service/internal/api/middleware"
	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

type mockTransactionRepo struct {
	transactions []*entities.Transaction
	gotLimit     int
	gotOffset    int
}

func (m *mockTransactionRepo) Create(ctx context.Context, tx *entities.Transaction) error {
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *mockTransactionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	m.gotLimit = limit
	m.gotOffset = offset
	var result []*entities.Transaction
	for _, tx := range m.transactions {
		if tx.OwnerID == ownerID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *mockTransactionRepo) HasPrincipalRelease(ctx context.Context, investmentID uuid.UUID) (bool, error) {
	return false, nil
}

func (m *mockTransactionRepo) HasProfitNear(ctx context.Context, investmentID uuid.UUID, periodEnding time.Time, window time.Duration) (bool, error) {
	return false, nil
}

func newTransactionsRouter(repo *mockTransactionRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	h := handlers.NewTransactionHandlers(repo, log)

	router := gin.New()
	owner := router.Group("/api/v1")
	owner.Use(middleware.Identity(log))
	owner.GET("/transactions", h.ListTransactions)
	return router
}

func TestListTransactionsReturnsOwnerStatement(t *testing.T) {
	ownerID := uuid.New()
	otherID := uuid.New()
	repo := &mockTransactionRepo{transactions: []*entities.Transaction{
		{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			Type:     entities.TransactionProfit,
			Amount:   decimal.NewFromFloat(142.5),
			Currency: "USD",
			Status:   entities.TransactionCompleted,
		},
		{
			ID:       uuid.New(),
			OwnerID:  otherID,
			Type:     entities.TransactionProfit,
			Amount:   decimal.NewFromInt(10),
			Currency: "USD",
			Status:   entities.TransactionCompleted,
		},
	}}
	router := newTransactionsRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=25&offset=5", nil)
	req.Header.Set("X-Owner-ID", ownerID.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Transactions []*entities.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, ownerID, body.Transactions[0].OwnerID)

	assert.Equal(t, 25, repo.gotLimit)
	assert.Equal(t, 5, repo.gotOffset)
}

func TestListTransactionsRequiresIdentity(t *testing.T) {
	router := newTransactionsRouter(&mockTransactionRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
