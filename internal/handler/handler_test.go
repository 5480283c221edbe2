package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinwallet/internal/config"
	"coinwallet/internal/handler"
	"coinwallet/internal/infrastructure/lock"
	"coinwallet/internal/storage"
	"coinwallet/internal/storage/memory"
	"coinwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	return newRouterWith(memory.New())
}

func newRouterWith(store storage.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWT:      config.JWTConfig{Secret: "test-secret", TTLMinutes: 60},
		Kafka:    config.KafkaConfig{Topic: config.KafkaTopicConfig{LedgerEvents: "test.ledger.events"}},
		Business: config.BusinessConfig{MaxRetryCount: 3, HistoryPageSize: 50},
	}
	return handler.SetupRouter(store, lock.NewLocalLocker(), cfg)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func registerUser(t *testing.T, router *gin.Engine, name, email, cpf string) string {
	t.Helper()
	_, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "s3cret-pw",
		"cpf":      cpf,
	})
	require.Equal(t, response.CodeSuccess, env.Code, "register failed: %s", env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestWalletEndToEnd(t *testing.T) {
	router := newTestRouter()

	anaToken := registerUser(t, router, "Ana", "ana@example.com", "123.456.789-09")
	registerUser(t, router, "Bruno", "bruno@example.com", "987.654.321-00")

	// Deposit 100.
	_, env := doJSON(t, router, http.MethodPost, "/api/v1/wallet/deposit", anaToken,
		gin.H{"amount": "100"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	// Withdrawal is blocked until a PIX key is registered.
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/withdraw", anaToken,
		gin.H{"amount": "10"})
	assert.Equal(t, response.CodePixKeyMissing, env.Code)

	_, env = doJSON(t, router, http.MethodPost, "/api/v1/account/pix-key", anaToken,
		gin.H{"pix_key": "ana@bank.example"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/withdraw", anaToken,
		gin.H{"amount": "10"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	// Transfer 40 to Bruno by CPF.
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/transfer", anaToken,
		gin.H{"recipient_cpf": "987.654.321-00", "amount": "40"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var transfer struct {
		Balance       string `json:"balance"`
		RecipientName string `json:"recipient_name"`
		TransferGroup string `json:"transfer_group"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &transfer))
	assert.Equal(t, "Bruno", transfer.RecipientName)
	assert.Equal(t, "50", transfer.Balance)
	assert.NotEmpty(t, transfer.TransferGroup)

	// Snapshot reflects every operation.
	_, env = doJSON(t, router, http.MethodGet, "/api/v1/account/snapshot", anaToken, nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var snap struct {
		Balance string `json:"balance"`
		CPF     string `json:"cpf"`
		PixKey  string `json:"pix_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "50", snap.Balance)
	assert.Equal(t, "12345678909", snap.CPF)
	assert.Equal(t, "ana@bank.example", snap.PixKey)

	// History: newest first, one entry per operation.
	_, env = doJSON(t, router, http.MethodGet, "/api/v1/wallet/transactions", anaToken, nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var history struct {
		List []struct {
			Kind string `json:"kind"`
		} `json:"list"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.EqualValues(t, 3, history.Total)
	require.Len(t, history.List, 3)
	assert.Equal(t, "TRANSFER_OUT", history.List[0].Kind)
	assert.Equal(t, "WITHDRAWAL", history.List[1].Kind)
	assert.Equal(t, "DEPOSIT", history.List[2].Kind)
}

func TestBusinessErrorCodes(t *testing.T) {
	router := newTestRouter()
	anaToken := registerUser(t, router, "Ana", "ana@example.com", "123.456.789-09")

	// Recipient not registered yet.
	_, env := doJSON(t, router, http.MethodPost, "/api/v1/wallet/transfer", anaToken,
		gin.H{"recipient_cpf": "987.654.321-00", "amount": "10"})
	assert.Equal(t, response.CodeRecipientNotFound, env.Code)

	registerUser(t, router, "Bruno", "bruno@example.com", "987.654.321-00")
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/transfer", anaToken,
		gin.H{"recipient_cpf": "987.654.321-00", "amount": "10"})
	assert.Equal(t, response.CodeInsufficientFunds, env.Code)

	// Self transfer by own CPF.
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/deposit", anaToken,
		gin.H{"amount": "50"})
	require.Equal(t, response.CodeSuccess, env.Code)
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/transfer", anaToken,
		gin.H{"recipient_cpf": "123.456.789-09", "amount": "10"})
	assert.Equal(t, response.CodeSelfTransfer, env.Code)

	// Duplicate registration, CPF formatted differently.
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Ana Clone", "email": "clone@example.com",
		"password": "s3cret-pw", "cpf": "12345678909",
	})
	assert.Equal(t, response.CodeDuplicateAccount, env.Code)

	// Malformed amount fails binding.
	_, env = doJSON(t, router, http.MethodPost, "/api/v1/wallet/deposit", anaToken,
		gin.H{"amount": "abc"})
	assert.Equal(t, response.CodeParamError, env.Code)
}

func TestLoginFlow(t *testing.T) {
	router := newTestRouter()
	registerUser(t, router, "Ana", "ana@example.com", "123.456.789-09")

	_, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"email": "ana@example.com", "password": "s3cret-pw"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Token)

	_, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, response.CodeUnauthorized, env.Code)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter()

	_, env := doJSON(t, router, http.MethodGet, "/api/v1/account/snapshot", "", nil)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	_, env = doJSON(t, router, http.MethodGet, "/api/v1/account/snapshot", "not-a-token", nil)
	assert.Equal(t, response.CodeUnauthorized, env.Code)
}

func TestLookupEndpoint(t *testing.T) {
	router := newTestRouter()
	anaToken := registerUser(t, router, "Ana", "ana@example.com", "123.456.789-09")
	registerUser(t, router, "Bruno", "bruno@example.com", "987.654.321-00")

	_, env := doJSON(t, router, http.MethodGet, "/api/v1/account/lookup/98765432100", anaToken, nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var result struct {
		Exists bool   `json:"exists"`
		Name   string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Exists)
	assert.Equal(t, "Bruno", result.Name)

	_, env = doJSON(t, router, http.MethodGet, "/api/v1/account/lookup/00000000000", anaToken, nil)
	require.Equal(t, response.CodeSuccess, env.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Exists)
}

// contendedStore fails every unit of work with transient contention, so
// money endpoints exhaust their retries.
type contendedStore struct {
	*memory.Store
}

func (s *contendedStore) InTx(ctx context.Context, accountIDs []int64, fn func(uow storage.UnitOfWork) error) error {
	return storage.ErrTxConflict
}

func TestRetryExhaustionMapsToOperationBusy(t *testing.T) {
	router := newRouterWith(&contendedStore{Store: memory.New()})
	anaToken := registerUser(t, router, "Ana", "ana@example.com", "123.456.789-09")

	_, env := doJSON(t, router, http.MethodPost, "/api/v1/wallet/deposit", anaToken,
		gin.H{"amount": "10"})
	assert.Equal(t, response.CodeOperationBusy, env.Code)
	assert.NotContains(t, env.Message, "conflict", "raw storage text never reaches the client")
}

func TestHealth(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
