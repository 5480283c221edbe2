package handler

import (
	"errors"
	"strconv"
	"time"

	"coinwallet/internal/config"
	"coinwallet/internal/infrastructure/lock"
	"coinwallet/internal/service"
	"coinwallet/internal/storage"
	"coinwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// Handler bundles every service the HTTP layer depends on.
type Handler struct {
	accountService     *service.AccountService
	transactionService *service.TransactionService
	queryService       *service.QueryService
	cfg                *config.Config
}

func NewHandler(store storage.Store, locker lock.Locker, cfg *config.Config) *Handler {
	return &Handler{
		accountService:     service.NewAccountService(store),
		transactionService: service.NewTransactionService(store, locker, cfg),
		queryService:       service.NewQueryService(store, cfg.Business.HistoryPageSize),
		cfg:                cfg,
	}
}

// ============================================================
// Auth
// ============================================================

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	CPF      string `json:"cpf" binding:"required"`
}

// Register creates an account with balance zero and signs the caller in.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), &service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		CPF:      req.CPF,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.issueToken(account.ID)
	if err != nil {
		response.ServerError(c, "failed to issue token")
		return
	}

	response.Success(c, gin.H{
		"token":   token,
		"account": account,
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates by email and password.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.accountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.issueToken(account.ID)
	if err != nil {
		response.ServerError(c, "failed to issue token")
		return
	}

	response.Success(c, gin.H{
		"token":   token,
		"account": account,
	})
}

// ============================================================
// Account
// ============================================================

// GetSnapshot returns the caller's balance and profile fields.
// GET /api/v1/account/snapshot
func (h *Handler) GetSnapshot(c *gin.Context) {
	snapshot, err := h.queryService.GetSnapshot(c.Request.Context(), accountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, snapshot)
}

type PixKeyRequest struct {
	PixKey string `json:"pix_key" binding:"required"`
}

// SetPixKey registers the caller's withdrawal destination.
// POST /api/v1/account/pix-key
func (h *Handler) SetPixKey(c *gin.Context) {
	var req PixKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.accountService.SetPixKey(c.Request.Context(), accountID(c), req.PixKey); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "PIX key saved"})
}

// Lookup resolves a CPF to a member, or reports that no member exists,
// so the client can offer an invite instead of a transfer.
// GET /api/v1/account/lookup/:cpf
func (h *Handler) Lookup(c *gin.Context) {
	result, err := h.queryService.LookupByCPF(c.Request.Context(), c.Param("cpf"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// Wallet
// ============================================================

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit credits external funds to the caller's account.
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.transactionService.Deposit(c.Request.Context(), accountID(c), req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance})
}

// Withdraw debits the caller's account toward its registered PIX key.
// The engine only enforces sufficient funds; the payout-key check lives
// here, at the profile boundary.
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if account.PixKey == "" {
		response.BusinessError(c, response.CodePixKeyMissing, "register a PIX key before withdrawing")
		return
	}

	balance, err := h.transactionService.Withdraw(c.Request.Context(), account.ID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance})
}

type TransferRequest struct {
	RecipientCPF string          `json:"recipient_cpf" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
}

// Transfer moves coins to the member addressed by CPF.
// POST /api/v1/wallet/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.transactionService.Transfer(c.Request.Context(), accountID(c), req.RecipientCPF, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"balance":        result.NewBalance,
		"recipient_name": result.RecipientName,
		"transfer_group": result.TransferGroup,
	})
}

// ListTransactions returns one page of the caller's ledger, newest first.
// GET /api/v1/wallet/transactions?filter=all&page=1&page_size=50
func (h *Handler) ListTransactions(c *gin.Context) {
	filter := c.DefaultQuery("filter", service.FilterAll)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	entries, total, err := h.queryService.GetHistory(c.Request.Context(), accountID(c), filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  entries,
		"total": total,
		"page":  page,
	})
}

// ============================================================
// Error mapping
// ============================================================

// writeError translates typed core failures to stable business codes.
// Anything unrecognized becomes a generic server error: raw storage
// error text never reaches a client.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidCPF),
		errors.Is(err, service.ErrInvalidFilter):
		response.ParamError(c, err.Error())
	case errors.Is(err, storage.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, "insufficient funds")
	case errors.Is(err, service.ErrRecipientNotFound):
		response.BusinessError(c, response.CodeRecipientNotFound, "recipient not found")
	case errors.Is(err, service.ErrSelfTransfer):
		response.BusinessError(c, response.CodeSelfTransfer, "cannot transfer to your own account")
	case errors.Is(err, storage.ErrDuplicateAccount):
		response.BusinessError(c, response.CodeDuplicateAccount, "an account already exists for this CPF or email")
	case errors.Is(err, storage.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, "account not found")
	case errors.Is(err, service.ErrInvalidCredential):
		response.Unauthorized(c, "invalid email or password")
	case errors.Is(err, lock.ErrLockFailed):
		response.BusinessError(c, response.CodeOperationBusy, "account busy, try again shortly")
	case errors.Is(err, service.ErrStorageFault):
		response.BusinessError(c, response.CodeOperationBusy, "could not complete the operation, try again")
	default:
		response.ServerError(c, "internal error")
	}
}

func (h *Handler) issueToken(accountID int64) (string, error) {
	ttl := time.Duration(h.cfg.JWT.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(accountID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWT.Secret))
}
