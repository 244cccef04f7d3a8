package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"fintracker/internal/models"
	"fintracker/internal/service"
	"fintracker/internal/valuation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PnLComputer interface {
	ComputePnL(ctx context.Context, userID string) (*valuation.PnLReport, error)
}

type BreakdownComputer interface {
	ComputeBreakdown(ctx context.Context, userID, displayCurrency string) (*valuation.BreakdownReport, error)
}

type PositionRecorder interface {
	RecordPositions(ctx context.Context, userID string, inputs []service.PositionInput) ([]models.Position, error)
	ClosePosition(ctx context.Context, userID, id string, in service.CloseInput) (models.Position, error)
	ClearPositions(ctx context.Context, userID string) (int64, error)
}

type AccountManager interface {
	CreateAccount(ctx context.Context, userID string, in service.AccountInput) (models.Account, error)
	ListAccounts(ctx context.Context, userID, currency string) ([]models.Account, error)
	PostTransaction(ctx context.Context, userID, accountID string, in service.TransactionInput) (models.FiatTransaction, models.Account, error)
	CheckConsistency(ctx context.Context, userID, accountID string) (service.Consistency, error)
}

type InventoryManager interface {
	ReplaceExchange(ctx context.Context, userID, exchange string, balances []service.Balance) ([]models.CryptoAsset, error)
}

type SnapshotRefresher interface {
	RefreshOnce(ctx context.Context) (service.RefreshResult, error)
}

// Services groups everything the handlers call into.
type Services struct {
	PnL       PnLComputer
	Breakdown BreakdownComputer
	Positions PositionRecorder
	Accounts  AccountManager
	Inventory InventoryManager
	Refresher SnapshotRefresher
}

type Handler struct {
	svc Services
	log *logrus.Logger
}

func NewHandler(svc Services, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts every route on rg.
func (h *Handler) Register(rg gin.IRouter) {
	rg.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	rg.GET("/pnl/:userId", h.GetPnL)
	rg.GET("/breakdown/:userId", h.GetBreakdown)

	rg.POST("/positions/:userId", h.PostPositions)
	rg.DELETE("/positions/:userId", h.ClearPositions)
	rg.POST("/positions/:userId/:id/close", h.ClosePosition)

	rg.POST("/accounts/:userId", h.PostAccount)
	rg.GET("/accounts/:userId", h.GetAccounts)
	rg.POST("/accounts/:userId/:accountId/transactions", h.PostTransaction)
	rg.GET("/accounts/:userId/:accountId/consistency", h.GetConsistency)

	rg.PUT("/crypto-assets/:userId/:exchange", h.PutCryptoAssets)

	rg.POST("/snapshots/refresh", h.RefreshSnapshots)
}

func (h *Handler) GetPnL(c *gin.Context) {
	userID := c.Param("userId")
	report, err := h.svc.PnL.ComputePnL(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "compute pnl", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetBreakdown(c *gin.Context) {
	userID := c.Param("userId")
	currency := c.DefaultQuery("currency", string(valuation.USD))
	report, err := h.svc.Breakdown.ComputeBreakdown(c.Request.Context(), userID, currency)
	if err != nil {
		h.fail(c, "compute breakdown", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostPositions accepts either one position object or an array of them.
// An array is recorded as one all-or-nothing batch.
func (h *Handler) PostPositions(c *gin.Context) {
	userID := c.Param("userId")
	raw, err := c.GetRawData()
	if err != nil {
		h.log.Warnf("read position body: %v", err)
		badRequest(c, "invalid body", err.Error())
		return
	}

	var inputs []service.PositionInput
	single := true
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		single = false
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			badRequest(c, "invalid position list", err.Error())
			return
		}
	} else {
		var in service.PositionInput
		if err := json.Unmarshal(trimmed, &in); err != nil {
			badRequest(c, "invalid position", err.Error())
			return
		}
		inputs = []service.PositionInput{in}
	}

	created, err := h.svc.Positions.RecordPositions(c.Request.Context(), userID, inputs)
	if err != nil {
		h.fail(c, "record positions", err)
		return
	}
	if single {
		c.JSON(http.StatusCreated, created[0])
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ClosePosition(c *gin.Context) {
	var in service.CloseInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid body", err.Error())
			return
		}
	}
	p, err := h.svc.Positions.ClosePosition(c.Request.Context(), c.Param("userId"), c.Param("id"), in)
	if err != nil {
		h.fail(c, "close position", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ClearPositions(c *gin.Context) {
	n, err := h.svc.Positions.ClearPositions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, "clear positions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) PostAccount(c *gin.Context) {
	var in service.AccountInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body", err.Error())
		return
	}
	a, err := h.svc.Accounts.CreateAccount(c.Request.Context(), c.Param("userId"), in)
	if err != nil {
		h.fail(c, "create account", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAccounts(c *gin.Context) {
	accounts, err := h.svc.Accounts.ListAccounts(c.Request.Context(), c.Param("userId"), c.Query("currency"))
	if err != nil {
		h.fail(c, "list accounts", err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var in service.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body", err.Error())
		return
	}
	t, acct, err := h.svc.Accounts.PostTransaction(c.Request.Context(), c.Param("userId"), c.Param("accountId"), in)
	if err != nil {
		h.fail(c, "post transaction", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": t, "account": acct})
}

func (h *Handler) GetConsistency(c *gin.Context) {
	report, err := h.svc.Accounts.CheckConsistency(c.Request.Context(), c.Param("userId"), c.Param("accountId"))
	if err != nil {
		h.fail(c, "check consistency", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PutCryptoAssets replaces one exchange's inventory. The body is either a
// list of balances or an object of named lists (spot, flexible, locked)
// which are merged.
func (h *Handler) PutCryptoAssets(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "invalid body", err.Error())
		return
	}
	var balances []service.Balance
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &balances); err != nil {
			badRequest(c, "invalid balance list", err.Error())
			return
		}
	} else {
		var groups map[string][]service.Balance
		if err := json.Unmarshal(trimmed, &groups); err != nil {
			badRequest(c, "invalid balance groups", err.Error())
			return
		}
		for _, name := range sortedKeys(groups) {
			balances = append(balances, groups[name]...)
		}
	}

	assets, err := h.svc.Inventory.ReplaceExchange(c.Request.Context(), c.Param("userId"), c.Param("exchange"), balances)
	if err != nil {
		h.fail(c, "replace crypto assets", err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) RefreshSnapshots(c *gin.Context) {
	res, err := h.svc.Refresher.RefreshOnce(c.Request.Context())
	if err != nil {
		h.fail(c, "refresh snapshots", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func sortedKeys(m map[string][]service.Balance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
