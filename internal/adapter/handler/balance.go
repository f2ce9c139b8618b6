package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yusufabdi/payledger/internal/core/domain"
	"github.com/yusufabdi/payledger/internal/core/ledger"
)

type BalanceHandler struct {
	Ledger *ledger.Service
}

// Request models. Amounts accept both JSON numbers and strings.
type DepositRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment"`
}

type WithdrawRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment"`
}

type TransferRequest struct {
	FromID  string          `json:"from_id"`
	ToID    string          `json:"to_id"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

// Deposit API
func (h *BalanceHandler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid account_id"})
	}

	res, err := h.Ledger.Deposit(c.Context(), accountID, req.Amount, req.Comment)
	if err != nil {
		return writeLedgerError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Deposit successful", "data": res})
}

// Withdraw API
func (h *BalanceHandler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid account_id"})
	}

	res, err := h.Ledger.Withdraw(c.Context(), accountID, req.Amount, req.Comment)
	if err != nil {
		return writeLedgerError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Withdrawal successful", "data": res})
}

// Transfer API
func (h *BalanceHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid from_id"})
	}

	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid to_id"})
	}

	res, err := h.Ledger.Transfer(c.Context(), fromID, toID, req.Amount, req.Comment)
	if err != nil {
		return writeLedgerError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Transfer successful", "data": res})
}

// GetBalance API
func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid account id"})
	}

	bal, err := h.Ledger.GetBalance(c.Context(), accountID)
	if err != nil {
		return writeLedgerError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "data": bal})
}

// GetHistory fetches the account's most recent transaction records.
func (h *BalanceHandler) GetHistory(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Invalid account id"})
	}

	limit := c.QueryInt("limit", ledger.DefaultHistoryLimit)

	recs, err := h.Ledger.GetHistory(c.Context(), accountID, limit)
	if err != nil {
		return writeLedgerError(c, err)
	}

	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"transactions": recs}})
}

// writeLedgerError maps the two error channels onto HTTP codes: domain
// rejections become 404/409/422, infrastructure failures become 500.
func writeLedgerError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientFundsError

	switch {
	case errors.As(err, &insufficient):
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error": "Insufficient balance",
			"data": fiber.Map{
				"current_balance":  insufficient.Current,
				"requested_amount": insufficient.Requested,
			},
		})
	case errors.Is(err, domain.ErrNoBalanceRecord):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account has no balance record"})
	case errors.Is(err, domain.ErrInvalidAccountPair), errors.Is(err, domain.ErrInvalidAmount):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		slog.Error("Ledger operation failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Operation failed"})
	}
}
