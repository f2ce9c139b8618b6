package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yusufabdi/payledger/internal/core/notifications"
)

const maxAttempts = 5

// StartNotifier drains the ledger_events outbox: events are written inside
// the same atomic unit as the balance mutation they describe, so every
// committed operation is delivered exactly once the webhook succeeds.
// Cancelling ctx stops the loop after the in-flight delivery, if any.
func StartNotifier(ctx context.Context, db *pgxpool.Pool, webhookURL, secret string, interval time.Duration) {
	go run(ctx, db, webhookURL, secret, interval)
}

func run(ctx context.Context, db *pgxpool.Pool, webhookURL, secret string, interval time.Duration) {
	slog.Info("👷 Ledger event notifier started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("🛑 Ledger event notifier stopped")
			return
		case <-ticker.C:
			if err := processNext(ctx, db, webhookURL, secret); err != nil {
				slog.Error("Notifier: processing failed", "error", err)
			}
		}
	}
}

// processNext claims the oldest pending event, delivers it, and records the
// result. The claim holds a row lock for the duration of the delivery so
// multiple notifier instances never double-send.
func processNext(ctx context.Context, db *pgxpool.Pool, webhookURL, secret string) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rbErr)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	query := `
		SELECT id, event_type, payload, attempts
		FROM ledger_events
		WHERE status = 'PENDING' AND next_run_at <= now()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var (
		id           int64
		eventType    string
		payloadBytes []byte
		attempts     int
	)

	if err := tx.QueryRow(ctx, query).Scan(&id, &eventType, &payloadBytes, &attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}

		return err
	}

	var data any
	if err := json.Unmarshal(payloadBytes, &data); err != nil {
		slog.Error("Notifier: failed to parse payload", "error", err, "event_id", id)

		_, err = tx.Exec(ctx, "UPDATE ledger_events SET status = 'FAILED' WHERE id = $1", id)

		return err
	}

	envelope := map[string]any{
		"event":     eventType,
		"data":      data,
		"timestamp": time.Now().UTC(),
	}

	sendErr := notifications.SendWebhook(webhookURL, envelope, secret)
	if sendErr != nil {
		slog.Error("Notifier: webhook failed", "error", sendErr, "event_id", id, "attempts", attempts)

		if attempts+1 >= maxAttempts {
			slog.Error("Notifier: event marked FAILED, max attempts reached", "event_id", id)

			_, err = tx.Exec(ctx, "UPDATE ledger_events SET status = 'FAILED', attempts = attempts + 1 WHERE id = $1", id)

			return err
		}

		nextRun := time.Now().Add(time.Duration(attempts*10+10) * time.Second)

		_, err = tx.Exec(ctx,
			"UPDATE ledger_events SET attempts = attempts + 1, next_run_at = $2 WHERE id = $1",
			id, nextRun)

		return err
	}

	slog.Info("✅ Notifier: webhook sent", "event_id", id, "event", eventType)

	_, err = tx.Exec(ctx, "UPDATE ledger_events SET status = 'COMPLETED', attempts = attempts + 1 WHERE id = $1", id)

	return err
}
