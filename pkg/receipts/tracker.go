// Package receipts decides which messages a user has not read yet and
// records reads durably in one coordinated batch.
package receipts

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

// UnreadFor filters msgs down to the ids userID has not read. Self-authored
// messages are excluded by construction: a sender is implicitly considered
// to have read its own message, and is never inserted into readBy.
func UnreadFor(userID string, msgs []models.Message) []string {
	unread := lo.Filter(msgs, func(m models.Message, _ int) bool {
		return m.SenderID != userID && !m.HasRead(userID)
	})
	return lo.Map(unread, func(m models.Message, _ int) string { return m.ID })
}

// MarkRead computes the unread set of msgs for userID and, if non-empty,
// commits one atomic batch of receipts. Calling it redundantly is cheap and
// safe: already-read messages produce no writes, so a retry after a partial
// failure converges to the same state.
func MarkRead(ctx context.Context, userID string, msgs []models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids := UnreadFor(userID, msgs)
	if len(ids) == 0 {
		return nil
	}
	return store.MarkReadBatch(userID, ids, time.Now().UTC().UnixNano())
}

// MarkReadIDs resolves explicit message ids and marks them read for userID.
// Unknown ids fail the whole call; self-authored and already-read ids are
// filtered out before the batch is built.
func MarkReadIDs(ctx context.Context, userID string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs := make([]models.Message, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		m, err := store.Get(id)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
	}
	return MarkRead(ctx, userID, msgs)
}

// MarkRecentRead is the best-effort entry point behind the passive triggers
// (new snapshot delivered, app foregrounded). It marks the current feed
// window read and only logs failures; the next trigger retries naturally.
func MarkRecentRead(ctx context.Context, userID string, limit int) {
	msgs, err := store.ListRecent(limit)
	if err != nil {
		if !errors.Is(err, store.ErrClosed) {
			logger.Warn("mark_recent_read_list_failed", "user", userID, "error", err)
		}
		return
	}
	if err := MarkRead(ctx, userID, msgs); err != nil {
		logger.Warn("mark_recent_read_failed", "user", userID, "error", err)
	}
}
