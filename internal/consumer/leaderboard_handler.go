package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"example.com/octofit/internal/events"
)

// LeaderboardRebuilder recomputes the stored rankings.
type LeaderboardRebuilder interface {
	RebuildLeaderboard(ctx context.Context) error
}

// LeaderboardHandler rebuilds the leaderboard whenever a user changes.
type LeaderboardHandler struct {
	rebuilder LeaderboardRebuilder
	logger    *zap.Logger
}

// NewLeaderboardHandler constructs a handler. A nil logger disables logging.
func NewLeaderboardHandler(rebuilder LeaderboardRebuilder, logger *zap.Logger) *LeaderboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardHandler{rebuilder: rebuilder, logger: logger}
}

// Handle implements Handler. Event types other than user.updated are acknowledged and ignored.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.UserUpdatedType {
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType))
		return nil
	}

	var evt events.UserUpdated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", msg.EventType, err)
	}

	if err := h.rebuilder.RebuildLeaderboard(ctx); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	h.logger.Info("leaderboard rebuilt",
		zap.String("user_id", evt.UserID),
		zap.Bool("team_changed", evt.TeamChanged()))
	return nil
}
