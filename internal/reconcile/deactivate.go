package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/storedsafe/ldapsync/internal/storedsafe"
)

// UserEditor is the StoredSafe write capability the deactivator consumes.
type UserEditor interface {
	EditUserStatus(id string, status int) error
}

// StatusChange records one applied status mutation.
type StatusChange struct {
	UserID    string
	Username  string
	OldStatus int
	NewStatus int
}

// Deactivate clears the active bit on every given user, one sequential
// write per user. The mutation is status XOR the active bit: applied to
// an inactive account it would reactivate it, so callers must only pass
// users from an active-filtered set. The same user appearing twice is
// written twice; the second write toggles the bit back on, which is why
// upstream never deduplicates against anything but the active filter.
//
// The applied changes are returned even on error, so the caller can
// record the writes that did land before the failure.
func Deactivate(editor UserEditor, users []storedsafe.User, logger *slog.Logger) ([]StatusChange, error) {
	changes := make([]StatusChange, 0, len(users))
	for _, user := range users {
		newStatus := user.Status ^ storedsafe.BitActive
		logger.Info("deactivating user", "username", user.Username, "id", user.ID)
		logger.Debug("status change", "id", user.ID, "from", user.Status, "to", newStatus)
		if err := editor.EditUserStatus(user.ID, newStatus); err != nil {
			return changes, fmt.Errorf("deactivate user %s (%s): %w", user.Username, user.ID, err)
		}
		changes = append(changes, StatusChange{
			UserID:    user.ID,
			Username:  user.Username,
			OldStatus: user.Status,
			NewStatus: newStatus,
		})
	}
	return changes, nil
}
