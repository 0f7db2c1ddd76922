package reconcile

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storedsafe/ldapsync/internal/storedsafe"
)

// fakeEditor records status writes and can fail on a chosen user.
type fakeEditor struct {
	statuses map[string]int
	failOn   string
}

func (f *fakeEditor) EditUserStatus(id string, status int) error {
	if id == f.failOn {
		return errors.New("edit rejected")
	}
	if f.statuses == nil {
		f.statuses = make(map[string]int)
	}
	f.statuses[id] = status
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeactivate_ClearsOnlyActiveBit(t *testing.T) {
	editor := &fakeEditor{}
	users := []storedsafe.User{
		{ID: "1", Username: "adam", Status: 129}, // active bit + bit 0
	}

	changes, err := Deactivate(editor, users, discardLogger())
	require.NoError(t, err)

	// Bit 7 cleared, bit 0 preserved.
	assert.Equal(t, 1, editor.statuses["1"])
	require.Len(t, changes, 1)
	assert.Equal(t, StatusChange{UserID: "1", Username: "adam", OldStatus: 129, NewStatus: 1}, changes[0])
}

func TestDeactivate_IsNotIdempotent(t *testing.T) {
	// The mutation is a toggle: deactivating a record that already had
	// its bit cleared turns the account back on. This is why every
	// upstream stage feeds the deactivator from an active-only set.
	editor := &fakeEditor{}
	user := storedsafe.User{ID: "1", Username: "adam", Status: 129}

	changes, err := Deactivate(editor, []storedsafe.User{user}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, 1, changes[0].NewStatus)

	deactivated := user
	deactivated.Status = changes[0].NewStatus
	_, err = Deactivate(editor, []storedsafe.User{deactivated}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 129, editor.statuses["1"], "toggling an inactive record reactivates it")
}

func TestDeactivate_UpstreamFilterGuaranteesActiveInput(t *testing.T) {
	// FilterActive is the guard that keeps inactive users away from the
	// toggle; an inactive user never reaches Deactivate.
	users := []storedsafe.User{
		{ID: "1", Username: "adam", Status: 129},
		{ID: "2", Username: "bert", Status: 1},
	}

	active := storedsafe.FilterActive(users)

	require.Len(t, active, 1)
	assert.Equal(t, "adam", active[0].Username)
}

func TestDeactivate_SequentialStopsOnFirstError(t *testing.T) {
	editor := &fakeEditor{failOn: "2"}
	users := []storedsafe.User{
		{ID: "1", Username: "adam", Status: 128},
		{ID: "2", Username: "bert", Status: 128},
		{ID: "3", Username: "carl", Status: 128},
	}

	changes, err := Deactivate(editor, users, discardLogger())

	require.ErrorContains(t, err, "bert")
	// The write that landed before the failure is reported and not
	// rolled back.
	require.Len(t, changes, 1)
	assert.Equal(t, "1", changes[0].UserID)
	_, wrote3 := editor.statuses["3"]
	assert.False(t, wrote3, "writes after the failure must not happen")
}
