// Package storedsafe is a thin client for the StoredSafe REST API: token
// check, login, user listing and user editing. Only the pieces this tool
// consumes are implemented.
package storedsafe

import (
	"fmt"
	"strconv"
)

// BitActive is the status bit that marks a StoredSafe user account as
// enabled.
const BitActive = 1 << 7

// User is a StoredSafe user account. Fields carries every scalar field
// the API returned, keyed by field name, so match criteria can reference
// any field without this package knowing the full schema up front.
type User struct {
	ID       string
	Username string
	Status   int
	Fields   map[string]string
}

// Active reports whether the account's active bit is set.
func (u *User) Active() bool {
	return u.Status&BitActive > 0
}

// Field returns the named scalar field. The second return is false when
// the API did not include the field for this user.
func (u *User) Field(name string) (string, bool) {
	value, ok := u.Fields[name]
	return value, ok
}

// FilterActive keeps only users whose active bit is set. The deactivation
// mutation is a pure XOR, so everything downstream of this filter must
// only ever see active users.
func FilterActive(users []User) []User {
	active := make([]User, 0, len(users))
	for _, user := range users {
		if user.Active() {
			active = append(active, user)
		}
	}
	return active
}

// userFromRaw converts one decoded API user object. id and status are
// required; status arrives as a string in some API versions and a number
// in others.
func userFromRaw(raw map[string]any) (User, error) {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := scalarString(value); ok {
			fields[key] = s
		}
	}

	id, ok := fields["id"]
	if !ok {
		return User{}, fmt.Errorf("user object missing id: %v", raw)
	}
	status, err := strconv.Atoi(fields["status"])
	if err != nil {
		return User{}, fmt.Errorf("user %s: bad status %q", id, fields["status"])
	}

	return User{
		ID:       id,
		Username: fields["username"],
		Status:   status,
		Fields:   fields,
	}, nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		// encoding/json decodes all numbers as float64; user ids and
		// status values are integral.
		return strconv.FormatInt(int64(v), 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
