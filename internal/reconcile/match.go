package reconcile

import (
	"github.com/storedsafe/ldapsync/internal/config"
	"github.com/storedsafe/ldapsync/internal/directory"
	"github.com/storedsafe/ldapsync/internal/storedsafe"
)

// MatchDirect joins canonical directory users against StoredSafe users.
// A criterion {ldap, storedsafe} is satisfied when the StoredSafe field
// equals any element of the directory attribute's value set; a user pair
// matches only when every criterion is satisfied.
//
// The result is a multiset: a StoredSafe user matched by several
// directory users appears once per match. A StoredSafe user lacking a
// referenced field never matches.
func MatchDirect(dirUsers []directory.User, targets []storedsafe.User, criteria []config.MatchPair) []storedsafe.User {
	var matched []storedsafe.User
	for _, dirUser := range dirUsers {
		for _, target := range targets {
			if matchesDirect(dirUser, &target, criteria) {
				matched = append(matched, target)
			}
		}
	}
	return matched
}

func matchesDirect(dirUser directory.User, target *storedsafe.User, criteria []config.MatchPair) bool {
	for _, criterion := range criteria {
		targetValue, ok := target.Field(criterion.StoredSafe)
		if !ok {
			return false
		}
		if !contains(dirUser[criterion.LDAP], targetValue) {
			return false
		}
	}
	return true
}

// MatchConverted joins converted directory users against StoredSafe users
// by scalar equality on each criterion key. A key absent from either side
// makes that criterion a non-match; it is never an error, since converted
// records are legitimately partial.
func MatchConverted(converted []Converted, targets []storedsafe.User, keys []string) []storedsafe.User {
	var matched []storedsafe.User
	for _, record := range converted {
		for _, target := range targets {
			if matchesConverted(record, &target, keys) {
				matched = append(matched, target)
			}
		}
	}
	return matched
}

func matchesConverted(record Converted, target *storedsafe.User, keys []string) bool {
	for _, key := range keys {
		value, ok := record[key]
		if !ok {
			return false
		}
		targetValue, ok := target.Field(key)
		if !ok || value != targetValue {
			return false
		}
	}
	return true
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
