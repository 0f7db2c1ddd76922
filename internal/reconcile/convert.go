package reconcile

import (
	"github.com/storedsafe/ldapsync/internal/config"
	"github.com/storedsafe/ldapsync/internal/directory"
)

// Converted is a directory user reshaped into StoredSafe field names,
// one value per field. Fields whose source attribute was absent from the
// directory user are absent here too; partial records are expected and
// matching treats an absent key as a non-match.
type Converted map[string]string

// Convert reshapes directory users per the convert criteria. A
// multi-valued attribute contributes its lexicographically smallest value
// (directory value sets are sorted): the selection has to be some
// deterministic rule, and smallest-first makes repeated runs stable.
func Convert(users []directory.User, criteria []config.ConvertCriterion) []Converted {
	converted := make([]Converted, 0, len(users))
	for _, user := range users {
		record := make(Converted, len(criteria))
		for _, criterion := range criteria {
			values, ok := user[criterion.LDAP]
			if !ok || len(values) == 0 {
				continue
			}
			record[criterion.StoredSafe] = values[0]
		}
		converted = append(converted, record)
	}
	return converted
}
