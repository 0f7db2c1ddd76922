package directory

import (
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/storedsafe/ldapsync/internal/config"
)

// Entry is one raw record returned by a directory search: attribute name
// to the ordered values the server sent.
type Entry map[string][]string

// Searcher is the paged-search capability the normalizer consumes. The
// production implementation is *Conn; tests supply in-memory fakes.
type Searcher interface {
	PagedSearch(opts config.SearchOptions, attributes []string) ([]Entry, error)
}

// User is a canonical directory user: requested attribute name to a
// de-duplicated set of post-filter values. The slice is sorted so that
// downstream "first value" selection is deterministic; consumers must not
// read meaning into the order.
type User map[string][]string

// MissingAttributeError reports a requested attribute absent from a
// returned entry. This is a configuration mismatch, not a per-record
// condition: silently dropping users because of a misspelled attribute
// name could deactivate the wrong accounts, so the whole run aborts.
type MissingAttributeError struct {
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("attribute %q missing from directory entry", e.Attribute)
}

// FetchUsers runs every configured search through the searcher and
// normalizes the results into canonical users. Results from all searches
// are concatenated; nothing downstream distinguishes which search
// produced a user.
func FetchUsers(searcher Searcher, searches []config.Search, logger *slog.Logger) ([]User, error) {
	var users []User
	for _, search := range searches {
		attributes := make([]string, 0, len(search.Fields))
		for _, field := range search.Fields {
			attributes = append(attributes, field.Attribute)
		}

		for _, opts := range search.SearchOptions {
			entries, err := searcher.PagedSearch(opts, attributes)
			if err != nil {
				return nil, fmt.Errorf("paged search %q: %w", opts.SearchFilter, err)
			}
			for _, entry := range entries {
				user, err := normalizeEntry(entry, search.Fields)
				if err != nil {
					return nil, err
				}
				users = append(users, user)
			}
		}
	}
	logger.Info("fetched directory users", "count", len(users))
	return users, nil
}

// normalizeEntry extracts the configured fields from one raw entry,
// applying the per-field value filter and collapsing each attribute to a
// sorted de-duplicated set. Values are NFC-normalized first so that
// canonically equal strings compare equal downstream.
func normalizeEntry(entry Entry, fields []config.Field) (User, error) {
	user := make(User, len(fields))
	for i := range fields {
		field := &fields[i]
		values, ok := entry[field.Attribute]
		if !ok {
			return nil, &MissingAttributeError{Attribute: field.Attribute}
		}
		user[field.Attribute] = dedupe(FilterValues(values, field))
	}
	return user, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = norm.NFC.String(value)
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
