// Package directory reads users out of an LDAP directory.
//
// It wraps the LDAP client behind the Searcher capability (a paged search
// returning raw attribute records) and normalizes raw entries into
// canonical users: requested attribute name to a de-duplicated value set,
// with optional per-field regex filtering. Search and attribute failures
// abort the whole run; a partial directory view must never feed the
// deactivation stage.
package directory
