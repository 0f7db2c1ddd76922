package directory

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/storedsafe/ldapsync/internal/config"
)

// Sentinel errors used to select the connection exit code. Connect wraps
// the underlying client error into one of these; anything else from the
// client is an unexpected connection failure.
var (
	ErrBind        = errors.New("directory bind failed")
	ErrUnreachable = errors.New("directory host unreachable")
)

// Conn is an authenticated directory connection. It satisfies Searcher.
type Conn struct {
	conn *ldap.Conn
}

// Connect dials the directory per server parameters and binds with the
// connection credentials. Authentication failures wrap ErrBind and
// dial/timeout failures wrap ErrUnreachable so callers can distinguish
// credential problems from network problems.
func Connect(server config.ServerParameters, creds config.ConnectionParameters) (*Conn, error) {
	scheme, port := "ldap", 389
	if server.UseSSL {
		scheme, port = "ldaps", 636
	}
	if server.Port != 0 {
		port = server.Port
	}
	url := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(server.Host, fmt.Sprint(port)))

	dialer := &net.Dialer{}
	if server.ConnectTimeout > 0 {
		dialer.Timeout = time.Duration(server.ConnectTimeout) * time.Second
	}

	conn, err := ldap.DialURL(url, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, server.Host, err)
	}

	if err := conn.Bind(creds.User, creds.Password); err != nil {
		conn.Close()
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, fmt.Errorf("%w: %v", ErrBind, err)
		}
		return nil, fmt.Errorf("bind as %q: %w", creds.User, err)
	}

	return &Conn{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// PagedSearch executes one paged search and drains all pages into raw
// entries. Page retrieval is handled by the client library; this layer
// only translates options and the entry representation.
func (c *Conn) PagedSearch(opts config.SearchOptions, attributes []string) ([]Entry, error) {
	pagedSize := opts.PagedSize
	if pagedSize == 0 {
		pagedSize = config.DefaultPagedSize
	}

	req := ldap.NewSearchRequest(
		opts.SearchBase,
		searchScope(opts.SearchScope),
		ldap.NeverDerefAliases,
		0, 0, false,
		opts.SearchFilter,
		attributes,
		nil,
	)

	res, err := c.conn.SearchWithPaging(req, pagedSize)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, raw := range res.Entries {
		entry := make(Entry, len(raw.Attributes))
		for _, attr := range raw.Attributes {
			entry[attr.Name] = attr.Values
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func searchScope(scope string) int {
	switch scope {
	case "base":
		return ldap.ScopeBaseObject
	case "one":
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}
