// Package config loads and validates the sync configuration file.
//
// The file mirrors the shape documented in the README: an "ldap" section
// with server, connection and search parameters, an optional "convert"
// section mapping directory attribute names to StoredSafe field names, and
// a "match" section listing the criteria that decide whether a directory
// user and a StoredSafe user are the same identity.
//
// All schema violations are reported at load time; nothing downstream
// performs its own key lookups into raw maps.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default paged-search page size when the config does not set one.
const DefaultPagedSize = 500

// Config is the root of the configuration file.
type Config struct {
	LDAP    LDAP               `json:"ldap" yaml:"ldap"`
	Convert []ConvertCriterion `json:"convert,omitempty" yaml:"convert,omitempty"`
	Match   MatchCriteria      `json:"match" yaml:"match"`
}

// Converted reports whether the config selects converted-mode matching,
// i.e. directory users are reshaped into StoredSafe field names before
// the join.
func (c *Config) Converted() bool {
	return len(c.Convert) > 0
}

// LDAP groups everything needed to connect to and search the directory.
type LDAP struct {
	Server     ServerParameters     `json:"server_parameters" yaml:"server_parameters"`
	Connection ConnectionParameters `json:"connection_parameters" yaml:"connection_parameters"`
	Search     []Search             `json:"search" yaml:"search"`
}

// ServerParameters describe the directory endpoint.
type ServerParameters struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port,omitempty" yaml:"port,omitempty"`
	UseSSL         bool   `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
	ConnectTimeout int    `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"` // seconds
}

// ConnectionParameters carry the bind credentials.
type ConnectionParameters struct {
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
}

// Search pairs one or more paged-search option sets with the attribute
// fields to extract from every entry those searches return.
type Search struct {
	SearchOptions []SearchOptions `json:"search_options" yaml:"search_options"`
	Fields        []Field         `json:"fields" yaml:"fields"`
}

// SearchOptions are passed through to a single paged search.
type SearchOptions struct {
	SearchBase   string `json:"search_base" yaml:"search_base"`
	SearchFilter string `json:"search_filter" yaml:"search_filter"`
	SearchScope  string `json:"search_scope,omitempty" yaml:"search_scope,omitempty"` // "base" | "one" | "sub" (default)
	PagedSize    uint32 `json:"paged_size,omitempty" yaml:"paged_size,omitempty"`
}

// Field names a directory attribute to extract, with optional regex
// filtering. Match keeps only values matching the pattern anchored at the
// start of the value, retaining the first capture group when present.
// Replace pairs are applied in order, each substitution global.
type Field struct {
	Attribute string      `json:"attribute" yaml:"attribute"`
	Match     string      `json:"match,omitempty" yaml:"match,omitempty"`
	Replace   [][2]string `json:"replace,omitempty" yaml:"replace,omitempty"`

	matchRE   *regexp.Regexp
	replaceRE []ReplaceRule
}

// ReplaceRule is one compiled search/replace pair.
type ReplaceRule struct {
	Search *regexp.Regexp
	Repl   string
}

// MatchRegexp returns the compiled match pattern, or nil when the field
// has none. Only valid after Validate.
func (f *Field) MatchRegexp() *regexp.Regexp { return f.matchRE }

// ReplaceRules returns the compiled replace pairs in config order.
// Only valid after Validate.
func (f *Field) ReplaceRules() []ReplaceRule { return f.replaceRE }

// ConvertCriterion maps a directory attribute name to a StoredSafe field
// name for converted-mode matching.
type ConvertCriterion struct {
	LDAP       string `json:"ldap" yaml:"ldap"`
	StoredSafe string `json:"storedsafe" yaml:"storedsafe"`
}

// MatchPair is a direct-mode criterion: the named StoredSafe field must
// equal one of the values of the named directory attribute.
type MatchPair struct {
	LDAP       string `json:"ldap" yaml:"ldap"`
	StoredSafe string `json:"storedsafe" yaml:"storedsafe"`
}

// MatchCriteria holds the "match" section, which has two shapes. In
// direct mode it is a list of {ldap, storedsafe} pairs; in converted mode
// it is a list of bare StoredSafe field names valid in both the converted
// record and the StoredSafe record.
type MatchCriteria struct {
	Pairs []MatchPair // direct mode
	Keys  []string    // converted mode
}

// UnmarshalJSON accepts either a list of objects (direct mode) or a list
// of strings (converted mode).
func (m *MatchCriteria) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("match must be a list: %w", err)
	}
	for _, item := range raw {
		trimmed := strings.TrimSpace(string(item))
		switch {
		case strings.HasPrefix(trimmed, "{"):
			var pair MatchPair
			if err := json.Unmarshal(item, &pair); err != nil {
				return fmt.Errorf("match criterion: %w", err)
			}
			m.Pairs = append(m.Pairs, pair)
		case strings.HasPrefix(trimmed, `"`):
			var key string
			if err := json.Unmarshal(item, &key); err != nil {
				return fmt.Errorf("match criterion: %w", err)
			}
			m.Keys = append(m.Keys, key)
		default:
			return fmt.Errorf("match criterion must be an object or a string, got %s", trimmed)
		}
	}
	if len(m.Pairs) > 0 && len(m.Keys) > 0 {
		return errors.New("match criteria must not mix objects and strings")
	}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML configs.
func (m *MatchCriteria) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return errors.New("match must be a list")
	}
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.MappingNode:
			var pair MatchPair
			if err := item.Decode(&pair); err != nil {
				return fmt.Errorf("match criterion: %w", err)
			}
			m.Pairs = append(m.Pairs, pair)
		case yaml.ScalarNode:
			var key string
			if err := item.Decode(&key); err != nil {
				return fmt.Errorf("match criterion: %w", err)
			}
			m.Keys = append(m.Keys, key)
		default:
			return errors.New("match criterion must be a mapping or a string")
		}
	}
	if len(m.Pairs) > 0 && len(m.Keys) > 0 {
		return errors.New("match criteria must not mix mappings and strings")
	}
	return nil
}

// ParseError marks a config file that exists but could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError collects every schema violation found in one pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Issues, "; "))
}

// Load reads, decodes and validates the config file at path. JSON is the
// native format; files ending in .yaml or .yml are accepted as well.
//
// The returned error distinguishes a missing file (errors.Is with
// fs.ErrNotExist), a malformed file (*ParseError) and a structurally
// invalid one (*ValidationError) so the caller can map them to distinct
// exit codes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := new(Config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the schema in one pass and compiles all regex patterns,
// so use sites never see an unvalidated value.
func (c *Config) Validate() error {
	var issues []string
	fail := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if c.LDAP.Server.Host == "" {
		fail("ldap.server_parameters.host is required")
	}
	if c.LDAP.Server.ConnectTimeout < 0 {
		fail("ldap.server_parameters.connect_timeout must not be negative")
	}
	if len(c.LDAP.Search) == 0 {
		fail("ldap.search must contain at least one search")
	}
	for i := range c.LDAP.Search {
		search := &c.LDAP.Search[i]
		if len(search.SearchOptions) == 0 {
			fail("ldap.search[%d].search_options must not be empty", i)
		}
		for j, opts := range search.SearchOptions {
			if opts.SearchBase == "" {
				fail("ldap.search[%d].search_options[%d].search_base is required", i, j)
			}
			if opts.SearchFilter == "" {
				fail("ldap.search[%d].search_options[%d].search_filter is required", i, j)
			}
			switch opts.SearchScope {
			case "", "base", "one", "sub":
			default:
				fail("ldap.search[%d].search_options[%d].search_scope %q is not base, one or sub", i, j, opts.SearchScope)
			}
		}
		if len(search.Fields) == 0 {
			fail("ldap.search[%d].fields must not be empty", i)
		}
		for j := range search.Fields {
			field := &search.Fields[j]
			if field.Attribute == "" {
				fail("ldap.search[%d].fields[%d].attribute is required", i, j)
				continue
			}
			if err := field.compile(); err != nil {
				fail("ldap.search[%d].fields[%d]: %v", i, j, err)
			}
		}
	}

	for i, conv := range c.Convert {
		if conv.LDAP == "" || conv.StoredSafe == "" {
			fail("convert[%d] must set both ldap and storedsafe", i)
		}
	}

	switch {
	case len(c.Match.Pairs) == 0 && len(c.Match.Keys) == 0:
		fail("match must contain at least one criterion")
	case c.Converted() && len(c.Match.Pairs) > 0:
		fail("match must be a list of field names when convert is configured")
	case !c.Converted() && len(c.Match.Keys) > 0:
		fail("match must be a list of {ldap, storedsafe} pairs when convert is not configured")
	}
	for i, pair := range c.Match.Pairs {
		if pair.LDAP == "" || pair.StoredSafe == "" {
			fail("match[%d] must set both ldap and storedsafe", i)
		}
	}
	for i, key := range c.Match.Keys {
		if key == "" {
			fail("match[%d] must not be empty", i)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func (f *Field) compile() error {
	if f.Match != "" {
		// Anchor at the start of the value only; trailing unmatched
		// content is allowed. The non-capturing group keeps capture
		// group numbering intact.
		re, err := regexp.Compile("^(?:" + f.Match + ")")
		if err != nil {
			return fmt.Errorf("match pattern %q: %w", f.Match, err)
		}
		f.matchRE = re
	}
	f.replaceRE = f.replaceRE[:0]
	for _, pair := range f.Replace {
		re, err := regexp.Compile(pair[0])
		if err != nil {
			return fmt.Errorf("replace pattern %q: %w", pair[0], err)
		}
		f.replaceRE = append(f.replaceRE, ReplaceRule{Search: re, Repl: pair[1]})
	}
	return nil
}
