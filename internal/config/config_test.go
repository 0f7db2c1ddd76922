package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const directModeJSON = `{
  "ldap": {
    "server_parameters": {"host": "ldap.example.com", "port": 636, "use_ssl": true, "connect_timeout": 10},
    "connection_parameters": {"user": "cn=sync,dc=example,dc=com", "password": "secret"},
    "search": [
      {
        "search_options": [
          {"search_base": "dc=example,dc=com", "search_filter": "(userAccountControl:1.2.840.113556.1.4.803:=2)"}
        ],
        "fields": [
          {"attribute": "mail", "match": "([^@]+)@example\\.com", "replace": [["\\.", "-"]]}
        ]
      }
    ]
  },
  "match": [{"ldap": "mail", "storedsafe": "email"}]
}`

func TestLoad_DirectMode(t *testing.T) {
	path := writeConfig(t, "sync.json", directModeJSON)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Converted())
	assert.Equal(t, "ldap.example.com", cfg.LDAP.Server.Host)
	require.Len(t, cfg.LDAP.Search, 1)

	field := &cfg.LDAP.Search[0].Fields[0]
	require.NotNil(t, field.MatchRegexp(), "match pattern is compiled at load time")
	require.Len(t, field.ReplaceRules(), 1)

	require.Len(t, cfg.Match.Pairs, 1)
	assert.Equal(t, "mail", cfg.Match.Pairs[0].LDAP)
	assert.Equal(t, "email", cfg.Match.Pairs[0].StoredSafe)
	assert.Empty(t, cfg.Match.Keys)
}

func TestLoad_ConvertedMode(t *testing.T) {
	path := writeConfig(t, "sync.json", `{
  "ldap": {
    "server_parameters": {"host": "ldap.example.com"},
    "connection_parameters": {"user": "u", "password": "p"},
    "search": [
      {
        "search_options": [{"search_base": "dc=x", "search_filter": "(cn=*)"}],
        "fields": [{"attribute": "mail"}, {"attribute": "sAMAccountName"}]
      }
    ]
  },
  "convert": [
    {"ldap": "mail", "storedsafe": "email"},
    {"ldap": "sAMAccountName", "storedsafe": "username"}
  ],
  "match": ["email", "username"]
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Converted())
	assert.Equal(t, []string{"email", "username"}, cfg.Match.Keys)
	assert.Empty(t, cfg.Match.Pairs)
}

func TestLoad_YAMLByExtension(t *testing.T) {
	path := writeConfig(t, "sync.yaml", `
ldap:
  server_parameters:
    host: ldap.example.com
  connection_parameters:
    user: u
    password: p
  search:
    - search_options:
        - search_base: dc=x
          search_filter: (cn=*)
      fields:
        - attribute: mail
match:
  - ldap: mail
    storedsafe: email
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Match.Pairs, 1)
	assert.Equal(t, "email", cfg.Match.Pairs[0].StoredSafe)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConfig(t, "sync.json", `{"ldap": `)

	_, err := Load(path)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Path)
}

func TestLoad_MixedMatchShapesRejected(t *testing.T) {
	path := writeConfig(t, "sync.json", `{
  "ldap": {
    "server_parameters": {"host": "h"},
    "connection_parameters": {"user": "u", "password": "p"},
    "search": [{"search_options": [{"search_base": "b", "search_filter": "f"}], "fields": [{"attribute": "mail"}]}]
  },
  "match": ["email", {"ldap": "mail", "storedsafe": "email"}]
}`)

	_, err := Load(path)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "host is required")
	assert.Contains(t, validationErr.Error(), "at least one search")
	assert.Contains(t, validationErr.Error(), "at least one criterion")
}

func TestValidate_MatchShapeMustFitMode(t *testing.T) {
	base := func() *Config {
		return &Config{
			LDAP: LDAP{
				Server: ServerParameters{Host: "h"},
				Search: []Search{{
					SearchOptions: []SearchOptions{{SearchBase: "b", SearchFilter: "f"}},
					Fields:        []Field{{Attribute: "mail"}},
				}},
			},
		}
	}

	pairsWithConvert := base()
	pairsWithConvert.Convert = []ConvertCriterion{{LDAP: "mail", StoredSafe: "email"}}
	pairsWithConvert.Match = MatchCriteria{Pairs: []MatchPair{{LDAP: "mail", StoredSafe: "email"}}}
	assert.Error(t, pairsWithConvert.Validate())

	keysWithoutConvert := base()
	keysWithoutConvert.Match = MatchCriteria{Keys: []string{"email"}}
	assert.Error(t, keysWithoutConvert.Validate())
}

func TestValidate_BadRegexReported(t *testing.T) {
	cfg := &Config{
		LDAP: LDAP{
			Server: ServerParameters{Host: "h"},
			Search: []Search{{
				SearchOptions: []SearchOptions{{SearchBase: "b", SearchFilter: "f"}},
				Fields:        []Field{{Attribute: "mail", Match: "("}},
			}},
		},
		Match: MatchCriteria{Pairs: []MatchPair{{LDAP: "mail", StoredSafe: "email"}}},
	}

	var validationErr *ValidationError
	require.ErrorAs(t, cfg.Validate(), &validationErr)
	assert.Contains(t, validationErr.Error(), "match pattern")
}

func TestValidate_BadSearchScopeRejected(t *testing.T) {
	cfg := &Config{
		LDAP: LDAP{
			Server: ServerParameters{Host: "h"},
			Search: []Search{{
				SearchOptions: []SearchOptions{{SearchBase: "b", SearchFilter: "f", SearchScope: "tree"}},
				Fields:        []Field{{Attribute: "mail"}},
			}},
		},
		Match: MatchCriteria{Pairs: []MatchPair{{LDAP: "mail", StoredSafe: "email"}}},
	}

	assert.Error(t, cfg.Validate())
}
