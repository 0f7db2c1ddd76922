package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storedsafe/ldapsync/internal/config"
	"github.com/storedsafe/ldapsync/internal/directory"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestDeactivate_MissingConfigPath(t *testing.T) {
	// The config is loaded before either session is established, so a
	// bad path exits without any network activity.
	err := runCommand(t, "deactivate", "--config", filepath.Join(t.TempDir(), "nope.json"))

	require.Error(t, err)
	assert.Equal(t, ExitConfigPath, GetExitCode(err))
}

func TestDeactivate_MalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ldap": {`), 0o600))

	err := runCommand(t, "deactivate", "--config", path)

	require.Error(t, err)
	assert.Equal(t, ExitConfigParse, GetExitCode(err))
}

func TestDeactivate_InvalidConfigSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"match": []}`), 0o600))

	err := runCommand(t, "deactivate", "--config", path)

	require.Error(t, err)
	assert.Equal(t, ExitConfigUnexpected, GetExitCode(err))
}

func TestDeactivate_ConfigFlagRequired(t *testing.T) {
	err := runCommand(t, "deactivate")
	assert.Error(t, err)
}

func TestConfigExitError_Mapping(t *testing.T) {
	notFound := configExitError("c.json", fmt.Errorf("read config: %w", os.ErrNotExist))
	assert.Equal(t, ExitConfigPath, GetExitCode(notFound))

	parse := configExitError("c.json", &config.ParseError{Path: "c.json", Err: errors.New("bad json")})
	assert.Equal(t, ExitConfigParse, GetExitCode(parse))

	other := configExitError("c.json", &config.ValidationError{Issues: []string{"x"}})
	assert.Equal(t, ExitConfigUnexpected, GetExitCode(other))
}

func TestConnectExitError_Mapping(t *testing.T) {
	bind := connectExitError("h", fmt.Errorf("%w: invalid credentials", directory.ErrBind))
	assert.Equal(t, ExitConnectBind, GetExitCode(bind))

	unreachable := connectExitError("h", fmt.Errorf("%w: h: timeout", directory.ErrUnreachable))
	assert.Equal(t, ExitConnectTimeout, GetExitCode(unreachable))

	other := connectExitError("h", errors.New("tls handshake failure"))
	assert.Equal(t, ExitConnectUnexpected, GetExitCode(other))
}

func TestGetExitCode_DefaultsToOutputUnexpected(t *testing.T) {
	assert.Equal(t, ExitOutputUnexpected, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitOutputAttribute, GetExitCode(
		WrapExitError(ExitOutputAttribute, "invalid attribute", errors.New("cn"))))
}
