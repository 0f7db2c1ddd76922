package storedsafe

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RCFileName is the credential cache in the user's home directory, shared
// with the other StoredSafe client tools.
const RCFileName = ".storedsafe-client.rc"

// RC holds the cached session written by a previous login.
type RC struct {
	Token    string
	Username string
	APIKey   string
	Host     string // stored under the legacy "mysite" key
}

// DefaultRCPath returns the rc file location in the user's home directory.
func DefaultRCPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, RCFileName), nil
}

// LoadRC parses a key:value rc file. Unknown keys are ignored so the file
// stays shareable with other tools that write extra entries.
func LoadRC(path string) (*RC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rc := new(RC)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "token":
			rc.Token = value
		case "username":
			rc.Username = value
		case "apikey":
			rc.APIKey = value
		case "mysite":
			rc.Host = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rc, nil
}

// SaveRC writes the rc file with owner-only permissions, since it holds a
// live session token.
func (rc *RC) SaveRC(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "token:%s\n", rc.Token)
	fmt.Fprintf(&b, "username:%s\n", rc.Username)
	fmt.Fprintf(&b, "apikey:%s\n", rc.APIKey)
	fmt.Fprintf(&b, "mysite:%s\n", rc.Host)
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
