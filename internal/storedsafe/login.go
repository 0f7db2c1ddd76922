package storedsafe

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads interactive login input. The terminal implementation
// writes prompts to stderr so the login flow never pollutes stdout
// output; tests supply a scripted implementation.
type Prompter interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
}

// TerminalPrompter reads from stdin, echoing prompts to stderr and
// disabling echo for secrets.
type TerminalPrompter struct{}

func (TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// Session returns an authenticated client, reusing the cached rc-file
// token when it still checks out and falling back to an interactive
// login otherwise. A successful login writes the refreshed session back
// to the rc file for the next run.
func Session(rcPath string, prompter Prompter, logger *slog.Logger) (*Client, error) {
	rc, err := LoadRC(rcPath)
	switch {
	case err == nil && rc.Token != "" && rc.Host != "":
		client := New(rc.Host, rc.Token, logger)
		if checkErr := client.Check(); checkErr == nil {
			logger.Debug("reusing cached StoredSafe token", "host", rc.Host)
			return client, nil
		}
		logger.Info("no valid token found, logging in")
	case err == nil:
		logger.Info("no token found, logging in")
	case os.IsNotExist(err):
		rc = new(RC)
		logger.Info("no rc file found, logging in for the first time")
	default:
		return nil, err
	}

	return login(rcPath, rc, prompter, logger)
}

func login(rcPath string, rc *RC, prompter Prompter, logger *slog.Logger) (*Client, error) {
	var err error
	if rc.Host == "" {
		if rc.Host, err = prompter.ReadLine("StoredSafe server: "); err != nil {
			return nil, err
		}
	}
	if rc.Username == "" {
		if rc.Username, err = prompter.ReadLine("Username: "); err != nil {
			return nil, err
		}
	}
	if rc.APIKey == "" {
		if rc.APIKey, err = prompter.ReadLine("API key: "); err != nil {
			return nil, err
		}
	}
	passphrase, err := prompter.ReadSecret("Passphrase: ")
	if err != nil {
		return nil, err
	}
	otp, err := prompter.ReadLine("OTP: ")
	if err != nil {
		return nil, err
	}

	client := New(rc.Host, "", logger)
	if err := client.Login(rc.Username, passphrase, otp, rc.APIKey); err != nil {
		return nil, fmt.Errorf("storedsafe login: %w", err)
	}

	rc.Token = client.Token
	if err := rc.SaveRC(rcPath); err != nil {
		return nil, err
	}
	logger.Info("logged in to StoredSafe", "host", rc.Host, "user", rc.Username)
	return client, nil
}
