package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
)

var (
	credClientID     string
	credClientSecret string
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage listing API OAuth credentials",
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Save OAuth client credentials",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsSetCmd,
	}
	set.Flags().StringVar(&credClientID, "id", "", "OAuth client id")
	set.Flags().StringVar(&credClientSecret, "secret", "", "OAuth client secret (prompted when omitted)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the credentials in effect, with the secret masked",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsShowCmd,
	}
	cmd.AddCommand(set, show)
	return cmd
}

func runCredentialsSetCmd(cmd *cobra.Command, _ []string) error {
	secret := credClientSecret
	if secret == "" {
		var err error
		secret, err = promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}
	creds := model.Credentials{
		ClientID:     strings.TrimSpace(credClientID),
		ClientSecret: strings.TrimSpace(secret),
	}
	path := config.DefaultCredentialsPath()
	if err := config.SaveCredentials(path, creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials to %s\n", path)
	return err
}

// promptSecret reads a secret without echo on a terminal, or a line otherwise.
func promptSecret(in io.Reader, out io.Writer) (string, error) {
	if _, err := fmt.Fprint(out, "Client secret: "); err != nil {
		return "", err
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if _, perr := fmt.Fprintln(out); perr != nil {
			// Best-effort newline after the hidden input.
			_ = perr
		}
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runCredentialsShowCmd(cmd *cobra.Command, _ []string) error {
	path := config.DefaultCredentialsPath()
	creds := config.LoadCredentials(path, logger.NewNop())
	out := cmd.OutOrStdout()
	if err := config.RequireCredentials(creds); err != nil {
		_, werr := fmt.Fprintf(out, "No usable credentials (%s or %s_CLIENT_ID/%s_CLIENT_SECRET).\n",
			path, config.EnvPrefix, config.EnvPrefix)
		return werr
	}
	_, err := fmt.Fprintf(out, "Client id: %s\nClient secret: %s\n", creds.ClientID, maskSecret(creds.ClientSecret))
	return err
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
