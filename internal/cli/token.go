package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"orionos/internal/servicetoken"
)

func (c *Config) sign(scopes ...string) (string, error) {
	return c.signFor(servicetoken.DesktopAudience, 0, scopes...)
}

func (c *Config) signFor(audience string, ttl time.Duration, scopes ...string) (string, error) {
	if strings.TrimSpace(c.PrivateKeyPath) == "" {
		return "", fmt.Errorf("private key required\nHint: pass --private-key or set ORIONCTL_PRIVATE_KEY")
	}
	signer, err := servicetoken.NewSigner(servicetoken.SignerOptions{
		PrivateKeyPath: c.PrivateKeyPath,
		KeyID:          c.KeyID,
		Issuer:         c.Issuer,
		TTL:            ttl,
	})
	if err != nil {
		return "", err
	}
	return signer.Sign(audience, scopes...)
}

func tokenCmd(cfg *Config) *cobra.Command {
	var (
		audience string
		scopes   []string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an internal service token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := cfg.signFor(audience, ttl, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&audience, "audience", servicetoken.DesktopAudience, "token audience")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{servicetoken.ScopeAppsWrite}, "scopes to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", servicetoken.DefaultTokenTTL, "token lifetime")
	return cmd
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage internal token signing keys",
	}
	var (
		dir  string
		name string
		bits int
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Write a new RSA key pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			privatePath := filepath.Join(dir, name+".key.pem")
			publicPath := filepath.Join(dir, name+".pub.pem")
			if err := servicetoken.WriteKeyPair(privatePath, publicPath, bits); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s private key: %s\n", okMark("✓"), privatePath)
			fmt.Fprintf(out, "%s public key:  %s\n", okMark("✓"), publicPath)
			fmt.Fprintf(out, "  desktop config: internalJwtVerifyPublicKeys: %s=%s\n", name, publicPath)
			return nil
		},
	}
	generate.Flags().StringVar(&dir, "dir", ".", "output directory")
	generate.Flags().StringVar(&name, "name", servicetoken.DefaultKeyID, "key id, also used as the file name")
	generate.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	cmd.AddCommand(generate)
	return cmd
}
