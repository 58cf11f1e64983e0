package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"excelsior/config"
	"excelsior/crypto"
	"excelsior/rpc"
)

func newKeygenCmd() *cobra.Command {
	var out string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key and store it in an encrypted keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to replace it", out)
			}
			pass, err := passSource()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveToKeystore(out, key, pass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PubKey().Address().String())
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Keystore file to write")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing keystore")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		keystorePath string
		secretEnv    string
		issuer       string
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an RPC bearer token for the keystore's address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keystorePath == "" {
				return errors.New("--keystore is required")
			}
			secret := strings.TrimSpace(os.Getenv(secretEnv))
			if secret == "" {
				return fmt.Errorf("%s must hold the node's RPC secret", secretEnv)
			}
			key, err := crypto.LoadFromKeystore(keystorePath, "")
			if err != nil {
				pass, passErr := passSource()
				if passErr != nil {
					return errors.Join(err, passErr)
				}
				if key, err = crypto.LoadFromKeystore(keystorePath, pass); err != nil {
					return err
				}
			}
			token, err := rpc.IssueToken([]byte(secret), key.PubKey().Address(), issuer, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&keystorePath, "keystore", "", "Operator keystore file")
	cmd.Flags().StringVar(&secretEnv, "secret-env", config.DefaultJWTSecretEnv, "Environment variable holding the RPC secret")
	cmd.Flags().StringVar(&issuer, "issuer", "excelsior", "Token issuer claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
