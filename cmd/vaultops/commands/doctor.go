package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultops/internal/config"
	"github.com/systmms/vaultops/internal/vault"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check Vault connectivity and authentication",
		Long: `Verify that vaultops can reach and authenticate against the
configured Vault server.

This command checks:
- Configuration file validity
- Vault server health (sys/health)
- Authentication (token lookup-self)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking vaultops configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Definition.Vault.Validate(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded successfully")

			ctx := cmd.Context()
			client, err := vault.NewAPIClient(ctx, cfg.Definition.Vault, cfg.Logger)
			if err != nil {
				cfg.Logger.Error("Authentication failed: %v", err)
				return err
			}

			health, err := client.Sys().HealthWithContext(ctx)
			if err != nil {
				cfg.Logger.Error("Cannot reach Vault at %s: %v", cfg.Definition.Vault.Address, err)
				return err
			}
			if health.Sealed {
				cfg.Logger.Error("Vault at %s is sealed", cfg.Definition.Vault.Address)
				return fmt.Errorf("vault server is sealed")
			}
			cfg.Logger.Info("Vault %s is reachable (version %s)", cfg.Definition.Vault.Address, health.Version)

			self, err := client.Auth().Token().LookupSelfWithContext(ctx)
			if err != nil {
				cfg.Logger.Error("Token check failed: %v", err)
				return err
			}
			if policies, ok := self.Data["policies"]; ok {
				cfg.Logger.Info("Authenticated, token policies: %v", policies)
			} else {
				cfg.Logger.Info("Authenticated")
			}
			return nil
		},
	}
	return cmd
}
