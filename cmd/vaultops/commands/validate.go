package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/vaultops/internal/config"
	"github.com/systmms/vaultops/internal/graph"
	"github.com/systmms/vaultops/internal/manifest"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifests...]",
		Short: "Validate manifests without touching the server",
		Long: `Parse the given manifests, check every document against its schema,
and build the dependency graph. No connection to Vault is made, so duplicate
identities, unresolved references, and dependency cycles are caught before
anything is applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			paths, err := cfg.ManifestPaths(args)
			if err != nil {
				return err
			}
			resources, err := manifest.Load(paths)
			if err != nil {
				return err
			}
			g, err := graph.Build(resources)
			if err != nil {
				return err
			}

			cfg.Logger.Info("%d resources valid, %d ready to start immediately", g.Len(), len(g.Roots()))
			return nil
		},
	}
	return cmd
}
