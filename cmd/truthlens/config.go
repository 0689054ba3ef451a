// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/channi23/OrangeLens/pkg/types"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after merging defaults, the config file,
TRUTHLENS_* environment variables, flags and the secrets directory.
Credentials are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if c.Verify.APIKey != "" {
			c.Verify.APIKey = redacted
		}
		c.Cache.DSN = redactDSN(c.Cache.StorageConfig)
		c.Queue.DSN = redactDSN(c.Queue.StorageConfig)

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	},
}

// redactDSN hides network DSNs, which may embed passwords. SQLite paths
// are shown as is.
func redactDSN(sc types.StorageConfig) string {
	if sc.DSN == "" || sc.Backend == types.BackendSQLite || sc.Backend == "" {
		return sc.DSN
	}
	return redacted
}

func init() {
	rootCmd.AddCommand(configCmd)
}
