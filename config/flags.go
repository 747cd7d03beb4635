// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ConfigFlagName     = "config"
	BlockstoreFlagName = "blockstore"
)

// BindFlags registers the flags shared by every command.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(ConfigFlagName, "config.json", "Path to JSON configuration file")
	_ = viper.BindPFlag(ConfigFlagName, cmd.PersistentFlags().Lookup(ConfigFlagName))

	cmd.PersistentFlags().String(BlockstoreFlagName, "", "Path to the transfer status store, overrides the configured one when set")
	_ = viper.BindPFlag(BlockstoreFlagName, cmd.PersistentFlags().Lookup(BlockstoreFlagName))
}
