package main

import "github.com/spf13/cobra"

// applyIntConfig copies value into target unless the flag was set explicitly.
func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
