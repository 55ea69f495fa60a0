package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "显示当前的标签集合和颜色",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		labels, err := cfg.LabelSet()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "变体: %s\n", labels.Variant)
		for i, l := range labels.Labels {
			fmt.Fprintf(out, "  %d  %-8s  %s  %s\n", i, l, labels.Name(l), labels.Color(l))
		}
		return nil
	},
}
