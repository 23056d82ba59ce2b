package main

import (
	"fmt"

	"github.com/Veraticus/spice-dash/internal/metrics"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			metrics.BuildInfo.WithLabelValues(version).Set(1)
			fmt.Printf("spicedash version %s\n", version)
		},
	}
}
