package main

import (
	"os"

	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "keepsake",
		Short:         "Keepsake serves moments, videos, poems and gallery images from one SQLite file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				printWarning(os.Stderr, warning)
			}

			if outputFormat == "" && jsonOutput {
				outputFormat = "json"
			}
			if outputFormat != "" {
				formatter, err := format.ForName(outputFormat)
				if err != nil {
					return err
				}
				outputFormatter = formatter
				jsonOutput = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "structured output format: json, json-pretty or yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newLegacyCmd(cfg, &jsonOutput),
		newObjectsCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
		newPingCmd(cfg),
		newCountsCmd(cfg, &jsonOutput),
		newVideosCmd(cfg, &jsonOutput),
	)

	return cmd
}
