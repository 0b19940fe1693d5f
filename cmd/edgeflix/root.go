package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "edgeflix",
		Short:         "Dispatch engine y pipeline de distribución de contenido",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", envOr("EDGEFLIX_CONFIG", ""), "Archivo de configuración (YAML o TOML)")
	rootCmd.PersistentFlags().StringVar(&ctx.baseURL, "url", envOr("EDGEFLIX_URL", "http://localhost:8080"), "URL base del engine (env EDGEFLIX_URL)")
	rootCmd.PersistentFlags().StringVar(&ctx.token, "token", envOr("EDGEFLIX_TOKEN", ""), "Bearer token; si falta y hay auth.jwt_secret se mintea uno")
	rootCmd.PersistentFlags().StringVar(&ctx.out, "out", envOr("EDGEFLIX_OUT", "text"), "Formato de salida: json|text")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDispatchCommand(ctx))
	rootCmd.AddCommand(newOnboardCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
