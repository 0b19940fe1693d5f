package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/edgeflix/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Utilidades de configuración",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Imprime la configuración efectiva (defaults + archivo + entorno)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			redacted := *cfg
			if redacted.Auth.JWTSecret != "" {
				redacted.Auth.JWTSecret = "********"
			}
			if redacted.Cache.Redis.Password != "" {
				redacted.Cache.Redis.Password = "********"
			}
			b, err := yaml.Marshal(&redacted)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(b))
			return nil
		},
	})
	var (
		target    string
		overwrite bool
	)
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Escribe un archivo de configuración con los defaults",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				}
			}
			if err := config.Default().Save(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&target, "path", "edgeflix.yaml", "Destino (.yaml o .toml)")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Reemplazar si existe")
	configCmd.AddCommand(initCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Valida la configuración",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	})
	return configCmd
}
