package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/edgeflix/internal/http/handlers"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

func newOnboardCommand(ctx *commandContext) *cobra.Command {
	var (
		file        string
		movieID     string
		rawURI      string
		formats     []string
		resolutions []string
	)

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Onboardea una película (POST /v1/movies) y muestra el reporte",
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc pipeline.MovieDescriptor
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &desc); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}
			if movieID != "" {
				desc.ID = movieID
			}
			if rawURI != "" {
				desc.RawAsset.URI = rawURI
			}
			for _, f := range formats {
				desc.Formats = append(desc.Formats, pipeline.Format(strings.TrimSpace(f)))
			}
			for _, r := range resolutions {
				desc.Resolutions = append(desc.Resolutions, pipeline.Resolution(strings.TrimSpace(r)))
			}

			body, _ := json.Marshal(desc)
			status, resp, err := ctx.do(http.MethodPost, "/v1/movies", body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if status/100 != 2 {
				ctx.printJSON(out, resp)
				return fmt.Errorf("onboard fallo: status=%d", status)
			}
			if ctx.out == "json" {
				ctx.printJSON(out, resp)
				return nil
			}
			var view handlers.ReportView
			if err := json.Unmarshal(resp, &view); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}
			fmt.Fprintln(out, renderReport(view))
			if len(view.Failed) > 0 {
				return fmt.Errorf("%d replica(s) failed", len(view.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Descriptor JSON de la película")
	cmd.Flags().StringVar(&movieID, "id", "", "ID de la película")
	cmd.Flags().StringVar(&rawURI, "raw", "", "URI del asset crudo")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Formatos (mp4,3gp)")
	cmd.Flags().StringSliceVar(&resolutions, "resolution", nil, "Resoluciones (4k,1080p,720p)")
	return cmd
}
