package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newDispatchCommand(ctx *commandContext) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "dispatch <service_kind>",
		Short: "Envía un request al dispatcher (POST /v1/dispatch/{kind})",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := strings.TrimSpace(data)
			if payload == "" {
				payload = "{}"
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--data no es JSON válido")
			}
			status, body, err := ctx.do(http.MethodPost, "/v1/dispatch/"+args[0], []byte(payload))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.out == "json" {
				ctx.printJSON(out, body)
			} else {
				var resp struct {
					RequestID string `json:"request_id"`
					Status    string `json:"status"`
					Code      string `json:"code"`
					Message   string `json:"message"`
					Cached    bool   `json:"cached"`
				}
				if err := json.Unmarshal(body, &resp); err != nil || resp.Status == "" {
					ctx.printJSON(out, body)
				} else {
					fmt.Fprintf(out, "%s %s %s (request_id=%s cached=%t)\n", resp.Status, resp.Code, resp.Message, resp.RequestID, resp.Cached)
				}
			}
			if status/100 != 2 {
				return fmt.Errorf("dispatch fallo: status=%d", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", `Payload JSON (ej. {"user_id":"u1"})`)
	return cmd
}
