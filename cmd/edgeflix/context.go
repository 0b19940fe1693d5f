package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/edgeflix/internal/config"
	jwtx "github.com/dropDatabas3/edgeflix/internal/jwt"
	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
)

type commandContext struct {
	configPath string
	baseURL    string
	token      string
	out        string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	httpClient *http.Client
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
		})
		c.config = cfg
	})
	return c.config, c.configErr
}

// bearer usa --token o mintea uno con el secreto configurado.
func (c *commandContext) bearer() (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	iss := jwtx.NewIssuer(cfg.Auth.Issuer, cfg.Auth.JWTSecret)
	if !iss.Enabled() {
		return "", nil
	}
	tok, _, err := iss.IssueAccess("cli", 5*time.Minute, nil)
	return tok, err
}

func (c *commandContext) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.baseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok, err := c.bearer()
	if err != nil {
		return 0, nil, err
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	client := c.httpClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *commandContext) printJSON(w io.Writer, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(w, string(p))
		return
	}
	fmt.Fprintln(w, string(body))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
