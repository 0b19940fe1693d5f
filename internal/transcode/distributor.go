package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

// ReplicaManifest es el cuerpo que recibe un edge node.
type ReplicaManifest struct {
	MovieID    string    `json:"movie_id"`
	Format     string    `json:"format"`
	Resolution string    `json:"resolution"`
	URI        string    `json:"uri"`
	Digest     string    `json:"digest,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// ReplicaPath es la ruta del edge para una réplica.
func ReplicaPath(movieID, format, resolution string) string {
	return "/v1/edge/replicas/" + url.PathEscape(movieID) + "/" + url.PathEscape(format) + "/" + url.PathEscape(resolution)
}

// HTTPDistributor hace PUT del manifest a cada edge. La réplica se considera distribuida
// sólo si todos los targets la aceptan.
type HTTPDistributor struct {
	http    *http.Client
	timeout time.Duration
	token   TokenFunc
	log     *zap.Logger
}

// TokenFunc devuelve el bearer token que se envía a los edges. "" no envía header.
type TokenFunc func() (string, error)

// StaticToken es un TokenFunc fijo.
func StaticToken(tok string) TokenFunc {
	return func() (string, error) { return tok, nil }
}

// NewHTTPDistributor crea el distributor. timeout acota cada PUT. Default 5s. token puede ser nil.
func NewHTTPDistributor(client *http.Client, timeout time.Duration, token TokenFunc, log *zap.Logger) *HTTPDistributor {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Named("distributor")
	}
	if token == nil {
		token = StaticToken("")
	}
	return &HTTPDistributor{http: client, timeout: timeout, token: token, log: log}
}

func (d *HTTPDistributor) Distribute(ctx context.Context, enc pipeline.Asset, targets []string) error {
	if len(targets) == 0 {
		return pipeline.ErrNoTargets
	}
	body, err := json.Marshal(ReplicaManifest{
		MovieID:    enc.MovieID,
		Format:     string(enc.Format),
		Resolution: string(enc.Resolution),
		URI:        enc.URI,
		Digest:     enc.Digest,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.put(ctx, t, enc, body); err != nil {
			d.log.Warn("edge rejected replica", logger.String("edge", t), logger.MovieID(enc.MovieID),
				logger.Replica(string(enc.Format), string(enc.Resolution)), logger.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

func (d *HTTPDistributor) put(ctx context.Context, edge string, enc pipeline.Asset, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	endpoint := strings.TrimRight(edge, "/") + ReplicaPath(enc.MovieID, string(enc.Format), string(enc.Resolution))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tok, err := d.token()
	if err != nil {
		return fmt.Errorf("bearer token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("edge status %d", resp.StatusCode)
	}
	return nil
}
