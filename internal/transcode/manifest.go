// Package transcode provee las implementaciones de Transcoder, Distributor y Placer
// que usa el pipeline de onboarding.
package transcode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

// ErrUnsupported indica un formato o resolución no soportado.
var ErrUnsupported = errors.New("transcode: unsupported rendition")

var _ pipeline.RenditionChecker = (*Manifest)(nil)

// Manifest es un Transcoder que no codifica video: valida la rendición pedida y
// produce un handle determinístico hacia donde el encoder dejará el archivo.
type Manifest struct {
	formats     map[pipeline.Format]bool
	resolutions map[pipeline.Resolution]bool
	baseURI     string
}

// NewManifest crea el transcoder. Con listas vacías acepta mp4/3gp y 4k/1080p/720p.
func NewManifest(baseURI string, formats []pipeline.Format, resolutions []pipeline.Resolution) *Manifest {
	if len(formats) == 0 {
		formats = []pipeline.Format{pipeline.FormatMP4, pipeline.Format3GP}
	}
	if len(resolutions) == 0 {
		resolutions = []pipeline.Resolution{pipeline.Res4K, pipeline.Res1080p, pipeline.Res720p}
	}
	m := &Manifest{
		formats:     make(map[pipeline.Format]bool, len(formats)),
		resolutions: make(map[pipeline.Resolution]bool, len(resolutions)),
		baseURI:     strings.TrimRight(baseURI, "/"),
	}
	for _, f := range formats {
		m.formats[f] = true
	}
	for _, r := range resolutions {
		m.resolutions[r] = true
	}
	return m
}

// Supports retorna ErrUnsupported si la rendición no está habilitada.
func (m *Manifest) Supports(format pipeline.Format, res pipeline.Resolution) error {
	if !m.formats[format] {
		return fmt.Errorf("%w: format %q", ErrUnsupported, format)
	}
	if !m.resolutions[res] {
		return fmt.Errorf("%w: resolution %q", ErrUnsupported, res)
	}
	return nil
}

func (m *Manifest) Transcode(ctx context.Context, raw pipeline.Asset, format pipeline.Format, res pipeline.Resolution) (pipeline.Asset, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Asset{}, err
	}
	if err := m.Supports(format, res); err != nil {
		return pipeline.Asset{}, err
	}
	if raw.URI == "" {
		return pipeline.Asset{}, errors.New("transcode: empty source uri")
	}

	sum := sha256.Sum256([]byte(raw.URI + "|" + string(format) + "|" + string(res)))
	digest := hex.EncodeToString(sum[:8])
	base := m.baseURI
	if base == "" {
		base = "edgeflix://renditions"
	}
	return pipeline.Asset{
		MovieID:    raw.MovieID,
		URI:        fmt.Sprintf("%s/%s/%s.%s", base, raw.MovieID, res, format),
		Format:     format,
		Resolution: res,
		Digest:     digest,
	}, nil
}
