// Package pdfmerge fetches PDF documents over HTTP and concatenates their
// pages into a single document.
package pdfmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoDocuments is returned when none of the sources contributed a page.
var ErrNoDocuments = errors.New("pdfmerge: no documents loaded")

// maxDocumentSize caps a single fetched document.
const maxDocumentSize = 64 << 20

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	api.DisableConfigDir()
}

// Skipped describes a source that contributed no pages.
type Skipped struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Result is the outcome of a merge.
type Result struct {
	PDF     []byte    `json:"-"`
	Pages   int       `json:"pages"`
	Merged  int       `json:"merged"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Merger fetches and merges PDFs. Sources are processed strictly in order,
// one at a time. A Merger is safe for concurrent use.
type Merger struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithHTTPClient sets the client used to fetch sources.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Merger) { m.client = c }
}

// WithLogger sets the logger that receives skipped-source warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

// New returns a Merger. Without options it uses a 30s-timeout client and
// slog.Default.
func New(opts ...Option) *Merger {
	m := &Merger{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// newConfig returns the pdfcpu configuration for one merge. pdfcpu writes
// into the configuration while it works, so it is never shared between calls.
func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.MERGECREATE
	conf.ValidationMode = model.ValidationRelaxed
	conf.CreateBookmarks = false
	return conf
}

// Merge fetches every non-empty URL in order and returns one document holding
// all pages of the sources that could be fetched, parsed and merged. Failed
// sources are reported in Result.Skipped and never abort the merge. When no
// page survives, Merge returns ErrNoDocuments.
func (m *Merger) Merge(ctx context.Context, urls []string) (*Result, error) {
	conf := newConfig()
	res := &Result{}

	var (
		dest     *model.Context
		accepted [][]byte
	)
	for i, u := range urls {
		if u == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := m.fetch(ctx, u)
		if err != nil {
			m.skip(res, i, u, err.Error())
			continue
		}
		src, err := readSource(data, conf)
		if err != nil {
			m.skip(res, i, u, err.Error())
			continue
		}

		if dest == nil {
			dest = src
			dest.EnsureVersionForWriting()
		} else if err := pdfcpu.MergeXRefTables(strconv.Itoa(i), src, dest, false, false); err != nil {
			m.skip(res, i, u, fmt.Sprintf("merge: %v", err))
			// A failed merge leaves dest half-written.
			if dest, err = rebuild(accepted, conf); err != nil {
				return nil, fmt.Errorf("pdfmerge: rebuild merged document: %w", err)
			}
			continue
		}
		accepted = append(accepted, data)
		res.Pages += src.PageCount
		res.Merged++
	}

	if dest == nil {
		return res, ErrNoDocuments
	}

	if err := api.OptimizeContext(dest); err != nil {
		return nil, fmt.Errorf("pdfmerge: optimize merged document: %w", err)
	}
	var out bytes.Buffer
	if err := api.WriteContext(dest, &out); err != nil {
		return nil, fmt.Errorf("pdfmerge: write merged document: %w", err)
	}
	res.PDF = out.Bytes()
	return res, nil
}

// readSource parses one fetched document. Encryption without a user password
// is dropped, so the merged document carries no restrictions.
func readSource(data []byte, conf *model.Configuration) (*model.Context, error) {
	src, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := src.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if src.PageCount == 0 {
		return nil, errors.New("document has no pages")
	}
	if src.XRefTable.Version() == model.V20 {
		return nil, fmt.Errorf("unsupported: %w", pdfcpu.ErrUnsupportedVersion)
	}
	src.Encrypt, src.E, src.EncKey = nil, nil, nil
	return src, nil
}

// rebuild merges already accepted documents again from their bytes.
func rebuild(docs [][]byte, conf *model.Configuration) (*model.Context, error) {
	var dest *model.Context
	for i, data := range docs {
		src, err := readSource(data, conf)
		if err != nil {
			return nil, err
		}
		if dest == nil {
			dest = src
			dest.EnsureVersionForWriting()
			continue
		}
		if err := pdfcpu.MergeXRefTables(strconv.Itoa(i), src, dest, false, false); err != nil {
			return nil, err
		}
	}
	return dest, nil
}

// fetch downloads u.
func (m *Merger) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (m *Merger) skip(res *Result, i int, u, reason string) {
	m.logger.Warn("pdf source skipped", "index", i, "url", u, "reason", reason)
	res.Skipped = append(res.Skipped, Skipped{Index: i, URL: u, Reason: reason})
}
