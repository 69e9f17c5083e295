package scope

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// maxSourceSize caps how much of an allowlist source is read.
const maxSourceSize = 1 << 20

// document is the on-disk and remote shape of an allowlist source.
type document struct {
	Scope struct {
		Allowlist []string `json:"allowlist" yaml:"allowlist" toml:"allowlist"`
	} `json:"scope" yaml:"scope" toml:"scope"`
}

// Loader builds a Scope from inline patterns plus an optional file or URL.
type Loader struct {
	logger *zap.Logger
	client *retryablehttp.Client
}

// NewLoader creates a loader. Remote sources are retried a bounded number
// of times before giving up.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	return &Loader{logger: logger, client: client}
}

// Load combines inline patterns with those found at source. An empty source
// is allowed and yields only the inline patterns.
func (l *Loader) Load(ctx context.Context, inline []string, source string) (*Scope, error) {
	base, err := New(inline)
	if err != nil {
		return nil, err
	}

	source = strings.TrimSpace(source)
	if source == "" {
		l.logScope(base, "")
		return base, nil
	}

	var patterns []string
	if isRemote(source) {
		patterns, err = l.loadRemote(ctx, source)
	} else {
		patterns, err = loadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scope source %s: %w", source, err)
	}

	extra, err := New(patterns)
	if err != nil {
		return nil, fmt.Errorf("scope source %s: %w", source, err)
	}

	merged := base.Merge(extra)
	l.logScope(merged, source)
	return merged, nil
}

func (l *Loader) logScope(s *Scope, source string) {
	if s.Len() == 0 {
		l.logger.Warn("URL scope allowlist is empty, every fetch will be rejected")
		return
	}
	l.logger.Info("URL scope loaded",
		zap.Int("patterns", s.Len()),
		zap.String("source", source),
	)
}

func (l *Loader) loadRemote(ctx context.Context, source string) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, err
	}
	return decode(path.Ext(u.Path), data)
}

func loadFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSourceSize))
	if err != nil {
		return nil, err
	}
	return decode(filepath.Ext(name), data)
}

// decode parses an allowlist document, choosing the format by extension.
// Unknown extensions are treated as JSON.
func decode(ext string, data []byte) ([]string, error) {
	var doc document
	var err error

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = sonic.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	return doc.Scope.Allowlist, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
