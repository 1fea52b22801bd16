package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = 1 * time.Hour
	maxImageBytes          = 20 << 20
)

// Resource is resolved binary content and its media type.
type Resource struct {
	Data      []byte
	MediaType string
}

// Resolver turns page image references into bytes. Data URIs decode in
// place. Remote URLs are fetched once and cached.
type Resolver struct {
	client *http.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Client *http.Client
	Cache  *cache.Cache
	Logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{client: cfg.Client, cache: cfg.Cache, logger: cfg.Logger}
	if r.client == nil {
		r.client = &http.Client{Timeout: 30 * time.Second}
	}
	if r.cache == nil {
		r.cache = cache.New(defaultCacheExpiration, cacheCleanupInterval)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve returns the content behind ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resource, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return DecodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetch(ctx, ref)
	case ref == "":
		return nil, fmt.Errorf("empty resource reference")
	default:
		return nil, fmt.Errorf("unsupported resource reference %q", truncate(ref, 32))
	}
}

func (r *Resolver) fetch(ctx context.Context, ref string) (*Resource, error) {
	if cached, ok := r.cache.Get(ref); ok {
		if res, ok := cached.(*Resource); ok {
			return res, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", hostOf(ref), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", hostOf(ref), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", hostOf(ref), err)
	}

	mediaType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}

	res := &Resource{Data: data, MediaType: strings.TrimSpace(mediaType)}
	r.cache.Set(ref, res, cache.DefaultExpiration)
	r.logger.Debug("fetched image", "host", hostOf(ref), "bytes", len(data), "type", res.MediaType)
	return res, nil
}

// DecodeDataURI decodes a base64 data URI.
func DecodeDataURI(ref string) (*Resource, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid data URI payload: %w", err)
		}
		return &Resource{Data: []byte(text), MediaType: mediaType}, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 in data URI: %w", err)
	}
	return &Resource{Data: data, MediaType: mediaType}, nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func hostOf(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		return u.Host
	}
	return truncate(ref, 32)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
