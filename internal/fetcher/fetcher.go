package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/internal/model"
)

// ErrNoRelease means the endpoint answered but had no usable release.
// Callers do not distinguish it from transport errors.
var ErrNoRelease = errors.New("no release data")

const requestTimeout = 10 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, codename string) (*model.ReleaseRecord, error)
}

type otaFetcher struct {
	baseURL string
	client  *http.Client
}

// New returns a Fetcher reading {baseURL}/{codename}/updates.json.
// A nil client gets an otelhttp-instrumented one with a 10s timeout.
func New(baseURL string, client *http.Client) Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &otaFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type updatesDocument struct {
	Response []updateEntry `json:"response"`
}

// Text fields are raw so a number where a string was expected still renders.
type updateEntry struct {
	Device     json.RawMessage `json:"device"`
	Version    json.RawMessage `json:"version"`
	Codename   json.RawMessage `json:"codename"`
	Download   json.RawMessage `json:"download"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Size       json.RawMessage `json:"size"`
	BuildType  json.RawMessage `json:"buildtype"`
	Maintainer json.RawMessage `json:"maintainer"`
	Telegram   json.RawMessage `json:"telegram"`
	Forum      json.RawMessage `json:"forum"`
}

func (f *otaFetcher) Fetch(ctx context.Context, codename string) (*model.ReleaseRecord, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Device:    logger.Ptr(codename),
		Component: "publisher.fetcher",
	})

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/updates.json", f.baseURL, codename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "ota fetch failed", "url", url, "error", err)
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "ota endpoint returned non-200", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrNoRelease, resp.StatusCode)
	}

	var doc updatesDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		slog.WarnContext(ctx, "ota endpoint returned invalid json", "url", url, "error", err)
		return nil, fmt.Errorf("%w: decoding body: %v", ErrNoRelease, err)
	}
	if len(doc.Response) == 0 {
		return nil, fmt.Errorf("%w: empty response array", ErrNoRelease)
	}

	rec := toRecord(codename, doc.Response[0])
	slog.DebugContext(ctx, "ota release fetched", "version", rec.Version, "build_type", rec.BuildType)
	return rec, nil
}

func toRecord(codename string, e updateEntry) *model.ReleaseRecord {
	return &model.ReleaseRecord{
		Codename:        codename,
		DeviceName:      looseString(e.Device),
		Distribution:    model.Distribution,
		Version:         looseString(e.Version),
		ReleaseCodename: looseString(e.Codename),
		DownloadURL:     looseString(e.Download),
		BuildTimestamp:  parseTimestamp(e.Timestamp),
		SizeBytes:       parseSize(e.Size),
		BuildType:       looseString(e.BuildType),
		MaintainerName:  looseString(e.Maintainer),
		MaintainerLink:  looseString(e.Telegram),
		SupportGroup:    looseString(e.Forum),
	}
}

// looseString returns a JSON string as-is and the literal text of a number or
// bool. Null, objects and arrays count as absent.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', '{', '[':
		return ""
	default:
		return string(raw)
	}
}

// parseTimestamp accepts a JSON number or a numeric string.
func parseTimestamp(raw json.RawMessage) *int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}

	if i, err := n.Int64(); err == nil {
		return &i
	}
	if f, err := n.Float64(); err == nil {
		i := int64(f)
		return &i
	}
	return nil
}

// parseSize keeps the size only when upstream sent a JSON number.
func parseSize(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// ParseCodename lowercases a user-supplied codename and rejects anything
// that could escape the {codename}/updates.json path segment.
func ParseCodename(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 64 {
		return "", false
	}
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return "", false
		}
	}
	return s, true
}
