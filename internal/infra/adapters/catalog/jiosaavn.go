package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/adapter"
)

var _ adapter.NamedResolver = (*JioSaavnResolver)(nil)

// downloadQualityIndex is the download entry played when the catalog offers
// several encodings (index 1 is the low-bitrate stream, good enough for voice).
const downloadQualityIndex = 1

// JioSaavnResolver searches the public JioSaavn API.
type JioSaavnResolver struct {
	baseURL string
	client  *http.Client
}

func NewJioSaavnResolver(baseURL string, timeout time.Duration) *JioSaavnResolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &JioSaavnResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *JioSaavnResolver) Name() string { return "jiosaavn" }

type saavnSearchResponse struct {
	Success *bool `json:"success"`
	Data    struct {
		Results []saavnSong `json:"results"`
	} `json:"data"`
}

type saavnSong struct {
	Name        string          `json:"name"`
	Song        string          `json:"song"`
	Duration    json.RawMessage `json:"duration"`
	DownloadURL []saavnDownload `json:"downloadUrl"`
}

// saavnDownload accepts both {"quality":..,"url":..} objects and bare URL strings.
type saavnDownload struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

func (d *saavnDownload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d.URL = s
		return nil
	}
	type plain saavnDownload
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = saavnDownload(p)
	return nil
}

// Resolve returns the top search hit for query.
func (r *JioSaavnResolver) Resolve(ctx context.Context, query string) (*model.Track, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", "1")
	endpoint := r.baseURL + "/api/search/songs?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jiosaavn search: unexpected status %d", resp.StatusCode)
	}

	var out saavnSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Success != nil && !*out.Success {
		return nil, fmt.Errorf("jiosaavn search: api reported failure")
	}
	if len(out.Data.Results) == 0 {
		return nil, domain.ErrNotFound
	}

	song := out.Data.Results[0]
	stream := pickDownload(song.DownloadURL)
	if stream == "" {
		return nil, fmt.Errorf("jiosaavn search: top hit has no download url")
	}
	title := song.Name
	if title == "" {
		title = song.Song
	}

	return model.NewTrack(stream, html.UnescapeString(title), parseDuration(song.Duration), r.Name())
}

func pickDownload(ds []saavnDownload) string {
	switch {
	case len(ds) == 0:
		return ""
	case len(ds) > downloadQualityIndex:
		return ds[downloadQualityIndex].URL
	default:
		return ds[len(ds)-1].URL
	}
}

// parseDuration reads seconds from a JSON number or numeric string; anything else is 0.
func parseDuration(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}
