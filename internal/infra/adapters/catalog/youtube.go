package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/domain/model"
	"telegram-music-bot/internal/domain/ports/adapter"
)

var _ adapter.NamedResolver = (*YouTubeResolver)(nil)

type videoHit struct {
	ID    string
	Title string
}

type streamInfo struct {
	URL      string
	Title    string
	Duration int
}

type searchFunc func(ctx context.Context, query string) (*videoHit, error)
type extractFunc func(ctx context.Context, videoURL string) (*streamInfo, error)

// YouTubeResolver finds a video via YouTube Music (then plain YouTube) search
// and asks yt-dlp for a direct audio URL.
type YouTubeResolver struct {
	searchers []searchFunc
	extract   extractFunc
}

func NewYouTubeResolver() *YouTubeResolver {
	return &YouTubeResolver{
		searchers: []searchFunc{searchYTMusic, searchYouTube},
		extract:   extractAudio,
	}
}

func (r *YouTubeResolver) Name() string { return "youtube" }

func (r *YouTubeResolver) Resolve(ctx context.Context, query string) (*model.Track, error) {
	var (
		hit     *videoHit
		lastErr error
	)
	for _, search := range r.searchers {
		h, err := search(ctx, query)
		if err == nil && h != nil {
			hit = h
			break
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			lastErr = err
		}
	}
	if hit == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("youtube search: %w", lastErr)
		}
		return nil, domain.ErrNotFound
	}

	info, err := r.extract(ctx, "https://www.youtube.com/watch?v="+hit.ID)
	if err != nil {
		return nil, fmt.Errorf("youtube extract %s: %w", hit.ID, err)
	}
	title := info.Title
	if title == "" {
		title = hit.Title
	}
	return model.NewTrack(info.URL, title, info.Duration, r.Name())
}

func searchYTMusic(_ context.Context, query string) (*videoHit, error) {
	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tracks {
		if t.VideoID == "" {
			continue
		}
		title := t.Title
		if len(t.Artists) > 0 {
			title = t.Artists[0].Name + " - " + title
		}
		return &videoHit{ID: t.VideoID, Title: title}, nil
	}
	return nil, domain.ErrNotFound
}

func searchYouTube(ctx context.Context, query string) (*videoHit, error) {
	res, err := ytsearch.NewClient(nil).Search(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, v := range res.Results {
		if v.VideoID != "" {
			return &videoHit{ID: v.VideoID, Title: v.Title}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func extractAudio(ctx context.Context, videoURL string) (*streamInfo, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		Print("%(url)s\t%(title)s\t%(duration)s").
		Run(ctx, "--no-playlist", "--skip-download", "-f", "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best", videoURL)
	if err != nil {
		if res != nil && res.Stderr != "" {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return nil, err
	}
	return parsePrintLine(res.Stdout)
}

// parsePrintLine reads the url<TAB>title<TAB>duration line printed by yt-dlp.
func parsePrintLine(out string) (*streamInfo, error) {
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 3 || !strings.HasPrefix(ps[0], "http") {
			continue
		}
		info := &streamInfo{URL: ps[0], Title: ps[1]}
		if ps[1] == "NA" {
			info.Title = ""
		}
		if d, err := strconv.ParseFloat(strings.TrimSpace(ps[2]), 64); err == nil {
			info.Duration = int(d)
		}
		return info, nil
	}
	return nil, errors.New("yt-dlp printed no stream url")
}
