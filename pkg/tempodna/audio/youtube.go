package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/utils"
	"github.com/lrstanley/go-ytdlp"
)

// YTMetadata is the subset of yt-dlp's info JSON used for naming tracks.
type YTMetadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Track      string  `json:"track"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
}

// DisplayTitle prefers "Artist - Track" tags and falls back to the video
// title.
func (m *YTMetadata) DisplayTitle() string {
	artist := firstNonEmpty(m.Artist, m.Channel, m.Uploader)
	title := firstNonEmpty(m.Track, m.Title)
	if artist == "" {
		return title
	}
	return artist + " - " + title
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// DownloadYouTubeAudio fetches the best audio stream of youtubeURL into
// outputDir, named after the video ID, and returns its path with the video
// metadata. The yt-dlp binary is installed on first use when missing.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL, outputDir string) (string, *YTMetadata, error) {
	if !utils.IsYouTubeURL(youtubeURL) {
		return "", nil, fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 3*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return "", nil, fmt.Errorf("installing yt-dlp: %w", err)
	}

	metaRes, err := ytdlp.New().
		DumpSingleJSON().
		SkipDownload().
		NoPlaylist().
		NoWarnings().
		Run(ctx, youtubeURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, fmt.Errorf("yt-dlp metadata extraction failed: %w", err)
	}

	var meta YTMetadata
	if err := json.Unmarshal([]byte(metaRes.Stdout), &meta); err != nil {
		return "", nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(meta.ID) == "" {
		return "", nil, errors.New("missing video ID in yt-dlp output")
	}

	_, err = ytdlp.New().
		Format("bestaudio").
		NoPlaylist().
		NoWarnings().
		Output(filepath.Join(outputDir, meta.ID+".%(ext)s")).
		Run(ctx, youtubeURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	path, err := findDownloaded(outputDir, meta.ID)
	if err != nil {
		return "", nil, err
	}
	return path, &meta, nil
}

// findDownloaded locates <dir>/<id>.<ext> for whatever extension yt-dlp
// picked.
func findDownloaded(dir, id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if info, err := os.Stat(m); err == nil && info.Size() > 0 {
			return m, nil
		}
	}
	return "", fmt.Errorf("downloaded audio file not found for video %s", id)
}
