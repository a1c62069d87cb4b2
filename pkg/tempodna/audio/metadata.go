package audio

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

type Metadata struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	DurationSec float64
	SampleRate  int
	Channels    int
	Format      string
}

// DisplayTitle is "Artist - Title" from tags, or the file name without
// extension when the file is untagged.
func (m *Metadata) DisplayTitle() string {
	switch {
	case m.Title != "" && m.Artist != "":
		return m.Artist + " - " + m.Title
	case m.Title != "":
		return m.Title
	}
	ext := filepath.Ext(m.Filename)
	return m.Filename[:len(m.Filename)-len(ext)]
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// ReadMetadataFFmpeg probes path with ffprobe.
func ReadMetadataFFmpeg(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return parseProbe(path, out)
}

func parseProbe(path string, out []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, err
	}

	meta := &Metadata{
		Filename: filepath.Base(path),
		Format:   probe.Format.Format,
	}
	found := false
	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			meta.SampleRate, _ = strconv.Atoi(s.SampleRate)
			meta.Channels = s.Channels
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("no audio stream found")
	}

	meta.DurationSec, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	// Tag keys vary in case between containers.
	for k, v := range probe.Format.Tags {
		switch k {
		case "title", "TITLE", "Title":
			meta.Title = v
		case "artist", "ARTIST", "Artist":
			meta.Artist = v
		case "album", "ALBUM", "Album":
			meta.Album = v
		}
	}
	return meta, nil
}
