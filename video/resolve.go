// Package video decodes an auxiliary image or video source into the RGBA
// frames the shader pipeline samples as auxiliary textures, grounded on
// the ffmpeg-subprocess capture pattern in the example corpus
// (Reece-Reklai's camera-capture.go), adapted to bring a remote/streamed
// source through to raw RGBA on stdout.
package video

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// resolveMediaURL applies the host-based resolution rules of
// SPEC_FULL.md §6.3: YouTube-family hosts go through a YouTube resolver
// tool, Twitch goes through a Twitch stream resolver, everything else
// passes through unchanged.
func resolveMediaURL(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, nil
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.HasSuffix(host, "youtube.com") || strings.HasSuffix(host, "youtu.be"):
		return resolveYouTube(ctx, raw)
	case strings.HasSuffix(host, "twitch.tv"):
		return resolveTwitch(ctx, raw)
	default:
		return raw, nil
	}
}

// resolveYouTube shells out to yt-dlp asking for the direct URL of a
// video stream with height <= 1080, preferring AVC.
func resolveYouTube(ctx context.Context, raw string) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "bestvideo[height<=1080][vcodec^=avc1]/bestvideo[height<=1080]",
		"-g", raw)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("video: resolveYouTube: yt-dlp: %w", err)
	}
	direct := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if direct == "" {
		return "", fmt.Errorf("video: resolveYouTube: yt-dlp returned no URL")
	}
	return direct, nil
}

// resolveTwitch shells out to streamlink asking for the best quality
// stream URL.
func resolveTwitch(ctx context.Context, raw string) (string, error) {
	cmd := exec.CommandContext(ctx, "streamlink", "--stream-url", raw, "best")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("video: resolveTwitch: streamlink: %w", err)
	}
	direct := strings.TrimSpace(string(out))
	if direct == "" {
		return "", fmt.Errorf("video: resolveTwitch: streamlink returned no URL")
	}
	return direct, nil
}

// probe runs ffprobe to discover a media source's dimensions, frame
// rate, and duration before spawning the raw-RGBA ffmpeg decode.
func probe(ctx context.Context, mediaURL string) (width, height int, fps float64, duration time.Duration, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "csv=p=0", mediaURL)
	out, cmdErr := cmd.Output()
	if cmdErr != nil {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: ffprobe: %w", cmdErr)
	}

	fields := strings.FieldsFunc(strings.TrimSpace(string(out)), func(r rune) bool {
		return r == ',' || r == '\n'
	})
	if len(fields) < 4 {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: unexpected ffprobe output %q", bytes.TrimSpace(out))
	}

	width, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: parse width: %w", err)
	}
	height, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: parse height: %w", err)
	}
	fps, err = parseFrameRate(fields[2])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: parse frame rate: %w", err)
	}
	durSeconds, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("video: probe: parse duration: %w", err)
	}

	return width, height, fps, time.Duration(durSeconds * float64(time.Second)), nil
}

// parseFrameRate parses ffprobe's "num/den" r_frame_rate field.
func parseFrameRate(s string) (float64, error) {
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	if len(parts) == 1 {
		return num, nil
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("invalid denominator in %q", s)
	}
	return num / den, nil
}
