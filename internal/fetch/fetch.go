// Package fetch downloads a single video into a job directory with yt-dlp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog/log"
)

const (
	fetchDirPerm     os.FileMode = 0o750
	progressInterval             = 2 * time.Second
	defaultFormat                = "mp4"
)

// ErrNoOutput is returned when yt-dlp exits cleanly but left no file behind.
var ErrNoOutput = errors.New("yt-dlp produced no output file")

// Result describes the downloaded file.
type Result struct {
	Path     string
	Filename string
	Size     int64
}

// Func downloads videoURL into destDir as <name>.<ext>.
type Func func(ctx context.Context, destDir, name, videoURL string) (Result, error)

// Options configures the yt-dlp runner.
type Options struct {
	// Binary is an explicit yt-dlp path; empty resolves yt-dlp from PATH.
	Binary string
	// Format is the preferred container, e.g. mp4.
	Format string
}

// YtDlp runs yt-dlp through go-ytdlp.
type YtDlp struct {
	opts Options
}

// New creates a runner.
func New(opts Options) *YtDlp {
	if opts.Format == "" {
		opts.Format = defaultFormat
	}
	return &YtDlp{opts: opts}
}

// Fetch implements Func.
func (y *YtDlp) Fetch(ctx context.Context, destDir, name, videoURL string) (Result, error) {
	if err := os.MkdirAll(destDir, fetchDirPerm); err != nil { //nolint:gosec // directory created by application under controlled path
		return Result{}, fmt.Errorf("ensure dir: %w", err)
	}

	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Format(formatSelector(y.opts.Format)).
		MergeOutputFormat(y.opts.Format).
		Output(filepath.Join(destDir, name+".%(ext)s"))
	if y.opts.Binary != "" {
		dl.SetExecutable(y.opts.Binary)
	}
	dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		log.Debug().
			Str("name", name).
			Str("downloaded", humanize.Bytes(uint64(max(update.DownloadedBytes, 0)))).
			Str("total", humanize.Bytes(uint64(max(update.TotalBytes, 0)))).
			Msg("fetch progress")
	})

	started := time.Now()
	if _, err := dl.Run(ctx, videoURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("yt-dlp: %w", err)
	}

	res, err := LocateOutput(destDir, name)
	if err != nil {
		return Result{}, err
	}
	log.Info().
		Str("file", res.Filename).
		Str("size", humanize.Bytes(uint64(res.Size))).
		Dur("took", time.Since(started)).
		Msg("fetch finished")
	return res, nil
}

// LocateOutput finds the file yt-dlp wrote for name, ignoring partial
// downloads. When several candidates exist the largest wins.
func LocateOutput(destDir, name string) (Result, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, name+".*"))
	if err != nil {
		return Result{}, fmt.Errorf("glob output: %w", err)
	}
	var best Result
	for _, match := range matches {
		if isPartial(match) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if best.Path == "" || info.Size() > best.Size {
			best = Result{Path: match, Filename: filepath.Base(match), Size: info.Size()}
		}
	}
	if best.Path == "" {
		return Result{}, ErrNoOutput
	}
	return best, nil
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".tmp"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), ".part-")
}

func formatSelector(container string) string {
	return fmt.Sprintf("bv*[ext=%[1]s]+ba/b[ext=%[1]s]/bv*+ba/b", container)
}
