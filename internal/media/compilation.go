package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"story-server/internal/models"
)

// VideoRenderer combines still images and an audio track into a video file.
type VideoRenderer interface {
	Render(ctx context.Context, imagePaths []string, audioPath, outPath string) error
}

// VideoSettings describe the output format.
type VideoSettings struct {
	Width  int
	Height int
	FPS    int
}

// FFmpegRenderer renders with ffmpeg and measures audio with ffprobe.
type FFmpegRenderer struct {
	ffmpeg   string
	ffprobe  string
	settings VideoSettings
	log      *zap.Logger
}

// NewFFmpegRenderer creates a renderer using the given binaries.
func NewFFmpegRenderer(ffmpegPath, ffprobePath string, settings VideoSettings, log *zap.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		ffmpeg:   ffmpegPath,
		ffprobe:  ffprobePath,
		settings: settings,
		log:      log.Named("ffmpeg"),
	}
}

// Render implements VideoRenderer. Every image is shown for an equal share of the audio.
func (r *FFmpegRenderer) Render(ctx context.Context, imagePaths []string, audioPath, outPath string) error {
	duration, err := r.audioDuration(ctx, audioPath)
	if err != nil {
		return err
	}
	args := buildFFmpegArgs(imagePaths, audioPath, outPath, duration, r.settings)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 500))
	}
	r.log.Debug("Video rendered", zap.String("out", outPath), zap.Float64("audio_seconds", duration), zap.Int("images", len(imagePaths)))
	return nil
}

func (r *FFmpegRenderer) audioDuration(ctx context.Context, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: unreadable audio duration %q", ErrPrecondition, strings.TrimSpace(string(out)))
	}
	return d, nil
}

// buildFFmpegArgs builds a filter graph that scales, pads and fades every
// image, concatenates them and muxes the narration.
func buildFFmpegArgs(imagePaths []string, audioPath, outPath string, audioSeconds float64, s VideoSettings) []string {
	n := len(imagePaths)
	perImage := audioSeconds / float64(n)
	fade := perImage / 4
	if fade > 0.5 {
		fade = 0.5
	}
	per := strconv.FormatFloat(perImage, 'f', 3, 64)
	fd := strconv.FormatFloat(fade, 'f', 3, 64)
	fadeOutStart := strconv.FormatFloat(perImage-fade, 'f', 3, 64)

	args := []string{"-y"}
	for _, img := range imagePaths {
		args = append(args, "-loop", "1", "-t", per, "-i", img)
	}
	args = append(args, "-i", audioPath)

	var graph strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&graph,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,fade=t=in:st=0:d=%s,fade=t=out:st=%s:d=%s[v%d];",
			i, s.Width, s.Height, s.Width, s.Height, s.FPS, fd, fadeOutStart, fd, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&graph, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[outv]", n)

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", n),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.FPS),
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return args
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CompilationAdapter assembles the final video.
type CompilationAdapter struct {
	stage
	renderer VideoRenderer
}

// NewCompilationAdapter creates the compilation stage adapter.
func NewCompilationAdapter(renderer VideoRenderer, opts StageOptions) *CompilationAdapter {
	return &CompilationAdapter{
		stage:    newStage(StageVideo, models.ArtifactVideo, "video/mp4", opts),
		renderer: renderer,
	}
}

// CompileVideo needs at least one image and exactly one audio track.
func (a *CompilationAdapter) CompileVideo(ctx context.Context, job Job, images []StagedArtifact, audio *StagedArtifact) (StagedArtifact, error) {
	if len(images) == 0 {
		return StagedArtifact{}, Fatal(StageVideo, fmt.Errorf("%w: no images", ErrPrecondition))
	}
	if audio == nil || audio.LocalPath == "" || audio.Ref.StorageID == "" {
		return StagedArtifact{}, Fatal(StageVideo, fmt.Errorf("%w: no audio", ErrPrecondition))
	}
	paths := make([]string, len(images))
	for i, img := range images {
		if img.LocalPath == "" {
			return StagedArtifact{}, Fatal(StageVideo, fmt.Errorf("%w: image %d has no local copy", ErrPrecondition, i))
		}
		paths[i] = img.LocalPath
	}

	return a.produce(ctx, job, VideoKey(job.StoryID), "video/story_video.mp4", func(ctx context.Context, outPath string) error {
		err := a.renderer.Render(ctx, paths, audio.LocalPath, outPath)
		if errors.Is(err, ErrPrecondition) {
			return Fatal(StageVideo, err)
		}
		return err
	})
}
