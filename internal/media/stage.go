package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"story-server/internal/models"
)

// Job identifies the story being generated and its scratch directory.
type Job struct {
	StoryID string
	WorkDir string
}

// StagedArtifact is a stored artifact together with its local copy in the job workspace.
type StagedArtifact struct {
	Ref       models.ArtifactRef
	LocalPath string
}

// StageOptions are shared by all adapters.
type StageOptions struct {
	Store ArtifactStore
	// Retry bounds the generation call of the stage.
	Retry RetryPolicy
	// UploadTimeout bounds a single upload attempt.
	UploadTimeout time.Duration
	Logger        *zap.Logger
}

// stage is the common capability of every adapter: produce a media file
// in the job workspace, then persist it to durable storage.
type stage struct {
	name        string
	kind        models.ArtifactKind
	contentType string
	opts        StageOptions
	log         *zap.Logger
}

func newStage(name string, kind models.ArtifactKind, contentType string, opts StageOptions) stage {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return stage{
		name:        name,
		kind:        kind,
		contentType: contentType,
		opts:        opts,
		log:         log.Named(name + "_stage"),
	}
}

// produce runs generate under the stage retry policy and uploads the result.
// generate must write the artifact to outPath.
func (s *stage) produce(ctx context.Context, job Job, key, fileName string, generate func(ctx context.Context, outPath string) error) (StagedArtifact, error) {
	start := time.Now()
	outPath := filepath.Join(job.WorkDir, fileName)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return StagedArtifact{}, Fatal(s.name, fmt.Errorf("prepare workspace: %w", err))
	}

	if err := s.opts.Retry.do(ctx, s.log, s.name, func(ctx context.Context) error {
		return generate(ctx, outPath)
	}); err != nil {
		stageDuration.WithLabelValues(s.name, "error").Observe(time.Since(start).Seconds())
		return StagedArtifact{}, err
	}

	url, err := s.persist(ctx, key, outPath)
	if err != nil {
		stageDuration.WithLabelValues(s.name, "error").Observe(time.Since(start).Seconds())
		return StagedArtifact{}, err
	}

	stageDuration.WithLabelValues(s.name, "success").Observe(time.Since(start).Seconds())
	s.log.Debug("Artifact stored",
		zap.String("story_id", job.StoryID),
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return StagedArtifact{
		Ref:       models.ArtifactRef{Kind: s.kind, StorageID: key, URL: url},
		LocalPath: outPath,
	}, nil
}

// persist uploads localPath. A failed upload is retried exactly once, then fatal.
func (s *stage) persist(ctx context.Context, key, localPath string) (string, error) {
	policy := RetryPolicy{
		MaxRetries: uploadRetries,
		BaseDelay:  s.opts.Retry.BaseDelay,
		Timeout:    s.opts.UploadTimeout,
	}

	var url string
	err := policy.do(ctx, s.log, StageUpload, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return Fatal(StageUpload, fmt.Errorf("open artifact: %w", err))
		}
		defer f.Close()

		if info, statErr := f.Stat(); statErr == nil {
			uploadedBytesTotal.WithLabelValues(string(s.kind)).Add(float64(info.Size()))
		}

		url, err = s.opts.Store.Put(ctx, key, s.contentType, f)
		if err != nil {
			// any upload failure gets its single retry
			return Retryable(StageUpload, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}
