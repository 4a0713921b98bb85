package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"story-server/internal/interfaces"
	"story-server/internal/media"
	"story-server/internal/messaging"
	"story-server/internal/models"
	"story-server/internal/scenes"
	"story-server/pkg/taskmanager"
)

// EstimatedTime is reported to the client when a job is accepted.
const EstimatedTime = "2-5 minutes"

const (
	// MessageTypeStoryUpdate is the WebSocket message type for stage and status changes.
	MessageTypeStoryUpdate = "story_update"
	topicStories           = "stories"
	eventPublishTimeout    = 5 * time.Second
	persistTimeout         = 10 * time.Second
	interruptedReason      = "interrupted"
)

var errQueueFullReason = errors.New("queue full")

// ImageGenerator illustrates one scene.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, job media.Job, index int, sceneText string) (media.StagedArtifact, error)
}

// NarrationGenerator narrates the full story text.
type NarrationGenerator interface {
	GenerateAudio(ctx context.Context, job media.Job, fullText string) (media.StagedArtifact, error)
}

// VideoCompiler assembles the images and narration into a video.
type VideoCompiler interface {
	CompileVideo(ctx context.Context, job media.Job, images []media.StagedArtifact, audio *media.StagedArtifact) (media.StagedArtifact, error)
}

// TaskSubmitter runs jobs in the background with a bounded number of active jobs.
type TaskSubmitter interface {
	Submit(taskID, ownerID string, fn taskmanager.TaskFunc) error
}

// Notifier pushes updates to the owner's live connections.
type Notifier interface {
	SendToUser(userID, messageType, topic string, payload interface{})
}

// Config tunes the orchestrator.
type Config struct {
	ImageConcurrency int
	// WorkDir is the parent of per-job workspaces. Empty means os.TempDir().
	WorkDir string
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Stories   interfaces.StoryRepository
	Images    ImageGenerator
	Narration NarrationGenerator
	Video     VideoCompiler
	Tasks     TaskSubmitter
	Publisher messaging.EventPublisher
	Notifier  Notifier
}

// Orchestrator drives a story through splitting, image, narration and video stages.
// Only the job it starts writes to a processing record.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.ImageConcurrency <= 0 {
		cfg.ImageConcurrency = 1
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NewNopPublisher(logger)
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("Orchestrator"),
	}
}

// Generate validates the request, records the story as processing and starts the job.
// Invalid input creates no record. A full queue leaves a failed record and returns ErrQueueFull.
func (o *Orchestrator) Generate(ctx context.Context, ownerID, title, prompt string) (*models.Story, error) {
	title, err := models.ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	prompt, err = models.ValidatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	sceneTexts, err := scenes.Split(prompt)
	if err != nil {
		return nil, &models.ValidationError{Field: "text_prompt", Message: err.Error()}
	}

	now := o.now().UTC()
	story := &models.Story{
		ID:         uuid.NewString(),
		UserID:     ownerID,
		Title:      title,
		TextPrompt: prompt,
		Status:     models.StatusProcessing,
		SceneCount: len(sceneTexts),
		Images:     []models.ArtifactRef{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.deps.Stories.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	log := o.logger.With(zap.String("story_id", story.ID), zap.String("user_id", ownerID))

	err = o.deps.Tasks.Submit(story.ID, ownerID, func(taskCtx context.Context) error {
		return o.run(taskCtx, story, sceneTexts)
	})
	if err != nil {
		if errors.Is(err, taskmanager.ErrTooManyTasks) || errors.Is(err, taskmanager.ErrShuttingDown) {
			log.Warn("Generation queue is full", zap.Error(err))
			o.fail(context.WithoutCancel(ctx), story, "", errQueueFullReason)
			return nil, fmt.Errorf("%w: %v", models.ErrQueueFull, err)
		}
		o.fail(context.WithoutCancel(ctx), story, "", err)
		return nil, fmt.Errorf("submit story job: %w", err)
	}

	jobsSubmittedTotal.Inc()
	log.Info("Story generation started", zap.Int("scenes", len(sceneTexts)))
	return story, nil
}

// run is the body of one job. Every exit path leaves the story terminal.
func (o *Orchestrator) run(ctx context.Context, story *models.Story, sceneTexts []string) (err error) {
	log := o.logger.With(zap.String("story_id", story.ID))
	start := o.now()
	jobsActive.Inc()
	defer func() {
		jobsActive.Dec()
		status := string(models.StatusCompleted)
		if err != nil {
			status = string(models.StatusFailed)
		}
		jobDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		jobsFinishedTotal.WithLabelValues(status).Inc()
	}()

	stage := ""
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("Story job panicked", zap.String("stage", stage), zap.Any("panic", r), zap.Stack("stack"))
			o.fail(ctx, story, stage, err)
		}
	}()

	workDir, err := os.MkdirTemp(o.cfg.WorkDir, "story-"+story.ID+"-")
	if err != nil {
		o.fail(ctx, story, "", fmt.Errorf("create workspace: %w", err))
		return err
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("Failed to remove job workspace", zap.String("dir", workDir), zap.Error(rmErr))
		}
	}()
	job := media.Job{StoryID: story.ID, WorkDir: workDir}

	stage = media.StageImage
	o.notifyStage(story, stage)
	images, err := o.generateImages(ctx, job, sceneTexts)
	if err != nil {
		o.fail(ctx, story, media.StageImage, err)
		return err
	}
	imageRefs := make([]models.ArtifactRef, len(images))
	for i, img := range images {
		imageRefs[i] = img.Ref
	}
	if err = o.deps.Stories.SaveImages(ctx, story.ID, imageRefs); err != nil {
		o.fail(ctx, story, media.StageImage, err)
		return err
	}

	stage = media.StageNarration
	o.notifyStage(story, stage)
	audio, err := o.deps.Narration.GenerateAudio(ctx, job, story.TextPrompt)
	if err != nil {
		o.fail(ctx, story, media.StageNarration, err)
		return err
	}
	if err = o.deps.Stories.SaveAudio(ctx, story.ID, audio.Ref); err != nil {
		o.fail(ctx, story, media.StageNarration, err)
		return err
	}

	stage = media.StageVideo
	o.notifyStage(story, stage)
	video, err := o.deps.Video.CompileVideo(ctx, job, images, &audio)
	if err != nil {
		o.fail(ctx, story, media.StageVideo, err)
		return err
	}
	if err = o.deps.Stories.MarkCompleted(ctx, story.ID, video.Ref); err != nil {
		o.fail(ctx, story, media.StageVideo, err)
		return err
	}

	log.Info("Story completed", zap.Duration("elapsed", time.Since(start)))
	o.emit(ctx, models.StoryEvent{
		StoryID:  story.ID,
		UserID:   story.UserID,
		Status:   models.StatusCompleted,
		VideoURL: video.Ref.URL,
	})
	return nil
}

// generateImages runs the image stage for every scene. Each goroutine writes only its own slot.
func (o *Orchestrator) generateImages(ctx context.Context, job media.Job, sceneTexts []string) ([]media.StagedArtifact, error) {
	results := make([]media.StagedArtifact, len(sceneTexts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ImageConcurrency)
	for i, text := range sceneTexts {
		g.Go(func() (err error) {
			// errgroup does not recover panics.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scene %d: panic: %v", i, r)
				}
			}()
			img, err := o.deps.Images.GenerateImage(gctx, job, i, text)
			if err != nil {
				return err
			}
			results[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FailInterrupted marks stories left processing by a previous process as failed.
// Jobs do not survive a restart, so nothing else would ever finish them.
func (o *Orchestrator) FailInterrupted(ctx context.Context) (int, error) {
	n, err := o.deps.Stories.FailAllProcessing(ctx, interruptedReason)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted stories: %w", err)
	}
	if n > 0 {
		o.logger.Warn("Marked interrupted stories as failed", zap.Int("count", n))
		jobsFinishedTotal.WithLabelValues(string(models.StatusFailed)).Add(float64(n))
	}
	return n, nil
}

// fail records the first failure. Artifacts already stored are kept.
func (o *Orchestrator) fail(ctx context.Context, story *models.Story, stage string, cause error) {
	reason := failureReason(stage, cause)
	log := o.logger.With(zap.String("story_id", story.ID), zap.String("stage", stage))
	log.Warn("Story generation failed", zap.Error(cause))

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := o.deps.Stories.MarkFailed(pctx, story.ID, reason); err != nil {
		log.Error("Failed to mark story failed", zap.Error(err))
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrStoryNotFound) {
			return
		}
	}
	o.emit(ctx, models.StoryEvent{
		StoryID: story.ID,
		UserID:  story.UserID,
		Status:  models.StatusFailed,
		Stage:   stage,
		Error:   reason,
	})
}

func failureReason(stage string, cause error) string {
	var se *media.StageError
	if stage == "" || errors.As(cause, &se) {
		return cause.Error()
	}
	return fmt.Sprintf("%s stage failed: %v", stage, cause)
}

func (o *Orchestrator) notifyStage(story *models.Story, stage string) {
	if o.deps.Notifier == nil {
		return
	}
	o.deps.Notifier.SendToUser(story.UserID, MessageTypeStoryUpdate, topicStories, models.StoryEvent{
		StoryID:    story.ID,
		UserID:     story.UserID,
		Status:     models.StatusProcessing,
		Stage:      stage,
		OccurredAt: o.now().UTC(),
	})
}

// emit delivers a terminal event to the broker and the owner's connections.
func (o *Orchestrator) emit(ctx context.Context, event models.StoryEvent) {
	event.OccurredAt = o.now().UTC()
	if o.deps.Notifier != nil {
		o.deps.Notifier.SendToUser(event.UserID, MessageTypeStoryUpdate, topicStories, event)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := o.deps.Publisher.PublishStoryEvent(pctx, event); err != nil {
		o.logger.Warn("Failed to publish story event", zap.String("story_id", event.StoryID), zap.Error(err))
	}
}
