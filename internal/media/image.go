package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"story-server/internal/models"
	"story-server/internal/scenes"
)

// ImageClient is the subset of the OpenAI-compatible API used for images.
// *openai.Client satisfies it.
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// ImageSettings configure the image request.
type ImageSettings struct {
	Model       string
	Size        string
	StyleSuffix string
}

// NewTogetherClient builds an OpenAI client pointed at an OpenAI-compatible endpoint.
func NewTogetherClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// maxImageBytes bounds an image downloaded from a result URL.
const maxImageBytes = 20 << 20

// ImageAdapter generates one illustration per scene.
type ImageAdapter struct {
	stage
	client   ImageClient
	settings ImageSettings
	http     *http.Client
	maxBytes int64
}

// NewImageAdapter creates the image stage adapter.
func NewImageAdapter(client ImageClient, settings ImageSettings, opts StageOptions) *ImageAdapter {
	return &ImageAdapter{
		stage:    newStage(StageImage, models.ArtifactImage, "image/png", opts),
		client:   client,
		settings: settings,
		http:     &http.Client{},
		maxBytes: maxImageBytes,
	}
}

// GenerateImage illustrates sceneText and stores the result as the index-th image.
func (a *ImageAdapter) GenerateImage(ctx context.Context, job Job, index int, sceneText string) (StagedArtifact, error) {
	if strings.TrimSpace(sceneText) == "" {
		return StagedArtifact{}, Fatal(StageImage, fmt.Errorf("scene %d: %w", index, ErrEmptyInput))
	}
	prompt := scenes.ImagePrompt(sceneText, a.settings.StyleSuffix)

	fileName := fmt.Sprintf("images/scene_%d.png", index)
	return a.produce(ctx, job, ImageKey(job.StoryID, index), fileName, func(ctx context.Context, outPath string) error {
		data, err := a.request(ctx, prompt)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return Fatal(StageImage, fmt.Errorf("write image: %w", err))
		}
		a.log.Debug("Image generated",
			zap.String("story_id", job.StoryID),
			zap.Int("scene", index),
			zap.Int("bytes", len(data)))
		return nil
	})
}

func (a *ImageAdapter) request(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := a.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          a.settings.Model,
		N:              1,
		Size:           a.settings.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image API call: %w", err)
	}
	if len(resp.Data) == 0 {
		// upstream occasionally answers 200 with no data
		return nil, Retryable(StageImage, errors.New("image API returned no data"))
	}

	item := resp.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, Fatal(StageImage, fmt.Errorf("decode image payload: %w", err))
		}
		return data, nil
	case item.URL != "":
		return a.download(ctx, item.URL)
	default:
		return nil, Retryable(StageImage, errors.New("image API returned neither data nor url"))
	}
}

func (a *ImageAdapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Fatal(StageImage, fmt.Errorf("build download request: %w", err))
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, Fatal(StageImage, fmt.Errorf("downloaded image exceeds %d bytes", a.maxBytes))
	}
	return data, nil
}
