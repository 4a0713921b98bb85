package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"story-server/internal/models"
)

const (
	// MaxNarrationChars is the longest text accepted for narration.
	MaxNarrationChars = 5000
	// ttsChunkRunes is the longest piece the translate TTS endpoint accepts per request.
	ttsChunkRunes = 100
)

// SupportedLanguages lists narration languages.
var SupportedLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true,
	"pt": true, "ru": true, "ja": true, "ko": true, "zh-CN": true,
}

// SpeechClient synthesizes MP3 speech.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// TranslateTTSClient talks to the Google Translate TTS endpoint.
// Text is sent in short chunks and the MP3 frames are concatenated.
type TranslateTTSClient struct {
	baseURL string
	http    *http.Client
}

// NewTranslateTTSClient creates a TTS client. httpClient may be nil.
func NewTranslateTTSClient(baseURL string, httpClient *http.Client) *TranslateTTSClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &TranslateTTSClient{baseURL: baseURL, http: httpClient}
}

// Synthesize implements SpeechClient.
func (c *TranslateTTSClient) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	chunks := chunkText(text, ttsChunkRunes)
	var out bytes.Buffer
	for i, chunk := range chunks {
		params := url.Values{}
		params.Set("ie", "UTF-8")
		params.Set("client", "tw-ob")
		params.Set("tl", lang)
		params.Set("q", chunk)
		params.Set("total", strconv.Itoa(len(chunks)))
		params.Set("idx", strconv.Itoa(i))
		params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, Fatal(StageNarration, fmt.Errorf("build tts request: %w", err))
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tts request %d/%d: %w", i+1, len(chunks), err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		_, err = io.Copy(&out, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read tts response: %w", err)
		}
	}
	return out.Bytes(), nil
}

// chunkText splits text at word boundaries into pieces of at most limit runes.
// Words longer than limit are cut.
func chunkText(text string, limit int) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		n := len(runes)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()
	return chunks
}

// NarrationAdapter turns the full story text into narration audio.
type NarrationAdapter struct {
	stage
	client SpeechClient
	lang   string
}

// NewNarrationAdapter creates the narration stage adapter.
func NewNarrationAdapter(client SpeechClient, lang string, opts StageOptions) (*NarrationAdapter, error) {
	if !SupportedLanguages[lang] {
		return nil, fmt.Errorf("unsupported narration language %q", lang)
	}
	return &NarrationAdapter{
		stage:  newStage(StageNarration, models.ArtifactAudio, "audio/mpeg", opts),
		client: client,
		lang:   lang,
	}, nil
}

// GenerateAudio narrates fullText and stores the MP3.
func (a *NarrationAdapter) GenerateAudio(ctx context.Context, job Job, fullText string) (StagedArtifact, error) {
	text := strings.TrimSpace(fullText)
	if text == "" {
		return StagedArtifact{}, Fatal(StageNarration, ErrEmptyInput)
	}
	if n := utf8.RuneCountInString(text); n > MaxNarrationChars {
		return StagedArtifact{}, Fatal(StageNarration, fmt.Errorf("%w: text has %d characters, limit is %d", ErrPrecondition, n, MaxNarrationChars))
	}

	return a.produce(ctx, job, AudioKey(job.StoryID), "audio/narration.mp3", func(ctx context.Context, outPath string) error {
		data, err := a.client.Synthesize(ctx, text, a.lang)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return Retryable(StageNarration, fmt.Errorf("tts returned empty audio"))
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return Fatal(StageNarration, fmt.Errorf("write audio: %w", err))
		}
		a.log.Debug("Narration synthesized", zap.String("story_id", job.StoryID), zap.Int("bytes", len(data)))
		return nil
	})
}
