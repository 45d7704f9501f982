package textgen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"

	"github.com/you/flippi-shorts/internal/timestamp"
)

const (
	titleSystemPrompt = "You write punchy, accurate YouTube Shorts titles for " +
		"Super Smash Bros. Melee combo clips. Reply with the title only, " +
		"under 90 characters, no quotes."
	descSystemPrompt = "You write short, hype YouTube descriptions for Melee " +
		"combo videos. Two or three sentences, no hashtags, no quotes."
	compSystemPrompt = "You write a single YouTube title for a compilation of " +
		"Melee combo clips. Reply with the title only, no quotes."
)

// OpenAI implements Generator over the OpenAI API. Calls are rate limited
// so a burst of new combos cannot hammer the endpoint.
type OpenAI struct {
	client  openai.Client
	model   openai.ChatModel
	limiter *rate.Limiter
}

// keyFile is the on-disk shape of the API key ("open_AI_key.json").
type keyFile struct {
	APIKey string `json:"api_key"`
}

// NewOpenAI builds a generator from OPENAI_API_KEY, falling back to the JSON
// key file at keyPath when the variable is unset.
func NewOpenAI(keyPath string) (*OpenAI, error) {
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" && keyPath != "" {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("textgen: read key file: %w", err)
		}
		var kf keyFile
		if err := json.Unmarshal(data, &kf); err != nil {
			return nil, fmt.Errorf("textgen: decode key file: %w", err)
		}
		key = strings.TrimSpace(kf.APIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("textgen: no API key configured")
	}

	model := openai.ChatModel(strings.TrimSpace(os.Getenv("FLIPPI_OPENAI_MODEL")))
	if model == "" {
		model = openai.ChatModelGPT4o
	}

	return &OpenAI{
		client:  openai.NewClient(option.WithAPIKey(key)),
		model:   model,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

func (o *OpenAI) Title(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, titleSystemPrompt, prompt)
}

func (o *OpenAI) Description(ctx context.Context, title string) (string, error) {
	return o.chat(ctx, descSystemPrompt, "Write a description for a video titled: "+title)
}

func (o *OpenAI) CompilationTitle(ctx context.Context, titles []string) (string, error) {
	return o.chat(ctx, compSystemPrompt,
		"The compilation contains these clips:\n"+strings.Join(titles, "\n"))
}

// Thumbnail renders an image for the title and saves it as a PNG in
// destDir. Generation failures are reported to the caller, which treats a
// missing thumbnail as non-fatal.
func (o *OpenAI) Thumbnail(ctx context.Context, title, destDir string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	res, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: "Bold esports YouTube thumbnail, no text, for a Super Smash " +
			"Bros. Melee video titled: " + title,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1792x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("textgen: generate thumbnail: %w", err)
	}
	if len(res.Data) == 0 || res.Data[0].B64JSON == "" {
		return "", fmt.Errorf("textgen: thumbnail response empty")
	}

	raw, err := base64.StdEncoding.DecodeString(res.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("textgen: decode thumbnail: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("textgen: mkdir %s: %w", destDir, err)
	}
	path := filepath.Join(destDir, timestamp.Format(time.Now())+".png")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("textgen: write thumbnail: %w", err)
	}
	log.Printf("textgen: thumbnail saved to %s", path)
	return filepath.ToSlash(path), nil
}

func (o *OpenAI) chat(ctx context.Context, system, user string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("textgen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("textgen: no choices returned")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("textgen: empty completion")
	}
	return out, nil
}
