package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/ocr"
)

const systemPrompt = `You are an OCR engine. Transcribe all text visible in the image exactly as written,
preserving line breaks. Do not describe the image, translate, or add commentary.
If the image contains no legible text, reply with exactly: ` + constants.NoTextModelReply

const userPrompt = "Transcribe the text in this image."

// generator is the slice of *genai.GenerativeModel the engine calls.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Engine recognizes text with a Gemini model on Vertex AI.
type Engine struct {
	model  generator
	name   string
	client *genai.Client
	logger *slog.Logger
}

// NewEngine creates a Vertex AI client and configures the model for transcription.
func NewEngine(ctx context.Context, projectID, region, model string, logger *slog.Logger) (*Engine, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	return &Engine{model: m, name: model, client: client, logger: logger}, nil
}

func (e *Engine) Name() string { return "vertex" }

func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *Engine) Recognize(ctx context.Context, path string) (ocr.ExtractionResult, error) {
	res := ocr.ExtractionResult{Method: e.Name(), Language: e.name}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, constants.ImageContentTypePrefix) {
		return res, fmt.Errorf("vertex: unsupported content %s", mime)
	}

	resp, err := e.model.GenerateContent(ctx, genai.Blob{MIMEType: mime, Data: data}, genai.Text(userPrompt))
	if err != nil {
		e.logger.Error("vertex generate failed", "path", path, "error", err)
		return res, fmt.Errorf("vertex generate: %w", err)
	}

	text := ocr.Normalize(responseText(resp))
	switch {
	case text == "" || strings.EqualFold(text, constants.NoTextModelReply):
		res.Status = ocr.StatusNoText
	default:
		res.Text = text
		res.Status = ocr.StatusText
	}
	return res, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```text")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return out
}
