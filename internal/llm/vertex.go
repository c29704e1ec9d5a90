package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// Vertex implements Client on Vertex AI, authenticating with application default credentials.
type Vertex struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertex creates a Vertex AI Gemini client for the given project and region.
func NewVertex(ctx context.Context, projectID, region, modelName string) (*Vertex, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	if region == "" {
		region = "us-central1"
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("creating vertex client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &Vertex{
		client: client,
		model:  model,
	}, nil
}

func (v *Vertex) Name() string {
	return "vertex"
}

func (v *Vertex) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return vertexText(resp)
}

func (v *Vertex) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if format == "" {
		format = "png"
	}

	resp, err := v.model.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return vertexText(resp)
}

func (v *Vertex) Close() error {
	return v.client.Close()
}

func vertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
