package chat

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"elephant-logger/models"
)

type GeminiClient struct {
	client *genai.Client
	ctx    context.Context
}

func NewGeminiClient() (*GeminiClient, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	return &GeminiClient{
		client: client,
		ctx:    ctx,
	}, nil
}

const systemPrompt = `You are the Elephant Logger Assistant, an AI assistant for an acoustic elephant early-warning station.
You help rangers and field staff with:
- Interpreting infrasound features and classification confidence
- Alert tiers, dwell windows and what a detection episode means
- Labeling and training-data collection workflows
- Station operations and troubleshooting

Provide helpful, accurate, and concise responses. Be technical when needed but explain complex concepts clearly.
Keep responses conversational and under 200 words unless more detail is specifically requested.`

// contextBlock folds recent detections into the prompt so answers can refer
// to what the station actually saw.
func contextBlock(recent []models.Detection) string {
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRecent detections at this station:\n")
	for _, d := range recent {
		fmt.Fprintf(&b, "- %s tier=%s label=%s confidence=%.2f\n",
			d.Timestamp.Format("2006-01-02 15:04:05"), d.Tier, d.Label, d.Confidence)
	}
	return b.String()
}

func (g *GeminiClient) config(recent []models.Detection) *genai.GenerateContentConfig {
	systemInstruction := genai.NewContentFromText(systemPrompt+contextBlock(recent), genai.RoleModel)
	return &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}
}

func (g *GeminiClient) GenerateResponse(message string, recent []models.Detection) (string, error) {
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		g.config(recent),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return "I'm sorry, I couldn't generate a response. Please try rephrasing your question.", nil
	}

	cleanText := strings.ReplaceAll(text, "*", "")

	return cleanText, nil
}

// GenerateResponseStream generates a streaming response
func (g *GeminiClient) GenerateResponseStream(message string, recent []models.Detection, onChunk func(string) error) error {
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	stream := g.client.Models.GenerateContentStream(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		g.config(recent),
	)

	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("stream error: %v", err)
		}

		text := resp.Text()
		cleanText := strings.ReplaceAll(text, "*", "")
		if text != "" {
			if err := onChunk(cleanText); err != nil {
				return fmt.Errorf("chunk callback error: %v", err)
			}
		}
	}

	return nil
}

func (g *GeminiClient) Close() error {
	// The client manages its own connections.
	return nil
}
