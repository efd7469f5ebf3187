package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

// DefaultGeminiModel is used when no model is configured.
var DefaultGeminiModel = "gemini-2.5-flash"

// geminiMaxSide bounds the longest edge of images sent upstream.
const geminiMaxSide = 1024

var geminiPrompt = "Tag this image the way an anime image board would. " +
	"Respond with a JSON object with two keys. \"tags\" maps lower-case tags, " +
	"using underscores between words (for example long_hair, smile, outdoors), to a confidence between 0 and 1. " +
	"\"ratings\" maps each of general, sensitive, questionable, explicit to a confidence between 0 and 1. " +
	"Include at most 40 tags and no other keys."

// Gemini infers tags with a hosted Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini tagger. An empty model selects DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey string, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: c, model: model}, nil
}

// Infer asks the model to score tags for img.
func (g *Gemini) Infer(ctx context.Context, img image.Image) (*Prediction, error) {
	bs, err := encodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrInference, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(bs, "image/jpeg"),
		genai.NewPartFromText(geminiPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", ErrInference, err)
	}

	var text strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		break
	}
	klog.V(2).Infof("gemini response: %s", text.String())
	return parseGemini(text.String())
}

func encodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if long := max(b.Dx(), b.Dy()); long > geminiMaxSide {
		scale := float64(geminiMaxSide) / float64(long)
		img = transform.Resize(img, max(1, int(float64(b.Dx())*scale)), max(1, int(float64(b.Dy())*scale)), transform.Lanczos)
	}
	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(85)(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseGemini(text string) (*Prediction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")

	var r struct {
		Tags    map[string]float64 `json:"tags"`
		Ratings map[string]float64 `json:"ratings"`
	}
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrInference, err)
	}
	if r.Tags == nil {
		return nil, inferErr("response has no tags")
	}

	p := &Prediction{Tags: map[string]float64{}, Ratings: map[string]float64{}}
	for k, v := range r.Tags {
		if v < 0 || v > 1 {
			return nil, inferErr("score %v for %q out of range", v, k)
		}
		p.Tags[strings.ReplaceAll(strings.TrimSpace(k), " ", "_")] = v
	}
	for k, v := range r.Ratings {
		p.Ratings[k] = v
	}
	return p, nil
}
