// README: Gemini-backed document reader for driver identity and delivery-rate verification.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"routedesk/internal/modules/account"
)

// Generator is the slice of *genai.GenerativeModel the extractor uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

var ErrUnsupportedImage = errors.New("unsupported image type")

// GeminiExtractor implements account.Oracle.
type GeminiExtractor struct {
	client *genai.Client
	model  Generator
}

func NewGeminiExtractor(ctx context.Context, apiKey string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	// Extraction, not prose.
	model.SetTemperature(0)

	return &GeminiExtractor{client: client, model: model}, nil
}

// NewExtractorWithModel wraps an existing generator.
func NewExtractorWithModel(model Generator) *GeminiExtractor {
	return &GeminiExtractor{model: model}
}

func (g *GeminiExtractor) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *GeminiExtractor) Extract(ctx context.Context, kind account.VerificationKind, image []byte, mimeType string) (*account.Extraction, error) {
	format, err := imageFormat(mimeType)
	if err != nil {
		return nil, err
	}
	resp, err := g.model.GenerateContent(ctx, genai.Text(promptFor(kind)), genai.ImageData(format, image))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}

	raw := cleanJSONString(text.String())
	var res extractionResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, raw)
	}
	return toExtraction(kind, res), nil
}

func toExtraction(kind account.VerificationKind, res extractionResult) *account.Extraction {
	ext := &account.Extraction{
		Verified:       res.Valid,
		Reason:         res.Reason,
		HolderName:     res.HolderName,
		DocumentNumber: res.DocumentNumber,
		VehicleType:    res.VehicleType,
		Plate:          res.Plate,
		DeliveryRate:   res.DeliveryRate,
	}
	if kind == account.KindDeliveryRate && (res.DeliveryRate < 0 || res.DeliveryRate > 100) {
		ext.Verified = false
		ext.Reason = "delivery rate out of range"
	}
	return ext
}

func imageFormat(mimeType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpeg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/heic":
		return "heic", nil
	}
	return "", ErrUnsupportedImage
}

func promptFor(kind account.VerificationKind) string {
	if kind == account.KindDeliveryRate {
		return `You read screenshots of a courier app's performance screen.
Find the driver's delivery success rate as a percentage between 0 and 100.
If the image is not such a screen or the rate is not legible, set "valid" to false and explain in "reason".
Respond with JSON only:
{"valid": boolean, "reason": "string", "holder_name": "string", "delivery_rate": number}`
	}
	return `You read photos of Brazilian driver documents (CNH or CRLV).
Extract the holder's full name, the document number, the vehicle type (moto, carro, van, utilitário) and the plate when present.
If the image is not a driver document or is not legible, set "valid" to false and explain in "reason".
Respond with JSON only:
{"valid": boolean, "reason": "string", "holder_name": "string", "document_number": "string", "vehicle_type": "string", "plate": "string"}`
}

// cleanJSONString removes markdown code fences if present.
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
