package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/modules/account"
)

type fakeModel struct {
	reply string
	err   error
	parts []genai.Part
}

func (m *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.parts = parts
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(m.reply)}}}},
	}, nil
}

func TestExtractIdentity(t *testing.T) {
	m := &fakeModel{reply: "```json\n{\"valid\": true, \"holder_name\": \"Ana Souza\", \"document_number\": \"123\", \"vehicle_type\": \"moto\", \"plate\": \"ABC1D23\"}\n```"}
	ext, err := NewExtractorWithModel(m).Extract(context.Background(), account.KindIdentity, []byte{0xff}, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, ext.Verified)
	assert.Equal(t, "Ana Souza", ext.HolderName)
	assert.Equal(t, "ABC1D23", ext.Plate)

	require.Len(t, m.parts, 2)
	img, ok := m.parts[1].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", img.MIMEType)
}

func TestExtractDeliveryRateRange(t *testing.T) {
	m := &fakeModel{reply: `{"valid": true, "delivery_rate": 140}`}
	ext, err := NewExtractorWithModel(m).Extract(context.Background(), account.KindDeliveryRate, []byte{1}, "image/png")
	require.NoError(t, err)
	assert.False(t, ext.Verified)

	m.reply = `{"valid": true, "delivery_rate": 97.4}`
	ext, err = NewExtractorWithModel(m).Extract(context.Background(), account.KindDeliveryRate, []byte{1}, "image/png")
	require.NoError(t, err)
	assert.True(t, ext.Verified)
	assert.InDelta(t, 97.4, ext.DeliveryRate, 0.001)
}

func TestExtractErrors(t *testing.T) {
	_, err := NewExtractorWithModel(&fakeModel{}).Extract(context.Background(), account.KindIdentity, []byte{1}, "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = NewExtractorWithModel(&fakeModel{err: errors.New("quota")}).Extract(context.Background(), account.KindIdentity, []byte{1}, "image/png")
	assert.Error(t, err)

	_, err = NewExtractorWithModel(&fakeModel{reply: "not json"}).Extract(context.Background(), account.KindIdentity, []byte{1}, "image/png")
	assert.Error(t, err)
}

func TestNewGeminiExtractorNeedsKey(t *testing.T) {
	_, err := NewGeminiExtractor(context.Background(), " ")
	assert.Error(t, err)
}
