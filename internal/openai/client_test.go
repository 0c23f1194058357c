package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func newTestClient(api EmbeddingAPI, dimensions int) *Client {
	return &Client{api: api, dimensions: dimensions}
}

func TestClient_EmbedMany_Success(t *testing.T) {
	api := &MockEmbeddingAPI{}
	want := [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}
	api.On("CreateEmbeddings", mock.Anything, []string{"first", "second"}).Return(want, nil)

	client := newTestClient(api, 3)
	got, err := client.EmbedMany(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, want, got)
	api.AssertExpectations(t)
}

func TestClient_EmbedMany_EmptyBatchSkipsAPI(t *testing.T) {
	api := &MockEmbeddingAPI{}

	client := newTestClient(api, 3)
	got, err := client.EmbedMany(context.Background(), []string{})

	require.NoError(t, err)
	assert.Empty(t, got)
	api.AssertNotCalled(t, "CreateEmbeddings")
}

func TestClient_EmbedMany_RejectsEmptyText(t *testing.T) {
	api := &MockEmbeddingAPI{}

	client := newTestClient(api, 3)
	_, err := client.EmbedMany(context.Background(), []string{"first", ""})

	require.ErrorIs(t, err, ErrEmptyText)
	api.AssertNotCalled(t, "CreateEmbeddings")
}

func TestClient_EmbedMany_WrongDimensions(t *testing.T) {
	api := &MockEmbeddingAPI{}
	api.On("CreateEmbeddings", mock.Anything, []string{"text"}).Return([][]float32{{0.1, 0.2}}, nil)

	client := newTestClient(api, 3)
	_, err := client.EmbedMany(context.Background(), []string{"text"})

	require.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_EmbedMany_APIError(t *testing.T) {
	api := &MockEmbeddingAPI{}
	api.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	client := newTestClient(api, 3)
	_, err := client.EmbedMany(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

func TestClient_EmbedOne_Success(t *testing.T) {
	api := &MockEmbeddingAPI{}
	api.On("CreateEmbeddings", mock.Anything, []string{"hello"}).Return([][]float32{{0.1, 0.2, 0.3}}, nil)

	client := newTestClient(api, 3)
	got, err := client.EmbedOne(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
}

func TestClient_EmbedOne_EmptyText(t *testing.T) {
	client := newTestClient(&MockEmbeddingAPI{}, 3)

	_, err := client.EmbedOne(context.Background(), "")

	require.ErrorIs(t, err, ErrEmptyText)
}

func TestNewClientWithConfig_DefaultDimensions(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "sk-test"})

	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
}
