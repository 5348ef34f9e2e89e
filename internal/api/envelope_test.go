package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/listenupapp/articlevault/internal/errors"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{"success response", "200", map[string]string{"key": "value"}},
		{"created response", "201", map[string]int64{"id": 1}},
		{"no content response", "204", nil},
		{"plain error", "400", errors.New("invalid input")},
		{"coded api error", "409", &APIError{Code: "CONFLICT", Message: "busy"}},
		{"domain error", "404", apperr.NotFound("article not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			raw, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(raw, &envelope))

			require.Contains(t, envelope, "v")
			assert.InDelta(t, float64(EnvelopeVersion), envelope["v"], 0)
			assert.NotContains(t, envelope, "version")
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"title": "Go 语言"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")
	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)
}

func TestEnvelopeTransformer_ErrorResponse(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", errors.New("validation failed"))
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")
	assert.False(t, envelope.Success)
	assert.Nil(t, envelope.Data)
	assert.Equal(t, "validation failed", envelope.Error)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", &APIError{
		Code:    "VALIDATION",
		Message: "validation failed",
		Details: map[string]string{"urls": "is required"},
	})
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok, "Expected APIErrorEnvelope type")
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION", envelope.Code)
	assert.Equal(t, map[string]string{"urls": "is required"}, envelope.Details)
}

func TestEnvelopeTransformer_DomainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "422", apperr.ContentInvalid("no title"))
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok)
	assert.Equal(t, "CONTENT_INVALID", envelope.Code)
	assert.Equal(t, "no title", envelope.Message)
}

func TestRegisterErrorHandler(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		name       string
		status     int
		errs       []error
		wantStatus int
		wantCode   string
	}{
		{"domain error wins", http.StatusInternalServerError, []error{apperr.Conflict("busy")}, http.StatusConflict, "CONFLICT"},
		{"huma validation", http.StatusUnprocessableEntity, []error{&huma.ErrorDetail{Location: "body.urls", Message: "expected array length >= 1"}}, http.StatusBadRequest, "VALIDATION"},
		{"plain not found", http.StatusNotFound, nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", http.StatusInternalServerError, []error{errors.New("boom")}, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := huma.NewError(tt.status, "message", tt.errs...)

			apiErr, ok := se.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestRegisterErrorHandler_ValidationDetails(t *testing.T) {
	RegisterErrorHandler()

	se := huma.NewError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.urls", Message: "expected array length >= 1"},
		&huma.ErrorDetail{Location: "query.limit", Message: "expected number <= 50"},
	)

	apiErr, ok := se.(*APIError)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"urls":        "expected array length >= 1",
		"query.limit": "expected number <= 50",
	}, apiErr.Details)
}
