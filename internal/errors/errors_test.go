package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndFields(t *testing.T) {
	err := visionerr.New(visionerr.CodeInvalidInput, "bad vector", visionerr.Field("index", 3))

	require.Error(t, err)
	assert.Equal(t, visionerr.CodeInvalidInput, visionerr.CodeOf(err))
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInvalidInput))
	assert.Equal(t, 3, visionerr.FieldsOf(err)["index"])
	assert.Contains(t, err.Error(), "bad vector")
}

func TestDimensionMismatch(t *testing.T) {
	err := visionerr.DimensionMismatch(3, 4)

	assert.True(t, visionerr.HasCode(err, visionerr.CodeDimensionMismatch))
	assert.True(t, visionerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "3 != 4")
}

func TestWrapKeepsCause(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := visionerr.Wrap(inner, visionerr.CodeEmbeddingUpstream, "embed keyframe")

	assert.ErrorIs(t, err, inner)
	assert.True(t, visionerr.IsUpstreamFailure(err))
	assert.Nil(t, visionerr.Wrap(nil, visionerr.CodeEmbeddingUpstream, "noop"))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, visionerr.Code(""), visionerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, visionerr.Code(""), visionerr.CodeOf(nil))
	assert.False(t, visionerr.HasCode(nil, visionerr.CodeInvalidInput))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"dimension mismatch", visionerr.DimensionMismatch(1, 2), http.StatusBadRequest},
		{"invalid input", visionerr.InvalidInput("empty"), http.StatusBadRequest},
		{"insufficient reference", visionerr.New(visionerr.CodeInsufficientReferenceData, "need 2"), http.StatusBadRequest},
		{"insufficient data", visionerr.New(visionerr.CodeInsufficientData, "need 2"), http.StatusBadRequest},
		{"batch too large", visionerr.BatchTooLarge(101, 100), http.StatusBadRequest},
		{"invalid video", visionerr.InvalidVideo("fps %d", 0), http.StatusBadRequest},
		{"not found", visionerr.NotFound("asset", "a1"), http.StatusNotFound},
		{"unauthorized", visionerr.New(visionerr.CodeServerUnauthorized, "no token"), http.StatusUnauthorized},
		{"upstream", visionerr.New(visionerr.CodeEmbeddingUpstream, "502"), http.StatusBadGateway},
		{"frame failure", visionerr.New(visionerr.CodeFrameSourceFailure, "decode"), http.StatusInternalServerError},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, visionerr.HTTPStatus(tt.err))
		})
	}
}
