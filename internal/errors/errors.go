// Package errors provides coded errors shared by the analytics packages and the HTTP layer.
// Codes follow "domain.area.reason"; the reason segment drives classification.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeDimensionMismatch         Code = "vector.dimension_mismatch"
	CodeInvalidInput              Code = "input.invalid"
	CodeInsufficientReferenceData Code = "anomaly.reference.insufficient"
	CodeInsufficientData          Code = "cluster.data.insufficient"
	CodeBatchTooLarge             Code = "batch.size.too_large"
	CodeInvalidVideo              Code = "video.invalid"

	CodeStoreNotFound        Code = "store.not_found"
	CodeStoreDatabase        Code = "store.database.failure"
	CodeEmbeddingUpstream    Code = "embedding.upstream.failure"
	CodeFrameSourceFailure   Code = "video.frame.failure"
	CodeServerUnauthorized   Code = "server.auth.unauthorized"
	CodeServerInternal       Code = "server.internal.failure"
	CodeServerRequestInvalid Code = "server.request.invalid"
)

// Attr is a structured key/value attached to an error.
type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// DimensionMismatch reports two vectors of different length.
func DimensionMismatch(a, b int) error {
	return New(CodeDimensionMismatch, fmt.Sprintf("dimension mismatch: %d != %d", a, b),
		Field("dim_a", a), Field("dim_b", b))
}

func InvalidInput(format string, args ...any) error {
	return Errorf(CodeInvalidInput, format, args...)
}

func BatchTooLarge(size, limit int) error {
	return New(CodeBatchTooLarge, fmt.Sprintf("batch size %d exceeds maximum %d", size, limit),
		Field("size", size), Field("limit", limit))
}

func InvalidVideo(format string, args ...any) error {
	return Errorf(CodeInvalidVideo, format, args...)
}

func NotFound(kind, id string) error {
	return New(CodeStoreNotFound, kind+" not found", Field("kind", kind), Field("id", id))
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	switch reason(CodeOf(err)) {
	case "invalid", "dimension_mismatch", "insufficient", "too_large":
		return true
	}
	return false
}

func IsUnauthorized(err error) bool {
	return reason(CodeOf(err)) == "unauthorized"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		return http.StatusUnauthorized
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternal).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
