package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/http/response"
)

// EnvelopeVersion is the version of the response envelope format.
const EnvelopeVersion = response.Version

// APIEnvelope wraps every JSON response body.
type APIEnvelope = response.Envelope //nolint:revive // API prefix is intentional for clarity

// APIErrorEnvelope wraps coded errors.
type APIErrorEnvelope = response.ErrorEnvelope //nolint:revive // API prefix is intentional for clarity

// EnvelopeTransformer wraps huma response bodies in the envelope. Coded
// errors keep code, message and details; other errors collapse to a string.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *apperr.Error:
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    string(body.Code),
			Message: body.Message,
			Details: body.Details,
		}, nil
	case *APIError:
		if body.Code == "" {
			return APIEnvelope{Version: EnvelopeVersion, Error: body.Message}, nil
		}
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case error:
		return APIEnvelope{Version: EnvelopeVersion, Error: body.Error()}, nil
	}

	code, err := strconv.Atoi(status)
	success := err != nil || code < 400

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: success,
		Data:    v,
	}, nil
}
