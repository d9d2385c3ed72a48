package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
	"github.com/rpggio/cinequery/internal/domain/query"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Codes for failures raised by the transport itself.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeInternal     = "INTERNAL"
)

// StatusClientClosedRequest is reported for requests canceled by the caller.
const StatusClientClosedRequest = 499

const msgInternal = "Internal server error."

// queryResponse is the success envelope of /query.
type queryResponse struct {
	Status          string                 `json:"status"`
	Query           string                 `json:"query"`
	Data            []movie.Movie          `json:"data"`
	Answer          string                 `json:"answer"`
	RequestID       string                 `json:"request_id"`
	StructuredQuery *query.StructuredQuery `json:"structured_query,omitempty"`
	Matched         int                    `json:"matched"`
	Degraded        bool                   `json:"degraded,omitempty"`
	DatasetVersion  string                 `json:"dataset_version,omitempty"`
}

func newQueryResponse(resp *pipeline.Response) queryResponse {
	data := resp.Movies
	if data == nil {
		data = []movie.Movie{}
	}
	q := resp.Query
	return queryResponse{
		Status:          statusSuccess,
		Query:           resp.Question,
		Data:            data,
		Answer:          resp.Answer,
		RequestID:       resp.RequestID,
		StructuredQuery: &q,
		Matched:         resp.Matched,
		Degraded:        resp.Degraded,
		DatasetVersion:  resp.DatasetVersion,
	}
}

// errorBody is the failure envelope shared by all routes.
type errorBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	LLMOutput string `json:"llm_output,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPStatus maps a pipeline failure code to its HTTP status.
func HTTPStatus(code pipeline.Code) int {
	switch code {
	case pipeline.CodeInvalidRequest:
		return http.StatusBadRequest
	case pipeline.CodeTranslationFailure:
		return http.StatusBadGateway
	case pipeline.CodeNetworkFailure:
		return http.StatusGatewayTimeout
	case pipeline.CodeExecutionFault:
		return http.StatusServiceUnavailable
	case pipeline.CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorFor converts err into a status and envelope. Only pipeline messages
// reach the caller; anything else is reported as an internal error.
func errorFor(err error) (int, errorBody) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, errorBody{Message: msgInternal, Code: codeInternal}
	}
	return HTTPStatus(pe.Code), errorBody{
		Message:   pe.Message,
		LLMOutput: pe.LLMOutput,
		Code:      string(pe.Code),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	body.Status = statusError
	if body.RequestID == "" {
		body.RequestID, _ = RequestIDFromContext(r.Context())
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
