package relay

import "net/http"

const SuccessMessage = "query executed successfully"

// Response is returned to the invoking platform on success only.
type Response struct {
	StatusCode  int    `json:"statusCode"`
	Body        string `json:"body"`
	ExecutionID string `json:"executionId,omitempty"`
}

func SuccessResponse(outcome Outcome) Response {
	return Response{
		StatusCode:  http.StatusOK,
		Body:        SuccessMessage,
		ExecutionID: outcome.ExecutionID,
	}
}
