package response

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the uniform JSON envelope returned by the API.
type Response struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
	Details    []any  `json:"details,omitempty"`
	Data       any    `json:"data,omitempty"`
}

var EmptyRequestBodyResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusBadRequest,
	Error:      "Empty Request Body",
	Message:    "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusBadRequest,
	Error:      "Bad Request",
	Message:    "The request couldn't be processed. Please check your input.",
}

var ResourceNotFoundResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusNotFound,
	Error:      "Resource Not Found",
	Message:    "The requested resource was not found.",
}

var ServerErrorResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusInternalServerError,
	Error:      "Server Error",
	Message:    "An internal server error occurred. Please try again later.",
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ValidationErrorResponse builds a 400 response listing each failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:     StatusError,
		StatusCode: http.StatusBadRequest,
		Error:      "Validation Error",
		Message:    "The request contains invalid data.",
	}

	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			resp.Details = append(resp.Details, map[string]string{
				"field": verr.Field(),
				"rule":  verr.Tag(),
			})
		}
	}

	return resp
}
