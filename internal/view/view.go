package view

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Response is the envelope every HTTP endpoint answers with.
type Response[T any] struct {
	Data    T            `json:"data"`
	Error   *string      `json:"error,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Message string       `json:"message,omitempty"`
}

type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// ErrorResponse is the documented shape of a failed call.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Errors  []FieldError `json:"errors,omitempty"`
	Message string       `json:"message"`
}

// MessageResponse is the documented shape of a call that only acknowledges.
type MessageResponse struct {
	Data    string `json:"data"`
	Message string `json:"message,omitempty"`
}

func CreateResponse[T any](data T, err error, req interface{}, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Message: message,
	}
	if err == nil {
		return resp
	}

	msg := err.Error()
	resp.Error = &msg

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		resp.Errors = make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			resp.Errors = append(resp.Errors, FieldError{
				Field: fe.Field(),
				Msg:   validationMessage(fe),
			})
		}
	}
	return resp
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "eth_addr":
		return "must be a valid address"
	default:
		return "is invalid"
	}
}
