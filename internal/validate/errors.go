package validate

import "fmt"

// FieldError reports the first input field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Field(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}
