package session

import (
	"errors"
	"strings"

	apperrors "chat-sync/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "required" only rejects the zero value; a whitespace-only sender or
	// message is just as empty for the chat.
	err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		panic(err)
	}
	return v
}

// SendRequest is what a send must look like before the store is touched:
// a non-blank sender label and non-blank content.
type SendRequest struct {
	Sender  string `validate:"required,notblank"`
	Content string `validate:"required,notblank"`
}

func validateSender(sender string) error {
	if err := validate.Var(sender, "required,notblank"); err != nil {
		return apperrors.ErrEmptySender
	}
	return nil
}

// validateSend rejects blank input before any store interaction. Tag
// failures are mapped onto the package sentinels so callers can match
// them with errors.Is.
func validateSend(sender, content string) error {
	err := validate.Struct(SendRequest{Sender: sender, Content: content})
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, field := range fields {
			switch field.Field() {
			case "Sender":
				return apperrors.ErrEmptySender
			case "Content":
				return apperrors.ErrEmptyContent
			}
		}
	}
	return err
}
