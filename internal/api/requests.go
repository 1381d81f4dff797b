package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ProviderCredentialRequest is the payload for PUT /v1/me/provider-credential.
type ProviderCredentialRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// Validate checks the request fields.
func (r ProviderCredentialRequest) Validate() error {
	return describe(validate.Struct(r))
}

// listQuery holds the query parameters shared by the list endpoints.
type listQuery struct {
	Limit int `validate:"gte=0,lte=100"`
	Days  int `validate:"gte=0,lte=366"`
}

func (q listQuery) Validate() error {
	return describe(validate.Struct(q))
}

// describe flattens validator errors into a single client-facing message.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}
