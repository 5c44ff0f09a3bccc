package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/TWLS151/Soootudy-sub000/internal/artifact"
	"github.com/TWLS151/Soootudy-sub000/internal/auth"
	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/surface"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var errSessionNotFound = errors.New("session not found")

// FieldError is one failed input rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fields := make([]FieldError, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid input", fields
	}
	switch {
	case errors.Is(err, commentclient.ErrEmptyContent),
		errors.Is(err, commentclient.ErrInvalidAnchor),
		errors.Is(err, commentclient.ErrUnknownEmoji),
		errors.Is(err, commentclient.ErrNoAuthor):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", rootMessage(err), nil
	case errors.Is(err, commentclient.ErrCreateFailed):
		return http.StatusBadGateway, "POST_FAILED", "failed to post", nil
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, backend.ErrNotFound),
		errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, surface.ErrNoComposer):
		return http.StatusConflict, "NO_COMPOSER", "No composer is open", nil
	case errors.Is(err, surface.ErrUnmounted):
		return http.StatusGone, "SESSION_CLOSED", "Session is closed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// rootMessage is the innermost error's text, without the wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
