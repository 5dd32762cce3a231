package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeInvalidURL         ErrorCode = "INVALID_URL"
	ErrorCodeDownloadInProgress ErrorCode = "DOWNLOAD_IN_PROGRESS"
	ErrorCodeDownloadNotFound   ErrorCode = "DOWNLOAD_NOT_FOUND"
	ErrorCodeDownloadNotRunning ErrorCode = "DOWNLOAD_NOT_RUNNING"
	ErrorCodeFileNotFound       ErrorCode = "FILE_NOT_FOUND"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError    ErrorCode = "VALIDATION_ERROR"
)

type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

func NewErrorWithDetails(code ErrorCode, message string, statusCode int, details map[string]interface{}) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// AsAppError unwraps err into an *AppError when it carries one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Common error constructors
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return NewErrorWithDetails(ErrorCodeValidationError, message, http.StatusBadRequest, details)
}

func NewInvalidURLError(link string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeInvalidURL,
		"Please enter a valid YouTube URL.",
		http.StatusBadRequest,
		map[string]interface{}{
			"expected_format": "https://www.youtube.com/watch?v=VIDEO_ID",
			"provided":        link,
		},
	)
}

func NewDownloadInProgressError(jobID string) *AppError {
	return NewErrorWithDetails(
		ErrorCodeDownloadInProgress,
		"Download already in progress",
		http.StatusConflict,
		map[string]interface{}{
			"active_id": jobID,
		},
	)
}

func NewDownloadNotFoundError(jobID string) *AppError {
	return NewError(
		ErrorCodeDownloadNotFound,
		fmt.Sprintf("Download with ID %s not found", jobID),
		http.StatusNotFound,
	)
}

func NewDownloadNotRunningError(jobID string) *AppError {
	return NewError(
		ErrorCodeDownloadNotRunning,
		fmt.Sprintf("Download %s is not running", jobID),
		http.StatusConflict,
	)
}

func NewFileNotFoundError(name string) *AppError {
	return NewError(
		ErrorCodeFileNotFound,
		fmt.Sprintf("File %s not found", name),
		http.StatusNotFound,
	)
}

func NewInternalError() *AppError {
	return NewError(
		ErrorCodeInternalError,
		"An unexpected error occurred",
		http.StatusInternalServerError,
	)
}
