package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name:     "status error keeps code",
			appError: StatusError("https://emojipedia.org/grinning-face/", 404),
			want:     "status: unexpected status fetching https://emojipedia.org/grinning-face/: code=404",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "fetch failed",
				Cause:   errors.New("connection reset"),
			},
			want: "connection: fetch failed: cause=connection reset",
		},
		{
			name: "context keys are sorted",
			appError: &AppError{
				Type:    ErrTypeNotFound,
				Message: "data path missing",
				Context: map[string]interface{}{
					"slug":    "grinning-face",
					"attempt": 2,
				},
			},
			want: "not_found: data path missing: context={attempt=2, slug=grinning-face}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := MalformedError("bad payload", cause)

	if appError.Unwrap() != cause {
		t.Errorf("AppError.Unwrap() = %v, want %v", appError.Unwrap(), cause)
	}

	if !errors.Is(appError, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	appError := ValidationError("missing codepoints")

	result := appError.WithContext("slug", "grinning-face")
	if result != appError {
		t.Error("WithContext should return the same instance")
	}

	if appError.Context["slug"] != "grinning-face" {
		t.Errorf("Context[slug] = %v, want grinning-face", appError.Context["slug"])
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", NotFoundError("detail data"))

	if !IsType(wrapped, ErrTypeNotFound) {
		t.Error("IsType should see through fmt.Errorf wrapping")
	}

	if IsType(wrapped, ErrTypeStatus) {
		t.Error("IsType should not match a different type")
	}

	if IsType(nil, ErrTypeNotFound) {
		t.Error("IsType(nil) should be false")
	}

	if IsType(errors.New("plain"), ErrTypeInternal) {
		t.Error("IsType should be false for non-AppError")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}

	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain) = %v, want %v", got, ErrTypeInternal)
	}

	if got := GetType(FatalError("bootstrap failed", nil)); got != ErrTypeFatal {
		t.Errorf("GetType(fatal) = %v, want %v", got, ErrTypeFatal)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NotFoundError("next data"), true},
		{"malformed", MalformedError("bad json", nil), true},
		{"wrapped not found", fmt.Errorf("attempt 1: %w", NotFoundError("x")), true},
		{"status", StatusError("u", 500), false},
		{"connection", ConnectionError("reset", nil), false},
		{"plain", errors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(fmt.Errorf("run: %w", FatalError("registry fetch failed", nil))) {
		t.Error("IsFatal should match wrapped fatal errors")
	}
	if IsFatal(StatusError("u", 404)) {
		t.Error("status errors are not fatal")
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(fmt.Errorf("fetch: %w", StatusError("u", 429))); got != 429 {
		t.Errorf("StatusCode() = %d, want 429", got)
	}
	if got := StatusCode(FatalError("registry fetch failed", StatusError("u", 404))); got != 404 {
		t.Errorf("StatusCode() through a fatal error = %d, want 404", got)
	}
	if got := StatusCode(NotFoundError("x")); got != 0 {
		t.Errorf("StatusCode() on non-status = %d, want 0", got)
	}
	if got := StatusCode(nil); got != 0 {
		t.Errorf("StatusCode(nil) = %d, want 0", got)
	}
}
