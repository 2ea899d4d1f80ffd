package errors

import "fmt"

// ProviderUnavailable creates an error for when a provider backend cannot
// be reached at all (e.g. circuit open, connection refused).
func ProviderUnavailable(cause error) *ReliantError {
	return &ReliantError{
		Category:  CategoryProvider,
		Code:      "provider_unavailable",
		Message:   "provider is unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// ProviderRequestFailed creates an error for a failed provider request.
func ProviderRequestFailed(cause error) *ReliantError {
	return &ReliantError{
		Category:  CategoryProvider,
		Code:      "provider_request_failed",
		Message:   "provider request failed",
		Retryable: true,
		Cause:     cause,
	}
}

// ProviderTimeout creates an error for a provider request that timed out.
func ProviderTimeout(cause error) *ReliantError {
	return &ReliantError{
		Category:  CategoryProvider,
		Code:      "provider_timeout",
		Message:   "provider request timed out",
		Retryable: true,
		Cause:     cause,
	}
}

// ModelNotFound creates an error for a model the provider doesn't recognize.
func ModelNotFound(model string) *ReliantError {
	return &ReliantError{
		Category:  CategoryProvider,
		Code:      "model_not_found",
		Message:   fmt.Sprintf("model %q not found", model),
		Retryable: false,
	}
}

// AllProvidersFailed creates the terminal error for an exhausted fallback
// chain. message is the pre-formatted aggregated attempt log.
func AllProvidersFailed(message string) *ReliantError {
	return &ReliantError{
		Category:  CategoryEngine,
		Code:      "all_providers_failed",
		Message:   message,
		Retryable: false,
	}
}

// ConfigLoadFailed creates an error for a configuration load failure.
func ConfigLoadFailed(path string, cause error) *ReliantError {
	return &ReliantError{
		Category:  CategoryConfig,
		Code:      "config_load_failed",
		Message:   fmt.Sprintf("failed to load config from %q", path),
		Retryable: false,
		Cause:     cause,
	}
}
