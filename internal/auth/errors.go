package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the user never approved the device code in time
	ErrTimeout = errors.New("github authorization timed out")

	// ErrFlowNotFound means no login flow has the requested ID
	ErrFlowNotFound = errors.New("login flow not found")

	errMissingClientID = errors.New("github client id not configured in registry")
)

// ConfigError means the registry could not provide the OAuth client ID
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("failed to get github client id from registry: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DeviceCodeError means GitHub refused to issue a device code
type DeviceCodeError struct {
	Err error
}

func (e *DeviceCodeError) Error() string {
	return fmt.Sprintf("failed to request device code from github: %v", e.Err)
}

func (e *DeviceCodeError) Unwrap() error { return e.Err }

// AuthorizationError is a terminal error code returned while polling
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	return "github authorization failed: " + e.Code
}

// IdentityFetchError means the GitHub user lookup failed
type IdentityFetchError struct {
	Status int
	Err    error
}

func (e *IdentityFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get github user info: %v", e.Err)
	}
	return fmt.Sprintf("failed to get github user info: HTTP %d", e.Status)
}

func (e *IdentityFetchError) Unwrap() error { return e.Err }

// ExchangeError means the registry would not trade the GitHub token
type ExchangeError struct {
	Status     int
	StatusText string
	// Message is the registry's own explanation, preferred when present
	Message string
	Err     error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	default:
		return "token exchange failed: " + e.StatusText
	}
}

func (e *ExchangeError) Unwrap() error { return e.Err }
