// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrConfiguration indicates a fatal setup problem (missing or weak signing secret,
// invalid thresholds). It is raised before any agent work begins and must not be retried.
var ErrConfiguration = errors.New("configuration error")

// ErrCertificate indicates an agent certificate failed validation at registration.
var ErrCertificate = errors.New("agent certificate validation failed")

// ErrSignature indicates a stored signature no longer matches its payload.
var ErrSignature = errors.New("signature verification failed")

// ErrAgentNotRegistered indicates the referenced agent id is unknown.
var ErrAgentNotRegistered = errors.New("agent not registered")

// ErrUnknownChangeType indicates no consensus policy exists for the change type.
var ErrUnknownChangeType = errors.New("unknown change type")

// ErrInvalidRequest indicates a malformed orchestration request.
var ErrInvalidRequest = errors.New("invalid request")
