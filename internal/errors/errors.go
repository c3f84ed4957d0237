package errors

import "errors"

var (
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	ErrUnsupportedArtifactType  = errors.New("unsupported artifact type")
	ErrMalformedResourceURI     = errors.New("malformed resource uri")
	ErrStackNotFound            = errors.New("stack not found")
	ErrNoEventRecords           = errors.New("event contains no records")
	ErrNamespaceRequired        = errors.New("namespace is required")
	ErrInvalidConfig            = errors.New("invalid configuration")
)
