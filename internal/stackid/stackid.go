// Package stackid derives a stack name and parameter namespace from the
// object key of an uploaded artifact.
//
// For example, the key some/prefix/project-1.1.1.jar yields the stack name
// project-111 and the namespace /some/prefix/. Dots are removed from the name
// because stack names may not contain them.
package stackid

import (
	"fmt"
	"strings"

	"github.com/savaki/batch-provisioner/internal/errors"
)

// ArtifactExtension is the only artifact type that triggers provisioning
const ArtifactExtension = ".jar"

// EventResource is the parameter, relative to a namespace, that records the
// artifact which triggered provisioning
const EventResource = "event-resource"

// Identity is the stack name and namespace derived from an object key
type Identity struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Derive returns the Identity for key. Keys that do not end in
// ArtifactExtension fail with ErrUnsupportedArtifactType.
func Derive(key string) (Identity, error) {
	if !strings.HasSuffix(key, ArtifactExtension) {
		return Identity{}, fmt.Errorf("%w: %s, expected a %s artifact", errors.ErrUnsupportedArtifactType, key, ArtifactExtension)
	}

	key = normalize(key)

	i := strings.LastIndex(key, "/") + 1
	stem := key[i : len(key)-len(ArtifactExtension)]
	name := strings.ReplaceAll(stem, ".", "")
	if name == "" {
		return Identity{}, fmt.Errorf("%w: %s has an empty artifact name", errors.ErrUnsupportedArtifactType, key)
	}

	return Identity{
		Name:      name,
		Namespace: NormalizeNamespace(key[:i]),
	}, nil
}

// NormalizeNamespace forces ns to start and end with a single "/" and
// collapses repeated separators. An empty namespace becomes "/".
func NormalizeNamespace(ns string) string {
	ns = strings.Trim(normalize(ns), "/")
	if ns == "" {
		return "/"
	}
	return "/" + ns + "/"
}

// ParameterName joins a namespace and a name relative to it
func ParameterName(namespace, name string) string {
	sep := "/"
	if strings.HasSuffix(namespace, "/") {
		sep = ""
	}
	return namespace + sep + strings.TrimPrefix(name, "/")
}

// EventResourceParameter returns the fully qualified event-resource parameter
// name for namespace
func EventResourceParameter(namespace string) string {
	return ParameterName(namespace, EventResource)
}

// normalize strips a leading "/" and collapses "//" runs
func normalize(key string) string {
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return strings.TrimPrefix(key, "/")
}
