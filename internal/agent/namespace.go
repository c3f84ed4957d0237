package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/stackid"
)

// NamespaceEnv is the environment variable consulted when no namespace flag
// is given
const NamespaceEnv = "namespace"

// Boot holds the values the instance user data writes to the namespace file
type Boot struct {
	Namespace string
	Name      string
}

// ParseNamespaceFile reads the name=value lines written at boot. Later lines
// win; unknown keys are ignored.
func ParseNamespaceFile(r io.Reader) (Boot, error) {
	var boot Boot

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "namespace":
			boot.Namespace = strings.TrimSpace(value)
		case "name":
			boot.Name = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Boot{}, fmt.Errorf("failed to read namespace file: %w", err)
	}

	return boot, nil
}

// ResolveNamespace picks the namespace from, in order, the explicit value,
// the namespace environment variable and the namespace file. Name is only
// known when the namespace file is used.
func ResolveNamespace(explicit, namespaceFile string) (Boot, error) {
	if explicit != "" {
		return Boot{Namespace: stackid.NormalizeNamespace(explicit)}, nil
	}
	if v := os.Getenv(NamespaceEnv); v != "" {
		return Boot{Namespace: stackid.NormalizeNamespace(v)}, nil
	}
	if namespaceFile == "" {
		return Boot{}, errors.ErrNamespaceRequired
	}

	f, err := os.Open(namespaceFile)
	if err != nil {
		return Boot{}, fmt.Errorf("%w: %w", errors.ErrNamespaceRequired, err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	boot, err := ParseNamespaceFile(f)
	if err != nil {
		return Boot{}, err
	}
	if boot.Namespace == "" {
		return Boot{}, fmt.Errorf("%w: no namespace entry in %s", errors.ErrNamespaceRequired, namespaceFile)
	}
	boot.Namespace = stackid.NormalizeNamespace(boot.Namespace)

	return boot, nil
}
