package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/launchspec"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/batch-provisioner/internal/stackid"
)

const (
	defaultTemplateKey    = "template.yml"
	defaultParamsKey      = "params.yml"
	defaultTimeoutMinutes = 15
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	TemplateBucket string
	TemplateKey    string
	ParamsKey      string
	BootstrapPath  string
	LaunchTable    string
	TimeoutMinutes int32
}

func (c *Config) setDefaults() {
	if c.TemplateKey == "" {
		c.TemplateKey = defaultTemplateKey
	}
	if c.ParamsKey == "" {
		c.ParamsKey = defaultParamsKey
	}
	if c.TimeoutMinutes <= 0 {
		c.TimeoutMinutes = defaultTimeoutMinutes
	}
}

// Validate reports settings without a usable default. Call after loading.
func (c *Config) Validate() error {
	var missing []string
	if c.TemplateBucket == "" {
		missing = append(missing, "template-bucket")
	}
	if c.BootstrapPath == "" {
		missing = append(missing, "bootstrap-path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errors.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// SSMAPI is the subset of the SSM client used by SSMParameterStore
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)

	// GetParametersByPath returns the parameters directly under namespace with
	// the namespace prefix removed from each name
	GetParametersByPath(ctx context.Context, namespace string) (models.Parameters, error)

	// PutParameter creates or overwrites a String parameter
	PutParameter(ctx context.Context, name, value string) error
}

// VerifyNamespace fails with ErrMissingRequiredParameter unless event-data
// exists directly under namespace
func VerifyNamespace(ctx context.Context, store ParameterStore, namespace string) error {
	params, err := store.GetParametersByPath(ctx, namespace)
	if err != nil {
		return fmt.Errorf("unable to verify namespace %s: %w", namespace, err)
	}
	if _, ok := params.Lookup(launchspec.EventData); !ok {
		return fmt.Errorf("%w: %s exists, but %s was not found", errors.ErrMissingRequiredParameter, namespace, launchspec.EventData)
	}
	return nil
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	namespace := fmt.Sprintf("/%s/batch-provisioner/", s.env)

	params, err := s.GetParametersByPath(ctx, namespace)
	if err != nil {
		return nil, err
	}

	config := &Config{
		TemplateBucket: params.Get("template-bucket"),
		TemplateKey:    params.Get("template-key"),
		ParamsKey:      params.Get("params-key"),
		BootstrapPath:  params.Get("bootstrap-path"),
		LaunchTable:    params.Get("launch-table"),
	}
	if v := params.Get("timeout-minutes"); v != "" {
		timeout, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout-minutes %q: %w", v, err)
		}
		config.TimeoutMinutes = int32(timeout)
	}
	config.setDefaults()

	return config, nil
}

// GetParametersByPath pages through every parameter directly under namespace
func (s *SSMParameterStore) GetParametersByPath(ctx context.Context, namespace string) (models.Parameters, error) {
	namespace = stackid.NormalizeNamespace(namespace)

	paginator := ssm.NewGetParametersByPathPaginator(s.client, &ssm.GetParametersByPathInput{
		Path:           aws.String(searchPath(namespace)),
		Recursive:      aws.Bool(false),
		WithDecryption: aws.Bool(true),
	})

	var params models.Parameters
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", namespace, err)
		}
		params = appendStripped(params, namespace, page.Parameters)
	}

	s.mu.Lock()
	for _, p := range params {
		s.cache[namespace+p.Name] = p.Value
	}
	s.mu.Unlock()

	return params, nil
}

// PutParameter writes a String parameter, overwriting any existing value
func (s *SSMParameterStore) PutParameter(ctx context.Context, name, value string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to put parameter %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return nil
}

// searchPath returns the path form SSM expects; only the root keeps its
// trailing separator
func searchPath(namespace string) string {
	if namespace == "/" {
		return namespace
	}
	return strings.TrimSuffix(namespace, "/")
}

func appendStripped(params models.Parameters, namespace string, found []types.Parameter) models.Parameters {
	for _, param := range found {
		if param.Name == nil || param.Value == nil {
			continue
		}
		name := strings.TrimPrefix(aws.ToString(param.Name), namespace)
		params = append(params, models.Parameter{Name: name, Value: aws.ToString(param.Value)})
	}
	return params
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection.
// Namespaced parameters live in memory for the life of the process.
type EnvParameterStore struct {
	env    string
	mu     sync.Mutex
	params models.Parameters
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from memory, falling back to environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.params.Lookup(name); ok {
		return v, nil
	}
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		TemplateBucket: os.Getenv("TEMPLATE_BUCKET"),
		TemplateKey:    os.Getenv("TEMPLATE_KEY"),
		ParamsKey:      os.Getenv("PARAMS_KEY"),
		BootstrapPath:  os.Getenv("BOOTSTRAP_PATH"),
		LaunchTable:    os.Getenv("LAUNCH_TABLE"),
	}
	if v := os.Getenv("TIMEOUT_MINUTES"); v != "" {
		timeout, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEOUT_MINUTES %q: %w", v, err)
		}
		config.TimeoutMinutes = int32(timeout)
	}
	config.setDefaults()

	return config, nil
}

// GetParametersByPath returns the in-memory parameters directly under namespace
func (e *EnvParameterStore) GetParametersByPath(ctx context.Context, namespace string) (models.Parameters, error) {
	namespace = stackid.NormalizeNamespace(namespace)

	e.mu.Lock()
	defer e.mu.Unlock()

	var params models.Parameters
	for _, p := range e.params {
		name, ok := strings.CutPrefix(p.Name, namespace)
		if !ok || name == "" || strings.Contains(name, "/") {
			continue
		}
		params = append(params, models.Parameter{Name: name, Value: p.Value})
	}
	return params, nil
}

// PutParameter stores the parameter in memory
func (e *EnvParameterStore) PutParameter(ctx context.Context, name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params = e.params.Set(name, value)
	return nil
}
