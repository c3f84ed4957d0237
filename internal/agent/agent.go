// Package agent starts the batch application on a provisioned instance using
// the parameters stored under its namespace.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/launchspec"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/batch-provisioner/internal/resource"
	"github.com/savaki/batch-provisioner/internal/services"
)

// DefaultJava is the java executable looked up on PATH
const DefaultJava = "java"

type ParameterReader interface {
	GetParametersByPath(ctx context.Context, namespace string) (models.Parameters, error)
}

type Downloader interface {
	Download(ctx context.Context, loc resource.Location, dir string) (string, error)
}

type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

type InstanceDescriber interface {
	Describe(ctx context.Context) (*services.Instance, error)
}

type Config struct {
	Namespace string
	Name      string // stack name, when known
	WorkDir   string
	Java      string
}

type Agent struct {
	params   ParameterReader
	objects  Downloader
	runner   Runner
	instance InstanceDescriber
	config   Config
}

// New returns an Agent. instance may be nil when not running on EC2.
func New(params ParameterReader, objects Downloader, runner Runner, instance InstanceDescriber, config Config) *Agent {
	if config.Java == "" {
		config.Java = DefaultJava
	}
	if config.WorkDir == "" {
		config.WorkDir = "."
	}
	return &Agent{
		params:   params,
		objects:  objects,
		runner:   runner,
		instance: instance,
		config:   config,
	}
}

// Prepare fetches the namespace parameters, stages the data file and the
// application jar in the work dir and writes the properties file. It returns
// the launch spec and the local path of the jar.
func (a *Agent) Prepare(ctx context.Context) (launchspec.LaunchSpec, string, error) {
	logger := zerolog.Ctx(ctx).With().Str("namespace", a.config.Namespace).Logger()

	params, err := a.params.GetParametersByPath(ctx, a.config.Namespace)
	if err != nil {
		return launchspec.LaunchSpec{}, "", err
	}

	spec, err := launchspec.Build(params)
	if err != nil {
		return launchspec.LaunchSpec{}, "", err
	}

	eventResource, ok := params.Lookup(launchspec.EventResource)
	if !ok {
		return launchspec.LaunchSpec{}, "", fmt.Errorf("%w: %s", errors.ErrMissingRequiredParameter, launchspec.EventResource)
	}
	artifact, err := resource.Parse(eventResource)
	if err != nil {
		return launchspec.LaunchSpec{}, "", fmt.Errorf("failed to parse %s: %w", launchspec.EventResource, err)
	}

	logger.Info().
		Strs("parameters", params.Names()).
		Str("data_file", spec.DataFile.URI()).
		Str("artifact", artifact.URI()).
		Msg("Resolved launch spec")

	if err := os.MkdirAll(a.config.WorkDir, 0o755); err != nil {
		return launchspec.LaunchSpec{}, "", fmt.Errorf("failed to create work dir: %w", err)
	}

	if _, err := a.objects.Download(ctx, spec.DataFile, a.config.WorkDir); err != nil {
		return launchspec.LaunchSpec{}, "", err
	}

	jar, err := a.objects.Download(ctx, artifact, a.config.WorkDir)
	if err != nil {
		return launchspec.LaunchSpec{}, "", err
	}

	propertiesPath := filepath.Join(a.config.WorkDir, launchspec.PropertiesPath)
	if err := os.WriteFile(propertiesPath, []byte(spec.PropertiesText), 0o644); err != nil {
		return launchspec.LaunchSpec{}, "", fmt.Errorf("failed to write %s: %w", propertiesPath, err)
	}

	return spec, jar, nil
}

// Run prepares the work dir and runs the application to completion
func (a *Agent) Run(ctx context.Context) error {
	if a.config.Name != "" {
		ctx = zerolog.Ctx(ctx).With().Str("stack", a.config.Name).Logger().WithContext(ctx)
	}
	logger := zerolog.Ctx(ctx)

	if a.instance != nil {
		if instance, err := a.instance.Describe(ctx); err != nil {
			logger.Warn().Err(err).Msg("Instance metadata unavailable")
		} else {
			logger.Info().
				Str("instance_id", instance.InstanceID).
				Str("region", instance.Region).
				Str("availability_zone", instance.AvailabilityZone).
				Msg("Running on instance")
		}
	}

	spec, jar, err := a.Prepare(ctx)
	if err != nil {
		return err
	}

	args := append([]string{"-jar", filepath.Base(jar)}, spec.Args...)
	logger.Info().
		Str("java", a.config.Java).
		Str("dir", a.config.WorkDir).
		Str("cmdline", spec.CmdlineArgs).
		Msg("Starting application")

	if err := a.runner.Run(ctx, a.config.WorkDir, a.config.Java, args...); err != nil {
		return err
	}

	logger.Info().Msg("Application completed")
	return nil
}
