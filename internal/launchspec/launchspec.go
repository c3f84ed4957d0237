// Package launchspec turns the parameters stored under a namespace into the
// properties file and command line used to start the application.
package launchspec

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/batch-provisioner/internal/resource"
)

const (
	// EventData points at the data file the application processes
	EventData = "event-data"
	// EventResource points at the artifact that triggered provisioning
	EventResource = "event-resource"
	// DatafilePath is the argument the application reads its data file from
	DatafilePath = "datafile-path"
	// Email is the notification address; it is never passed to the application
	Email = "email"

	// PropertiesPath is where the properties file is written, relative to the
	// working directory of the application
	PropertiesPath = "./application.properties"
)

// reserved parameters are never emitted as arguments
var reserved = map[string]struct{}{
	EventResource: {},
	DatafilePath:  {},
	Email:         {},
}

// LaunchSpec is what a process launcher needs to start the application
type LaunchSpec struct {
	PropertiesText string            `json:"properties_text"`
	CmdlineArgs    string            `json:"cmdline_args"`
	Args           []string          `json:"args"`
	DataFile       resource.Location `json:"data_file"`
}

// Build derives the LaunchSpec for params. params must contain EventData.
func Build(params models.Parameters) (LaunchSpec, error) {
	eventData, ok := params.Lookup(EventData)
	if !ok {
		return LaunchSpec{}, fmt.Errorf("%w: %s", errors.ErrMissingRequiredParameter, EventData)
	}

	dataFile, err := resource.Parse(eventData)
	if err != nil {
		return LaunchSpec{}, fmt.Errorf("failed to parse %s: %w", EventData, err)
	}

	var args []string
	for _, p := range params {
		if _, skip := reserved[p.Name]; skip {
			continue
		}
		if p.Name == EventData {
			args = append(args, fmt.Sprintf("--%s=./%s", DatafilePath, dataFile.Filename))
			continue
		}
		args = append(args, fmt.Sprintf("--%s=%s", p.Name, p.Value))
	}

	return LaunchSpec{
		PropertiesText: WriteProperties(params),
		CmdlineArgs:    strings.Join(args, " "),
		Args:           args,
		DataFile:       dataFile,
	}, nil
}

// WriteProperties renders params as key=value lines in order. Values are
// written verbatim.
func WriteProperties(params models.Parameters) string {
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(p.Name)
		sb.WriteString("=")
		sb.WriteString(p.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParseProperties reads key=value lines. Blank lines and lines starting with
// '#' or '!' are skipped; everything after the first '=' is the value.
func ParseProperties(text string) (models.Parameters, error) {
	var params models.Parameters

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key=value, got %q", n, line)
		}
		params = params.Set(strings.TrimSpace(name), value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read properties: %w", err)
	}

	return params, nil
}
