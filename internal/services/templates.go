package services

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/savaki/batch-provisioner/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	// InstanceNameParameter tags the provisioned instance with the stack name
	InstanceNameParameter = "InstanceName"
	// InstanceUserDataParameter carries the base64 boot script
	InstanceUserDataParameter = "InstanceUserData"

	// BatchDir is where the boot script stages the agent and namespace file
	BatchDir = "/batch-processing"
	// NamespaceFile records the namespace for the agent
	NamespaceFile = BatchDir + "/namespace"
	// AgentBinary is the agent executable name inside the bootstrap path
	AgentBinary = "batch-provisioner"
)

// ParseTemplateParameters decodes a params.yml (or JSON) document holding a
// list of ParameterKey/ParameterValue pairs. The template body itself is never
// parsed since intrinsic function tags like !Ref are not standard YAML.
func ParseTemplateParameters(body string) ([]models.TemplateParameter, error) {
	var params []models.TemplateParameter
	if err := yaml.Unmarshal([]byte(body), &params); err != nil {
		return nil, fmt.Errorf("failed to parse template parameters: %w", err)
	}
	return params, nil
}

// WithInstanceParameters returns params with InstanceName and
// InstanceUserData set, replacing any values already present
func WithInstanceParameters(params []models.TemplateParameter, name, userData string) []models.TemplateParameter {
	extra := map[string]string{
		InstanceNameParameter:     name,
		InstanceUserDataParameter: userData,
	}

	out := make([]models.TemplateParameter, 0, len(params)+len(extra))
	for _, p := range params {
		if _, ok := extra[p.ParameterKey]; ok {
			continue
		}
		out = append(out, p)
	}
	return append(out,
		models.TemplateParameter{ParameterKey: InstanceNameParameter, ParameterValue: name},
		models.TemplateParameter{ParameterKey: InstanceUserDataParameter, ParameterValue: userData},
	)
}

// UserDataScript is the boot script run by the provisioned instance. It
// records the namespace, fetches the agent from bootstrapPath (bucket/prefix)
// and starts it in the background.
func UserDataScript(bootstrapPath, name, namespace string) string {
	bootstrapPath = strings.Trim(strings.TrimPrefix(bootstrapPath, "s3://"), "/")

	lines := []string{
		"#!/bin/sh",
		"yum update -y",
		fmt.Sprintf("mkdir -p %s && cd %s && touch %s", BatchDir, BatchDir, NamespaceFile),
		fmt.Sprintf("echo namespace=%s >> %s", namespace, NamespaceFile),
		fmt.Sprintf("echo name=%s >> %s", name, NamespaceFile),
		fmt.Sprintf("aws s3 cp s3://%s/%s %s", bootstrapPath, AgentBinary, BatchDir),
		fmt.Sprintf("chmod +x %s/%s", BatchDir, AgentBinary),
		"yum install -y java-1.8.0",
		fmt.Sprintf("%s/%s agent --namespace-file %s &", BatchDir, AgentBinary, NamespaceFile),
	}
	return strings.Join(lines, "\n")
}

// UserData returns UserDataScript base64 encoded, as EC2 expects
func UserData(bootstrapPath, name, namespace string) string {
	return base64.StdEncoding.EncodeToString([]byte(UserDataScript(bootstrapPath, name, namespace)))
}
