package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplateParameters(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		body := `
- ParameterKey: KeyName
  ParameterValue: batch-key
- ParameterKey: InstanceType
  ParameterValue: t3.micro
`
		got, err := ParseTemplateParameters(body)
		require.NoError(t, err)
		assert.Equal(t, []models.TemplateParameter{
			{ParameterKey: "KeyName", ParameterValue: "batch-key"},
			{ParameterKey: "InstanceType", ParameterValue: "t3.micro"},
		}, got)
	})

	t.Run("json", func(t *testing.T) {
		got, err := ParseTemplateParameters(`[{"ParameterKey": "KeyName", "ParameterValue": "k"}]`)
		require.NoError(t, err)
		assert.Equal(t, []models.TemplateParameter{{ParameterKey: "KeyName", ParameterValue: "k"}}, got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := ParseTemplateParameters("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseTemplateParameters("ParameterKey: [unterminated")
		assert.Error(t, err)
	})
}

func TestWithInstanceParameters(t *testing.T) {
	params := []models.TemplateParameter{
		{ParameterKey: "InstanceName", ParameterValue: "stale"},
		{ParameterKey: "KeyName", ParameterValue: "batch-key"},
	}

	got := WithInstanceParameters(params, "project-111", "dXNlcmRhdGE=")
	assert.Equal(t, []models.TemplateParameter{
		{ParameterKey: "KeyName", ParameterValue: "batch-key"},
		{ParameterKey: InstanceNameParameter, ParameterValue: "project-111"},
		{ParameterKey: InstanceUserDataParameter, ParameterValue: "dXNlcmRhdGE="},
	}, got)

	// input is left untouched
	assert.Equal(t, "stale", params[0].ParameterValue)
}

func TestUserDataScript(t *testing.T) {
	script := UserDataScript("s3://cloudformation/bootstrap/", "project-111", "/some/prefix/")
	lines := strings.Split(script, "\n")

	assert.Equal(t, "#!/bin/sh", lines[0])
	assert.Contains(t, lines, "echo namespace=/some/prefix/ >> /batch-processing/namespace")
	assert.Contains(t, lines, "echo name=project-111 >> /batch-processing/namespace")
	assert.Contains(t, lines, "aws s3 cp s3://cloudformation/bootstrap/batch-provisioner /batch-processing")
	assert.Equal(t, "/batch-processing/batch-provisioner agent --namespace-file /batch-processing/namespace &", lines[len(lines)-1])
}

func TestUserData(t *testing.T) {
	encoded := UserData("cloudformation/bootstrap", "project-111", "/")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, UserDataScript("cloudformation/bootstrap", "project-111", "/"), string(decoded))
}
