package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/dao/launchdao"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/savaki/batch-provisioner/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paramsYAML = `
- ParameterKey: KeyName
  ParameterValue: batch-key
- ParameterKey: InstanceType
  ParameterValue: t3.micro
`

type fakeObjects struct {
	objects map[string]string
}

func (f *fakeObjects) GetObjectBody(_ context.Context, bucket, key string) (string, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return "", stderrors.New("NoSuchKey")
	}
	return body, nil
}

type fakeStacks struct {
	requests  []services.StackRequest
	createErr error
}

func (f *fakeStacks) CreateStack(_ context.Context, req services.StackRequest) (*services.StackResult, error) {
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &services.StackResult{StackName: req.Name, StackID: "stack/" + req.Name}, nil
}

func (f *fakeStacks) DescribeStack(_ context.Context, stackName string) (*services.StackResult, error) {
	return &services.StackResult{
		StackName:    stackName,
		StackID:      "stack/" + stackName,
		Status:       "CREATE_IN_PROGRESS",
		StatusReason: "User Initiated",
		CreationTime: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
	}, nil
}

type fakeLaunches struct {
	created []launchdao.CreateInput
	updates []launchdao.UpdateInput
}

func (f *fakeLaunches) Create(_ context.Context, input launchdao.CreateInput) (launchdao.Record, error) {
	f.created = append(f.created, input)
	return launchdao.Record{PK: launchdao.PK(input.Namespace), SK: input.SK}, nil
}

func (f *fakeLaunches) UpdateStatus(_ context.Context, input launchdao.UpdateInput) error {
	f.updates = append(f.updates, input)
	return nil
}

type fixture struct {
	store    *services.EnvParameterStore
	objects  *fakeObjects
	stacks   *fakeStacks
	launches *fakeLaunches
	orch     *Orchestrator
}

func setup(t *testing.T) (context.Context, fixture) {
	t.Helper()

	ctx := zerolog.Nop().WithContext(context.Background())
	config := &services.Config{
		TemplateBucket: "cloudformation",
		TemplateKey:    "template.yml",
		ParamsKey:      "params.yml",
		BootstrapPath:  "cloudformation/bootstrap",
		TimeoutMinutes: 15,
	}

	store := services.NewEnvParameterStore("test")
	objects := &fakeObjects{objects: map[string]string{
		"cloudformation/template.yml": "Resources: {}",
		"cloudformation/params.yml":   paramsYAML,
	}}
	stacks := &fakeStacks{}
	launches := &fakeLaunches{}

	return ctx, fixture{
		store:    store,
		objects:  objects,
		stacks:   stacks,
		launches: launches,
		orch:     New(store, objects, stacks, launches, config),
	}
}

func TestProvision(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))

	result, err := f.orch.Provision(ctx, "artifacts", "some/prefix/project-1.1.1.jar")
	require.NoError(t, err)

	assert.Equal(t, "project-111", result.StackName)
	assert.Equal(t, "/some/prefix/", result.Namespace)
	assert.Equal(t, "stack/project-111", result.StackID)
	assert.Equal(t, "CREATE_IN_PROGRESS", result.StackStatus)
	assert.Equal(t, "03/04/2024, 05:06:07", result.CreationTime)

	// event-resource is recorded next to event-data
	params, err := f.store.GetParametersByPath(ctx, "/some/prefix/")
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts/some/prefix/project-1.1.1.jar", params.Get("event-resource"))

	require.Len(t, f.stacks.requests, 1)
	req := f.stacks.requests[0]
	assert.Equal(t, "project-111", req.Name)
	assert.Equal(t, "Resources: {}", req.TemplateBody)
	assert.Equal(t, int32(15), req.TimeoutMinutes)

	keys := make([]string, 0, len(req.Parameters))
	values := map[string]string{}
	for _, p := range req.Parameters {
		keys = append(keys, p.ParameterKey)
		values[p.ParameterKey] = p.ParameterValue
	}
	assert.Equal(t, []string{"KeyName", "InstanceType", "InstanceName", "InstanceUserData"}, keys)
	assert.Equal(t, "project-111", values["InstanceName"])

	script, err := base64.StdEncoding.DecodeString(values["InstanceUserData"])
	require.NoError(t, err)
	assert.Contains(t, string(script), "echo namespace=/some/prefix/ >> /batch-processing/namespace")

	require.Len(t, f.launches.created, 1)
	assert.Equal(t, "project-111", f.launches.created[0].StackName)
	require.Len(t, f.launches.updates, 1)
	assert.Equal(t, launchdao.StatusRequested, f.launches.updates[0].Status)
	assert.Equal(t, "stack/project-111", f.launches.updates[0].StackID)
}

func TestProvision_RootKey(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/event-data", "s3://data/people.csv"))

	result, err := f.orch.Provision(ctx, "artifacts", "spring-batch-0.0.1-SNAPSHOT.jar")
	require.NoError(t, err)
	assert.Equal(t, "spring-batch-001-SNAPSHOT", result.StackName)
	assert.Equal(t, "/", result.Namespace)

	params, err := f.store.GetParametersByPath(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts/spring-batch-0.0.1-SNAPSHOT.jar", params.Get("event-resource"))
}

func TestProvision_UnsupportedArtifact(t *testing.T) {
	ctx, f := setup(t)

	_, err := f.orch.Provision(ctx, "artifacts", "some/prefix/readme.txt")
	assert.ErrorIs(t, err, errors.ErrUnsupportedArtifactType)
	assert.Empty(t, f.stacks.requests)
	assert.Empty(t, f.launches.created)
}

func TestProvision_NamespaceWithoutEventData(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/chunkSize", "10"))

	_, err := f.orch.Provision(ctx, "artifacts", "some/prefix/project-1.1.1.jar")
	assert.ErrorIs(t, err, errors.ErrMissingRequiredParameter)
	assert.Empty(t, f.stacks.requests)

	// nothing is written when verification fails
	params, err := f.store.GetParametersByPath(ctx, "/some/prefix/")
	require.NoError(t, err)
	assert.Equal(t, models.Parameters{{Name: "chunkSize", Value: "10"}}, params)
}

func TestProvision_CreateFails(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))
	f.stacks.createErr = stderrors.New("AlreadyExistsException")

	_, err := f.orch.Provision(ctx, "artifacts", "some/prefix/project-1.1.1.jar")
	require.Error(t, err)

	require.Len(t, f.launches.updates, 1)
	assert.Equal(t, launchdao.StatusFailed, f.launches.updates[0].Status)
	assert.True(t, strings.Contains(f.launches.updates[0].ErrorMsg, "AlreadyExistsException"))
}

func TestProvision_WithoutLaunchHistory(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))

	orch := New(f.store, f.orch.objects, f.stacks, nil, f.orch.config)
	result, err := orch.Provision(ctx, "artifacts", "some/prefix/project-1.1.1.jar")
	require.NoError(t, err)
	assert.Equal(t, "project-111", result.StackName)
}

func TestProvision_TemplateMissingLeavesEventResource(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-resource", "s3://artifacts/some/prefix/project-1.0.0.jar"))

	for _, key := range []string{"cloudformation/template.yml", "cloudformation/params.yml"} {
		t.Run(key, func(t *testing.T) {
			saved := f.objects.objects[key]
			delete(f.objects.objects, key)
			defer func() { f.objects.objects[key] = saved }()

			_, err := f.orch.Provision(ctx, "artifacts", "some/prefix/project-2.0.0.jar")
			require.Error(t, err)
			assert.Empty(t, f.stacks.requests)

			params, err := f.store.GetParametersByPath(ctx, "/some/prefix/")
			require.NoError(t, err)
			assert.Equal(t, "s3://artifacts/some/prefix/project-1.0.0.jar", params.Get("event-resource"))
		})
	}
}

func TestProvision_MalformedParamsLeavesEventResource(t *testing.T) {
	ctx, f := setup(t)
	require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))
	f.objects.objects["cloudformation/params.yml"] = "ParameterKey: [unterminated"

	_, err := f.orch.Provision(ctx, "artifacts", "some/prefix/project-2.0.0.jar")
	require.Error(t, err)

	params, err := f.store.GetParametersByPath(ctx, "/some/prefix/")
	require.NoError(t, err)
	_, ok := params.Lookup("event-resource")
	assert.False(t, ok)
}

func TestProvision_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *services.Config)
	}{
		{name: "no bootstrap path", modify: func(c *services.Config) { c.BootstrapPath = "" }},
		{name: "no template bucket", modify: func(c *services.Config) { c.TemplateBucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, f := setup(t)
			require.NoError(t, f.store.PutParameter(ctx, "/some/prefix/event-data", "s3://data/people.csv"))

			config := *f.orch.config
			tt.modify(&config)
			orch := New(f.store, f.objects, f.stacks, f.launches, &config)

			_, err := orch.Provision(ctx, "artifacts", "some/prefix/project-1.1.1.jar")
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Empty(t, f.stacks.requests)
			assert.Empty(t, f.launches.created)
		})
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{
		StackName:   "project-111",
		StackStatus: "CREATE_IN_PROGRESS",
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "project-111", got["stack_name"])
	assert.Equal(t, "CREATE_IN_PROGRESS", got["stack_status"])
	assert.Contains(t, got, "creation_time")
}
