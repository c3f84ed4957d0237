package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	bucket string
	key    string
}

type fakeProvisioner struct {
	calls []call
	fail  map[string]error
}

func (f *fakeProvisioner) Provision(_ context.Context, bucket, key string) (*orchestrator.Result, error) {
	f.calls = append(f.calls, call{bucket: bucket, key: key})
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return &orchestrator.Result{StackName: key, StackStatus: "CREATE_IN_PROGRESS"}, nil
}

func record(bucket, key, decoded string) events.S3EventRecord {
	return events.S3EventRecord{
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: bucket},
			Object: events.S3Object{Key: key, URLDecodedKey: decoded},
		},
	}
}

func TestHandleS3Event(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())
	provisioner := &fakeProvisioner{}
	handler := NewHandler(provisioner)

	resp, err := handler.HandleS3Event(ctx, events.S3Event{
		Records: []events.S3EventRecord{
			record("artifacts", "some/prefix/project-1.1.1.jar", "some/prefix/project-1.1.1.jar"),
			record("artifacts", "my+dir/app.jar", "my dir/app.jar"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, []call{
		{bucket: "artifacts", key: "some/prefix/project-1.1.1.jar"},
		{bucket: "artifacts", key: "my dir/app.jar"},
	}, provisioner.calls)

	var results []orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "CREATE_IN_PROGRESS", results[0].StackStatus)
}

func TestHandleS3Event_FallsBackToRawKey(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())
	provisioner := &fakeProvisioner{}

	_, err := NewHandler(provisioner).HandleS3Event(ctx, events.S3Event{
		Records: []events.S3EventRecord{record("artifacts", "app.jar", "")},
	})
	require.NoError(t, err)
	assert.Equal(t, "app.jar", provisioner.calls[0].key)
}

func TestHandleS3Event_NoRecords(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())
	provisioner := &fakeProvisioner{}

	_, err := NewHandler(provisioner).HandleS3Event(ctx, events.S3Event{})
	assert.ErrorIs(t, err, errors.ErrNoEventRecords)
	assert.Empty(t, provisioner.calls)
}

func TestHandleS3Event_ContinuesAfterFailure(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())
	boom := stderrors.New("throttled")
	provisioner := &fakeProvisioner{
		fail: map[string]error{
			"readme.txt": errors.ErrUnsupportedArtifactType,
			"b.jar":      boom,
		},
	}

	resp, err := NewHandler(provisioner).HandleS3Event(ctx, events.S3Event{
		Records: []events.S3EventRecord{
			record("artifacts", "readme.txt", "readme.txt"),
			record("artifacts", "app.jar", "app.jar"),
			record("artifacts", "b.jar", "b.jar"),
		},
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, errors.ErrUnsupportedArtifactType)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "artifacts/readme.txt")
	assert.Contains(t, err.Error(), "artifacts/b.jar")
	assert.NotContains(t, err.Error(), "app.jar")

	assert.Equal(t, []call{
		{bucket: "artifacts", key: "readme.txt"},
		{bucket: "artifacts", key: "app.jar"},
		{bucket: "artifacts", key: "b.jar"},
	}, provisioner.calls)
}
