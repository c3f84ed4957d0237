package launchspec

import (
	"strings"
	"testing"

	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		params   models.Parameters
		wantArgs string
	}{
		{
			name: "event data and one option",
			params: models.Parameters{
				{Name: "event-data", Value: "s3://bucket/path/file.csv"},
				{Name: "foo", Value: "bar"},
			},
			wantArgs: "--datafile-path=./file.csv --foo=bar",
		},
		{
			name: "order is preserved",
			params: models.Parameters{
				{Name: "foo", Value: "bar"},
				{Name: "chunkSize", Value: "25"},
				{Name: "event-data", Value: "s3://bucket/people.csv"},
			},
			wantArgs: "--foo=bar --chunkSize=25 --datafile-path=./people.csv",
		},
		{
			name: "reserved keys are omitted",
			params: models.Parameters{
				{Name: "event-resource", Value: "s3://artifacts/app-1.0.jar"},
				{Name: "email", Value: "ops@example.com"},
				{Name: "datafile-path", Value: "/tmp/ignored.csv"},
				{Name: "event-data", Value: "s3://bucket/a/b/c.csv"},
			},
			wantArgs: "--datafile-path=./c.csv",
		},
		{
			name: "values are passed through",
			params: models.Parameters{
				{Name: "event-data", Value: "s3://bucket/c.csv"},
				{Name: "spring.datasource.url", Value: "jdbc:h2:mem:db;MODE=MySQL"},
			},
			wantArgs: "--datafile-path=./c.csv --spring.datasource.url=jdbc:h2:mem:db;MODE=MySQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, got.CmdlineArgs)
			assert.Equal(t, WriteProperties(tt.params), got.PropertiesText)
			assert.Len(t, got.Args, len(strings.Fields(tt.wantArgs)))
		})
	}
}

func TestBuild_DataFile(t *testing.T) {
	got, err := Build(models.Parameters{
		{Name: "event-data", Value: "s3://my-bucket/a/b/c.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", got.DataFile.Bucket)
	assert.Equal(t, "a/b/c.csv", got.DataFile.Key)
	assert.Equal(t, "c.csv", got.DataFile.Filename)
}

func TestBuild_MissingEventData(t *testing.T) {
	_, err := Build(models.Parameters{
		{Name: "foo", Value: "bar"},
		{Name: "event-resource", Value: "s3://artifacts/app.jar"},
	})
	assert.ErrorIs(t, err, errors.ErrMissingRequiredParameter)

	_, err = Build(nil)
	assert.ErrorIs(t, err, errors.ErrMissingRequiredParameter)
}

func TestBuild_MalformedEventData(t *testing.T) {
	_, err := Build(models.Parameters{
		{Name: "event-data", Value: "/local/file.csv"},
	})
	assert.ErrorIs(t, err, errors.ErrMalformedResourceURI)
}

func TestWriteProperties(t *testing.T) {
	params := models.Parameters{
		{Name: "event-data", Value: "s3://bucket/file.csv"},
		{Name: "chunkSize", Value: "10"},
		{Name: "query", Value: "a=b"},
	}

	want := "event-data=s3://bucket/file.csv\nchunkSize=10\nquery=a=b\n"
	assert.Equal(t, want, WriteProperties(params))
	assert.Equal(t, "", WriteProperties(nil))
}

func TestProperties_RoundTrip(t *testing.T) {
	params := models.Parameters{
		{Name: "foo", Value: "bar"},
		{Name: "chunkSize", Value: "10"},
		{Name: "empty", Value: ""},
		{Name: "url", Value: "jdbc:postgresql://db:5432/app?ssl=true"},
		{Name: "spaced", Value: " leading and trailing "},
	}

	got, err := ParseProperties(WriteProperties(params))
	require.NoError(t, err)
	assert.Equal(t, params, got)
	assert.Equal(t, params.Map(), got.Map())
}

func TestParseProperties(t *testing.T) {
	text := "# comment\n\n! also a comment\nfoo=bar\r\nfoo=baz\nkey = value\n"

	got, err := ParseProperties(text)
	require.NoError(t, err)
	assert.Equal(t, models.Parameters{
		{Name: "foo", Value: "baz"},
		{Name: "key", Value: " value"},
	}, got)

	_, err = ParseProperties("no separator here\n")
	assert.Error(t, err)
}
