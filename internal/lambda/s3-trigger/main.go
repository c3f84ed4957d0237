package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/di"
	"github.com/savaki/batch-provisioner/internal/errors"
	"github.com/savaki/batch-provisioner/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

// Provisioner creates the stack for an uploaded artifact
type Provisioner interface {
	Provision(ctx context.Context, bucket, key string) (*orchestrator.Result, error)
}

// Response is the API Gateway style payload returned to the invoker
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Handler struct {
	provisioner Provisioner
}

func NewHandler(provisioner Provisioner) *Handler {
	return &Handler{
		provisioner: provisioner,
	}
}

// HandleS3Event provisions a stack for every record in the event. A failed
// record does not stop the ones after it; failures are joined into the
// returned error.
func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) (*Response, error) {
	logger := zerolog.Ctx(ctx)

	if len(event.Records) == 0 {
		return nil, errors.ErrNoEventRecords
	}

	var errs []error
	results := make([]*orchestrator.Result, 0, len(event.Records))
	for i := range event.Records {
		result, err := h.processS3Record(ctx, &event.Records[i])
		if err != nil {
			object := event.Records[i].S3.Object.Key
			logger.Error().Err(err).Str("key", object).Msg("Error processing S3 record")
			errs = append(errs, fmt.Errorf("%s/%s: %w", event.Records[i].S3.Bucket.Name, object, err))
			continue
		}
		results = append(results, result)
	}
	if len(errs) > 0 {
		return nil, stderrors.Join(errs...)
	}

	body, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	return &Response{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}, nil
}

func (h *Handler) processS3Record(ctx context.Context, record *events.S3EventRecord) (*orchestrator.Result, error) {
	bucket := record.S3.Bucket.Name

	// keys arrive url encoded, e.g. spaces as '+'
	key := record.S3.Object.URLDecodedKey
	if key == "" {
		key = record.S3.Object.Key
	}

	zerolog.Ctx(ctx).Info().
		Str("event", record.EventName).
		Str("bucket", bucket).
		Str("key", key).
		Msg("Received S3 record")

	return h.provisioner.Provision(ctx, bucket, key)
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "s3-trigger").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env, di.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	handler := NewHandler(di.MustGet[*orchestrator.Orchestrator](container))

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, event events.S3Event) (*Response, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleS3Event(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "s3-trigger",
		Usage: "Simulate an artifact upload to provision a batch stack",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "S3 bucket name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "S3 object key (e.g., some/prefix/project-1.1.1.jar)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			event := events.S3Event{
				Records: []events.S3EventRecord{
					{
						EventName: "ObjectCreated:Put",
						S3: events.S3Entity{
							Bucket: events.S3Bucket{
								Name: c.String("bucket"),
							},
							Object: events.S3Object{
								Key:           c.String("key"),
								URLDecodedKey: c.String("key"),
							},
						},
					},
				},
			}

			ctx := logger.WithContext(context.Background())
			resp, err := handler.HandleS3Event(ctx, event)
			if err != nil {
				return err
			}

			fmt.Println(resp.Body)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
