package launchdao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

// PK is the namespace the launch was provisioned for, e.g. /some/prefix/
type PK string

func (pk PK) String() string {
	return string(pk)
}

// ID identifies a launch in format {namespace}:{ksuid}
// Example: /some/prefix/:2HFj3kLmNoPqRsTuVwXy
type ID string

func (id ID) String() string {
	return string(id)
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// ParseID parses a launch ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", fmt.Errorf("invalid launch ID format: %s, expected {namespace}:{ksuid}", s)
	}
	return PK(s[:idx]), s[idx+1:], nil
}

// Status is the lifecycle state of a launch
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRequested Status = "REQUESTED"
	StatusFailed    Status = "FAILED"
)

// Record represents a stack launch in DynamoDB
type Record struct {
	PK        PK     `ddb:"hash" dynamodbav:"pk"`        // namespace - DynamoDB partition key
	SK        string `ddb:"range" dynamodbav:"sk"`       // KSUID - DynamoDB sort key
	StackName string `dynamodbav:"stack_name,omitempty"` // derived stack name
	StackID   string `dynamodbav:"stack_id,omitempty"`   // CloudFormation stack id
	Bucket    string `dynamodbav:"bucket,omitempty"`     // bucket of the triggering artifact
	Key       string `dynamodbav:"key,omitempty"`        // key of the triggering artifact
	Status    Status `dynamodbav:"status,omitempty"`     // launch status
	ErrorMsg  string `dynamodbav:"error_msg,omitempty"`  // failure detail
	CreatedAt int64  `dynamodbav:"created_at,omitempty"` // Unix epoch timestamp of creation
	UpdatedAt int64  `dynamodbav:"updated_at,omitempty"` // Unix epoch timestamp of last update
}

// GetID returns the full launch ID
func (r *Record) GetID() ID {
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields needed to create a new launch record
type CreateInput struct {
	Namespace string
	SK        string
	StackName string
	Bucket    string
	Key       string
}

// UpdateInput contains the fields that can be updated on a launch record
type UpdateInput struct {
	ID       ID
	Status   Status
	StackID  string
	ErrorMsg string
}

// DAO provides data access operations for launch records
type DAO struct {
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		table: table,
	}
}

// Create creates a new launch record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	now := time.Now().Unix()

	record := Record{
		PK:        PK(input.Namespace),
		SK:        input.SK,
		StackName: input.StackName,
		Bucket:    input.Bucket,
		Key:       input.Key,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create launch record: %w", err)
	}

	return record, nil
}

// Find retrieves a launch record by ID
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record

	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("launch record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find launch record: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("launch record not found: %s", id)
	}

	return record, nil
}

// UpdateStatus records the outcome of a stack creation request
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	pk, sk, err := ParseID(input.ID)
	if err != nil {
		return err
	}

	update := d.table.Update(pk.String()).
		Range(sk).
		Set("#Status = ?", string(input.Status)).
		Set("#UpdatedAt = ?", time.Now().Unix())

	if input.StackID != "" {
		update = update.Set("#StackID = ?", input.StackID)
	}

	if input.ErrorMsg != "" {
		update = update.Set("#ErrorMsg = ?", input.ErrorMsg)
	}

	if err := update.RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to update launch status: %w", err)
	}

	return nil
}

// Query returns all launches for a namespace
func (d *DAO) Query(ctx context.Context, namespace string) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", namespace).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query launches: %w", err)
	}

	return records, nil
}
