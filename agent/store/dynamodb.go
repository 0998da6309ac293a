package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoPKPrefixThread     = "THREAD#"
	dynamoPKPrefixCheckpoint = "CP#"
	dynamoSKPrefixStep       = "STEP#"
	dynamoSKCheckpoint       = "META#"
)

// dynamoAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore is a DynamoDB implementation of Store[S].
//
// Designed for serverless deployments on AWS where the assistant runs in
// short-lived compute (Lambda) and conversation state must survive
// between invocations.
//
// Item layout (single-table):
//   - Steps:       PK="THREAD#<threadID>", SK="STEP#<zero-padded step>"
//   - Checkpoints: PK="CP#<checkpointID>",  SK="META#"
//
// The zero-padded sort key makes "latest step" a single Query with
// ScanIndexForward=false and Limit=1.
//
// The table must have a string partition key "PK" and string sort key
// "SK". Table provisioning is deployment concern, not handled here.
//
// Type parameter S is the state type to persist (must be
// JSON-serializable).
type DynamoStore[S any] struct {
	api       dynamoAPI
	tableName string
}

// NewDynamoStore creates a new DynamoDB-backed store.
//
// Parameters:
//   - api: a *dynamodb.Client (or a test double implementing the same
//     operations)
//   - tableName: the DynamoDB table holding conversation state
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st, err := store.NewDynamoStore[State](dynamodb.NewFromConfig(cfg), "salesagent-threads")
func NewDynamoStore[S any](api dynamoAPI, tableName string) (*DynamoStore[S], error) {
	if api == nil {
		return nil, errors.New("dynamo store: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo store: table name must not be empty")
	}
	return &DynamoStore[S]{api: api, tableName: tableName}, nil
}

func threadPK(threadID string) string {
	return dynamoPKPrefixThread + threadID
}

func stepSK(step int) string {
	return fmt.Sprintf("%s%012d", dynamoSKPrefixStep, step)
}

// SaveStep persists a step record (implements Store). Writing the same
// (threadID, step) twice replaces the earlier item.
func (d *DynamoStore[S]) SaveStep(ctx context.Context, threadID string, step int, stepName string, state S) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("dynamo store: failed to marshal state: %w", err)
	}

	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: threadPK(threadID)},
			"SK":        &types.AttributeValueMemberS{Value: stepSK(step)},
			"step":      &types.AttributeValueMemberN{Value: strconv.Itoa(step)},
			"step_name": &types.AttributeValueMemberS{Value: stepName},
			"state":     &types.AttributeValueMemberS{Value: string(stateJSON)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo store: failed to save step: %w", err)
	}
	return nil
}

// LoadLatest retrieves the most recent step for a thread (implements
// Store). Returns ErrNotFound for an unknown thread.
func (d *DynamoStore[S]) LoadLatest(ctx context.Context, threadID string) (state S, step int, err error) {
	var zero S

	out, err := d.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: threadPK(threadID)},
			":prefix": &types.AttributeValueMemberS{Value: dynamoSKPrefixStep},
		},
		// Newest step first; one item is all we need.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return zero, 0, fmt.Errorf("dynamo store: failed to query latest step: %w", err)
	}
	if len(out.Items) == 0 {
		return zero, 0, ErrNotFound
	}

	return d.decodeItem(out.Items[0])
}

// SaveCheckpoint creates or overwrites a named checkpoint (implements
// Store).
func (d *DynamoStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("dynamo store: failed to marshal state: %w", err)
	}

	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"PK":    &types.AttributeValueMemberS{Value: dynamoPKPrefixCheckpoint + cpID},
			"SK":    &types.AttributeValueMemberS{Value: dynamoSKCheckpoint},
			"step":  &types.AttributeValueMemberN{Value: strconv.Itoa(step)},
			"state": &types.AttributeValueMemberS{Value: string(stateJSON)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamo store: failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint retrieves a named checkpoint (implements Store).
func (d *DynamoStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	var zero S

	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dynamoPKPrefixCheckpoint + cpID},
			"SK": &types.AttributeValueMemberS{Value: dynamoSKCheckpoint},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return zero, 0, fmt.Errorf("dynamo store: failed to get checkpoint: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return zero, 0, ErrNotFound
	}

	return d.decodeItem(out.Item)
}

// decodeItem extracts the state JSON and step number from a DynamoDB
// item.
func (d *DynamoStore[S]) decodeItem(item map[string]types.AttributeValue) (state S, step int, err error) {
	var zero S

	stateAttr, ok := item["state"].(*types.AttributeValueMemberS)
	if !ok {
		return zero, 0, errors.New("dynamo store: item missing state attribute")
	}
	stepAttr, ok := item["step"].(*types.AttributeValueMemberN)
	if !ok {
		return zero, 0, errors.New("dynamo store: item missing step attribute")
	}

	step, err = strconv.Atoi(stepAttr.Value)
	if err != nil {
		return zero, 0, fmt.Errorf("dynamo store: invalid step attribute: %w", err)
	}

	if err := json.Unmarshal([]byte(stateAttr.Value), &state); err != nil {
		return zero, 0, fmt.Errorf("dynamo store: failed to unmarshal state: %w", err)
	}
	return state, step, nil
}
