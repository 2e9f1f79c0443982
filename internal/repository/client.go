package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the table's composite primary key and the owner index.
const (
	PartitionKey = "PK"
	SortKey      = "SK"

	// OwnerAttr is the attribute holding the owning user id. It is the
	// partition key of the GSIOwner index; the index sort key is
	// last_update_time, so owner queries come back in time order.
	OwnerAttr = "owner_user_id"

	// GSIOwner is the name of the Global Secondary Index keyed by owner.
	GSIOwner = "GSIOwner"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Item is a raw stored record.
type Item = map[string]types.AttributeValue

// Page is one page of query results with an opaque continuation token.
// NextToken is empty when no further pages exist.
type Page struct {
	Items     []Item
	NextToken string
}

// Client wraps a DynamoDB table as a generic partition-key/sort-key store
// with a secondary index by owning user and atomic conditional updates.
type Client struct {
	api       dynamodbAPI
	tableName string
	opts      *Options
}

// New creates a new repository Client for the given table.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	options := newOptions()
	for _, o := range opts {
		o(options)
	}
	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return &Client{api: api, tableName: tableName, opts: options}, nil
}

// Put writes an item unconditionally, replacing any existing item at the
// same key.
func (c *Client) Put(ctx context.Context, item Item) error {
	if _, ok := item[PartitionKey]; !ok {
		return errors.New("repository: Put: item missing partition key")
	}
	if _, ok := item[SortKey]; !ok {
		return errors.New("repository: Put: item missing sort key")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	return nil
}

// PutIfAbsent writes an item only if no item exists at its key. It returns
// false without error when the key is already occupied.
func (c *Client) PutIfAbsent(ctx context.Context, item Item) (bool, error) {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("repository: PutIfAbsent: %w", err)
	}
	return true, nil
}

// Get fetches the item at (pk, sk). A missing item is (nil, nil), not an
// error; read paths decide how absence surfaces to callers.
func (c *Client) Get(ctx context.Context, pk, sk string) (Item, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: Item{
			PartitionKey: &types.AttributeValueMemberS{Value: pk},
			SortKey:      &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// QueryPrefix returns items in a partition whose sort key starts with
// skPrefix, oldest first, one page at a time.
func (c *Client) QueryPrefix(ctx context.Context, pk, skPrefix, pageToken string) (Page, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: Item{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		Limit: aws.Int32(c.opts.pageSize),
	}
	if pageToken != "" {
		start, err := decodePageToken(pageToken)
		if err != nil {
			return Page{}, fmt.Errorf("repository: QueryPrefix: %w", err)
		}
		in.ExclusiveStartKey = start
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("repository: QueryPrefix: %w", err)
	}
	return pageFromOutput(out.Items, out.LastEvaluatedKey)
}

// QueryOwner returns items owned by ownerUserID from the owner index,
// newest first.
func (c *Client) QueryOwner(ctx context.Context, ownerUserID, pageToken string) (Page, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(c.opts.ownerIndexName),
		KeyConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": OwnerAttr,
		},
		ExpressionAttributeValues: Item{
			":owner": &types.AttributeValueMemberS{Value: ownerUserID},
		},
		// Newest first so "most recent conversation" is the first item.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(c.opts.pageSize),
	}
	if pageToken != "" {
		start, err := decodePageToken(pageToken)
		if err != nil {
			return Page{}, fmt.Errorf("repository: QueryOwner: %w", err)
		}
		in.ExclusiveStartKey = start
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("repository: QueryOwner: %w", err)
	}
	return pageFromOutput(out.Items, out.LastEvaluatedKey)
}

// ScanPrefix performs a bounded table scan for items whose sort key starts
// with skPrefix and whose filterAttr equals filterValue. It is the last
// resort of the session resolvers and is intentionally capped.
func (c *Client) ScanPrefix(ctx context.Context, skPrefix, filterAttr, filterValue string) ([]Item, error) {
	out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("begins_with(SK, :prefix) AND #attr = :val"),
		ExpressionAttributeNames: map[string]string{
			"#attr": filterAttr,
		},
		ExpressionAttributeValues: Item{
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
			":val":    &types.AttributeValueMemberS{Value: filterValue},
		},
		Limit: aws.Int32(c.opts.scanLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ScanPrefix: %w", err)
	}
	return out.Items, nil
}

// ScanMissing performs a bounded table scan for items whose sort key starts
// with skPrefix and which lack the given attribute. The summary backfill job
// uses it to find finished records without a generated summary.
func (c *Client) ScanMissing(ctx context.Context, skPrefix, missingAttr string) ([]Item, error) {
	out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("begins_with(SK, :prefix) AND attribute_not_exists(#attr)"),
		ExpressionAttributeNames: map[string]string{
			"#attr": missingAttr,
		},
		ExpressionAttributeValues: Item{
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		Limit: aws.Int32(c.opts.scanLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ScanMissing: %w", err)
	}
	return out.Items, nil
}

// Update applies the given operations to the item at (pk, sk) as a single
// atomic UpdateItem. List appends are additive under concurrency; scalar
// sets are last-writer-wins.
func (c *Client) Update(ctx context.Context, pk, sk string, ops []UpdateOp) error {
	if len(ops) == 0 {
		return errors.New("repository: Update: no operations")
	}
	expr, names, values, err := buildUpdateExpression(ops)
	if err != nil {
		return fmt.Errorf("repository: Update: %w", err)
	}

	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: Item{
			PartitionKey: &types.AttributeValueMemberS{Value: pk},
			SortKey:      &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("repository: Update: %w", err)
	}
	return nil
}

func pageFromOutput(items []Item, lastKey Item) (Page, error) {
	token, err := encodePageToken(lastKey)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, NextToken: token}, nil
}

// Page tokens round-trip LastEvaluatedKey as base64 JSON. Every key
// attribute in this schema is a string, so only S members are encoded.
func encodePageToken(lastKey Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}
	flat := make(map[string]string, len(lastKey))
	for name, attr := range lastKey {
		s, ok := attr.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("page token attribute %q is not a string", name)
		}
		flat[name] = s.Value
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodePageToken(token string) (Item, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	key := make(Item, len(flat))
	for name, value := range flat {
		key[name] = &types.AttributeValueMemberS{Value: value}
	}
	return key, nil
}
