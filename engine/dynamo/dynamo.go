// Package dynamo provides a DynamoDB storage engine.
//
// Every resource lives in its own table with the string hash key "_id".
// Create and Destroy use condition expressions so duplicate and missing
// records map to resource conflict and not-found errors. Find queries a
// global secondary index when one is configured for the attribute and falls
// back to a filtered Scan otherwise. Append uses list_append, so foreign
// arrays grow atomically across processes, and Swap replaces an array only
// while it still holds the value the caller read. A table that was never
// created reads as empty: Find returns nothing and Get, Destroy and Append
// report the record as not found.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/resourceful/resource"
)

// API is the subset of *dynamodb.Client the engine uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Engine stores resources in DynamoDB tables.
type Engine struct {
	client API
	config Config
	logger *zap.Logger
}

var (
	_ resource.Engine   = (*Engine)(nil)
	_ resource.Appender = (*Engine)(nil)
	_ resource.Swapper  = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a new Engine over an existing client.
func New(client API, config Config, opts ...Option) *Engine {
	config.validate()
	e := &Engine{
		client: client,
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open builds a client from the shared AWS configuration (environment,
// profile, region) and returns an Engine using it.
func Open(ctx context.Context, config Config, opts ...Option) (*Engine, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	if config.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(config.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	return New(client, config, opts...), nil
}

// Config returns the validated engine configuration.
func (e *Engine) Config() Config { return e.config }

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		resource.IDKey: &types.AttributeValueMemberS{Value: id},
	}
}

// Get implements resource.Engine.
func (e *Engine) Get(ctx context.Context, name, id string) (resource.Document, error) {
	result, err := e.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(e.config.TableName(name)),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		if isMissingTable(err) {
			return nil, resource.NotFound(name, id)
		}
		return nil, err
	}
	if result.Item == nil {
		return nil, resource.NotFound(name, id)
	}
	return unmarshalDocument(result.Item)
}

// Create implements resource.Engine.
func (e *Engine) Create(ctx context.Context, name string, doc resource.Document) (resource.Document, error) {
	item, err := marshalDocument(doc)
	if err != nil {
		return nil, err
	}
	_, err = e.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(e.config.TableName(name)),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": resource.IDKey},
	})
	if err != nil {
		return nil, mapConditionError(err, resource.Conflict(name, doc.ID()))
	}
	return doc.Clone(), nil
}

// Save implements resource.Engine.
func (e *Engine) Save(ctx context.Context, name, id string, doc resource.Document) (resource.Document, error) {
	stored := doc.Clone()
	stored[resource.IDKey] = id
	item, err := marshalDocument(stored)
	if err != nil {
		return nil, err
	}
	_, err = e.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(e.config.TableName(name)),
		Item:      item,
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Destroy implements resource.Engine.
func (e *Engine) Destroy(ctx context.Context, name, id string) error {
	_, err := e.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(e.config.TableName(name)),
		Key:                      idKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": resource.IDKey},
	})
	return mapNotFound(err, name, id)
}

// Find implements resource.Engine.
func (e *Engine) Find(ctx context.Context, name, field, value string) ([]resource.Document, error) {
	table := e.config.TableName(name)
	names := map[string]string{"#f": field}
	values := map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberS{Value: value},
	}

	var raw []map[string]types.AttributeValue
	if index, ok := e.config.Indexes[field]; ok {
		paginator := dynamodb.NewQueryPaginator(e.client, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			IndexName:                 aws.String(index),
			KeyConditionExpression:    aws.String("#f = :v"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			Limit:                     aws.Int32(e.config.ScanPageSize),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, mapMissingTable(err)
			}
			raw = append(raw, page.Items...)
		}
	} else {
		e.logger.Debug("find without index, scanning",
			zap.String("table", table),
			zap.String("field", field),
		)
		paginator := dynamodb.NewScanPaginator(e.client, &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String("#f = :v"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ConsistentRead:            aws.Bool(true),
			Limit:                     aws.Int32(e.config.ScanPageSize),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, mapMissingTable(err)
			}
			raw = append(raw, page.Items...)
		}
	}

	docs := make([]resource.Document, 0, len(raw))
	for _, item := range raw {
		doc, err := unmarshalDocument(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Append implements resource.Appender.
func (e *Engine) Append(ctx context.Context, name, id, field, value string) (resource.Document, error) {
	result, err := e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(e.config.TableName(name)),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #f = list_append(if_not_exists(#f, :empty), :v)"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#f":  field,
			"#id": resource.IDKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": stringList(nil),
			":v":     stringList([]string{value}),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, mapNotFound(err, name, id)
	}
	return unmarshalDocument(result.Attributes)
}

// Swap implements resource.Swapper with a conditional UpdateItem. The old
// image returned by a failed condition tells a changed array (Conflict) from
// a missing record (NotFound).
func (e *Engine) Swap(ctx context.Context, name, id, field string, old, next []string) (resource.Document, error) {
	values := map[string]types.AttributeValue{":next": stringList(next)}
	condition := "attribute_exists(#id) AND #f = :old"
	if len(old) == 0 {
		condition = "attribute_exists(#id) AND (attribute_not_exists(#f) OR size(#f) = :zero)"
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	} else {
		values[":old"] = stringList(old)
	}

	result, err := e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(e.config.TableName(name)),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #f = :next"),
		ConditionExpression: aws.String(condition),
		ExpressionAttributeNames: map[string]string{
			"#f":  field,
			"#id": resource.IDKey,
		},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) && len(condErr.Item) > 0 {
			return nil, resource.Conflict(name, id)
		}
		return nil, mapNotFound(err, name, id)
	}
	return unmarshalDocument(result.Attributes)
}

func stringList(values []string) *types.AttributeValueMemberL {
	list := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		list = append(list, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: list}
}

// mapConditionError maps a failed condition expression to mapped and passes
// every other error through unchanged.
func mapConditionError(err error, mapped error) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return mapped
	}
	return err
}

// mapNotFound maps a failed existence condition, or a table that was never
// created, to a NotFound error for the record.
func mapNotFound(err error, name, id string) error {
	if isMissingTable(err) {
		return resource.NotFound(name, id)
	}
	return mapConditionError(err, resource.NotFound(name, id))
}

// mapMissingTable treats a table that was never created as empty.
func mapMissingTable(err error) error {
	if isMissingTable(err) {
		return nil
	}
	return err
}

func isMissingTable(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}

func marshalDocument(doc resource.Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return item, nil
}

func unmarshalDocument(item map[string]types.AttributeValue) (resource.Document, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return resource.Document(doc), nil
}
