package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/resourceful/resource"
)

// EnsureTable creates the table of a resource if it doesn't exist, with a
// global secondary index for each of indexedFields (named by Config.Indexes),
// and waits until it is active.
func (e *Engine) EnsureTable(ctx context.Context, name string, indexedFields ...string) error {
	table := e.config.TableName(name)

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(resource.IDKey), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(resource.IDKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	for _, field := range indexedFields {
		index, ok := e.config.Indexes[field]
		if !ok {
			return fmt.Errorf("ensure table %s: no index configured for %q", table, field)
		}
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(field),
			AttributeType: types.ScalarAttributeTypeS,
		})
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName: aws.String(index),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(field), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	_, err := e.client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		e.logger.Debug("table already exists", zap.String("table", table))
	case err != nil:
		return fmt.Errorf("create table %s: %w", table, err)
	default:
		e.logger.Info("table created", zap.String("table", table), zap.Strings("indexes", indexedFields))
	}

	waiter := dynamodb.NewTableExistsWaiter(e.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	return nil
}
