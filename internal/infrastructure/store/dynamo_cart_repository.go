package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/furniture-market/internal/domain/cart"
)

// DynamoCartRepository stores one item per cart keyed by user_id and guards
// writes with a condition on the version attribute.
type DynamoCartRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoCartRepository(client *dynamodb.Client, tableName string) *DynamoCartRepository {
	return &DynamoCartRepository{client: client, tableName: tableName}
}

func (r *DynamoCartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, cart.ErrCartNotFound
	}

	var c cart.Cart
	if err := attributevalue.UnmarshalMap(result.Item, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []cart.LineItem{}
	}
	return &c, nil
}

func (r *DynamoCartRepository) Save(ctx context.Context, c *cart.Cart, expectedVersion int64) error {
	av, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(user_id)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	_, err = r.client.PutItem(ctx, input)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return cart.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to put cart: %w", err)
	}
	return nil
}
