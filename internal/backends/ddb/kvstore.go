package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KVStore implements ports.KVStore with one item per key.
type KVStore struct {
	table string
	cli   *dynamodb.Client
}

type kvItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Value string `dynamodbav:"val"`
}

func NewKVStore(table string, cli *dynamodb.Client) *KVStore {
	// Creates the table only if it doesn't exist.
	createTableIfNotExists(cli, table)
	return &KVStore{table: table, cli: cli}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            kvKey(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return "", false, err
	}
	if out.Item == nil {
		return "", false, nil
	}
	var it kvItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", false, err
	}
	return it.Value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	item, err := attributevalue.MarshalMap(kvItem{PK: pkKV(key), SK: skValue(), Value: value})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	return err
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            &s.table,
		Key:                  kvKey(key),
		ConsistentRead:       awsBool(true),
		ProjectionExpression: awsString("PK"),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       kvKey(key),
	})
	return err
}

func kvKey(key string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkKV(key)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skValue()},
	}
}
