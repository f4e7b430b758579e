package ddb

import (
	"cartsync/internal/types"
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CartRepository implements ports.CartRepository. A cart is one item (PK CART#<id>, SK CART)
// versioned by its `ver` attribute; the owner index is one item per cart under OWNER#<owner>.
type CartRepository struct {
	table string
	cli   *dynamodb.Client
}

type cartItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Owner string `dynamodbav:"owner"`
	types.Cart
}

type ownerItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	CartID string `dynamodbav:"cart_id"`
}

func NewCartRepository(table string, cli *dynamodb.Client) *CartRepository {
	createTableIfNotExists(cli, table)
	return &CartRepository{table: table, cli: cli}
}

func (s *CartRepository) Load(ctx context.Context, cartID string) (*types.Cart, int64, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            cartKey(cartID),
	})
	if err != nil {
		return nil, 0, err
	}
	if out.Item == nil {
		return nil, 0, nil
	}
	var it cartItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, 0, err
	}
	return &it.Cart, it.Version, nil
}

func (s *CartRepository) ListByOwner(ctx context.Context, owner string) ([]types.Cart, error) {
	out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkOwner(owner)},
			":sk": &ddbTypes.AttributeValueMemberS{Value: SCart + "#"},
		},
		ConsistentRead:   awsBool(true),
		ScanIndexForward: awsBool(true),
	})
	if err != nil {
		return nil, err
	}
	carts := make([]types.Cart, 0, len(out.Items))
	for _, item := range out.Items {
		var oi ownerItem
		if err := attributevalue.UnmarshalMap(item, &oi); err != nil {
			return nil, err
		}
		id := oi.CartID
		if id == "" {
			if id, err = parseOwnerCartID(oi.SK); err != nil {
				return nil, err
			}
		}
		c, _, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			carts = append(carts, *c)
		}
	}
	return carts, nil
}

// UpsertCAS creates or replaces the cart only if ver matches prevVersion.
// On create (prevVersion==0), the cart and its owner index item are written in one transaction and
// the cart must not exist (attribute_not_exists).
func (s *CartRepository) UpsertCAS(ctx context.Context, prevVersion int64, next types.Cart) (bool, error) {
	item, err := attributevalue.MarshalMap(cartItem{
		PK:    pkCart(next.ID),
		SK:    skCart(),
		Owner: next.Owner(),
		Cart:  next,
	})
	if err != nil {
		return false, err
	}

	if prevVersion == 0 {
		index, err := attributevalue.MarshalMap(ownerItem{
			PK:     pkOwner(next.Owner()),
			SK:     skOwnerCart(next.CreatedAt.UnixNano(), next.ID),
			CartID: next.ID,
		})
		if err != nil {
			return false, err
		}
		_, err = s.cli.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []ddbTypes.TransactWriteItem{
				{Put: &ddbTypes.Put{
					TableName:           &s.table,
					Item:                item,
					ConditionExpression: awsString("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				}},
				{Put: &ddbTypes.Put{
					TableName: &s.table,
					Item:      index,
				}},
			},
		})
		if err != nil {
			var tc *ddbTypes.TransactionCanceledException
			if errorAs(err, &tc) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	// Replace under condition ver == prevVersion
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                &s.table,
		Item:                     item,
		ConditionExpression:      awsString("#ver = :prev"),
		ExpressionAttributeNames: map[string]string{"#ver": "ver"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":prev": &ddbTypes.AttributeValueMemberN{Value: itoa(prevVersion)},
		},
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *CartRepository) DeleteCAS(ctx context.Context, cartID string, prevVersion int64) (bool, error) {
	out, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                &s.table,
		Key:                      cartKey(cartID),
		ConditionExpression:      awsString("#ver = :prev"),
		ExpressionAttributeNames: map[string]string{"#ver": "ver"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":prev": &ddbTypes.AttributeValueMemberN{Value: itoa(prevVersion)},
		},
		ReturnValues: ddbTypes.ReturnValueAllOld,
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return false, nil
		}
		return false, err
	}
	var old cartItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return true, err
	}
	_, err = s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkOwner(old.Owner)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skOwnerCart(old.CreatedAt.UnixNano(), cartID)},
		},
	})
	return true, err
}

// ClearAll deletes every cart and owner index item. The KV items share the table and are left alone.
func (s *CartRepository) ClearAll(ctx context.Context) error {
	var start map[string]ddbTypes.AttributeValue
	for {
		out, err := s.cli.Scan(ctx, &dynamodb.ScanInput{
			TableName:            &s.table,
			FilterExpression:     awsString("begins_with(PK, :cart) OR begins_with(PK, :owner)"),
			ProjectionExpression: awsString("PK, SK"),
			ExclusiveStartKey:    start,
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":cart":  &ddbTypes.AttributeValueMemberS{Value: SCart + "#"},
				":owner": &ddbTypes.AttributeValueMemberS{Value: SOwner + "#"},
			},
		})
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			if _, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: &s.table,
				Key:       map[string]ddbTypes.AttributeValue{"PK": item["PK"], "SK": item["SK"]},
			}); err != nil {
				return err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}

func cartKey(cartID string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkCart(cartID)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skCart()},
	}
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }
