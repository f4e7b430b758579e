package ddb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SKV    = "KV"
	SCart  = "CART"
	SOwner = "OWNER"
)

func pkKV(key string) string      { return fmt.Sprintf("%s#%s", SKV, key) }
func skValue() string             { return "VALUE" }
func pkCart(id string) string     { return fmt.Sprintf("%s#%s", SCart, id) }
func skCart() string              { return SCart }
func pkOwner(owner string) string { return fmt.Sprintf("%s#%s", SOwner, owner) }

// skOwnerCart is zero padded so the owner's range keys sort in creation order.
func skOwnerCart(createdNano int64, id string) string {
	return fmt.Sprintf("%s#%020d#%s", SCart, createdNano, id)
}

func parseOwnerCartID(sk string) (string, error) {
	parts := strings.SplitN(sk, "#", 3)
	if len(parts) != 3 || parts[0] != SCart || parts[2] == "" {
		return "", fmt.Errorf("invalid owner cart key %q", sk)
	}
	return parts[2], nil
}

func createTableIfNotExists(client *dynamodb.Client, table string) {
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.Fatalf("Failed to create table %s: %v", table, err)
	}
}

func awsString(s string) *string         { return &s }
func awsBool(b bool) *bool               { return &b }
func errorAs(err error, target any) bool { return errors.As(err, target) }
