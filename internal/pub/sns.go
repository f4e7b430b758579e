// Package pub delivers cart events: an SNS topic in production, the log otherwise.
package pub

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
)

const SNSEndpointKey = "SNS_ENDPOINT"

type snsPub struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *snsPub { return &snsPub{cli: c} }

// PublishRaw publishes a JSON event. The event type travels as a message attribute so subscribers
// can filter on it.
func (s *snsPub) PublishRaw(ctx context.Context, arn string, payload []byte) error {
	attrs := map[string]types.MessageAttributeValue{
		"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
	}
	if t := eventType(payload); t != "" {
		attrs["event-type"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(t)}
	}
	_, err := s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn:          &arn,
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	})
	return err
}

func eventType(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return ""
	}
	return head.Type
}

// SNSFromEnv builds the SNS publisher. SNS_ENDPOINT points it at a local emulator with static
// test credentials.
func SNSFromEnv(ctx context.Context) (*snsPub, error) {
	var snsEndpoint *string
	if se := os.Getenv(SNSEndpointKey); se != "" {
		snsEndpoint = aws.String(se)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if snsEndpoint != nil {
			o.BaseEndpoint = snsEndpoint
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	})
	return NewSNS(snsClient), nil
}
