package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Services selects which clients a process needs.
type Services struct {
	Ledger  bool // DynamoDB
	Queue   bool // SQS
	Metrics bool // CloudWatch
}

// Any reports whether at least one service is selected.
func (s Services) Any() bool { return s.Ledger || s.Queue || s.Metrics }

// AWSClients holds the clients behind the ledger, the remote dispatch queue
// and delivery metrics. Clients that were not requested are nil.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads the shared AWS config and builds the requested clients.
func NewAWSClients(ctx context.Context, want Services) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ClientsFromConfig(cfg, want), nil
}

// ClientsFromConfig builds the requested clients from an already loaded config.
func ClientsFromConfig(cfg sdkaws.Config, want Services) *AWSClients {
	c := &AWSClients{}
	if want.Ledger {
		c.DynamoDB = dynamodb.NewFromConfig(cfg)
	}
	if want.Queue {
		c.SQS = sqs.NewFromConfig(cfg)
	}
	if want.Metrics {
		c.CloudWatch = cloudwatch.NewFromConfig(cfg)
	}
	return c
}
