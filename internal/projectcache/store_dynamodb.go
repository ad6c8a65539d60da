package projectcache

import (
	"context"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	tablePartitionKey = "namespace"
	tableSortKey      = "key"
	tableItemAttr     = "item"

	defaultDynamoDBTable = "relay-projects"
)

type dynamoDBStore struct {
	client  *dynamodb.Client
	table   string
	prefix  string
	loggers ldlog.Loggers
}

func newDynamoDBStore(
	dbConfig config.DynamoDBConfig,
	optFns []func(*dynamodb.Options),
	loggers ldlog.Loggers,
) (*dynamoDBStore, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	if dbConfig.URL.IsDefined() {
		endpoint := dbConfig.URL.String()
		optFns = append(optFns, func(o *dynamodb.Options) {
			o.EndpointResolver = dynamodb.EndpointResolverFromURL(endpoint)
		})
	}
	table := dbConfig.TableName
	if table == "" {
		table = defaultDynamoDBTable
	}

	store := &dynamoDBStore{
		client:  dynamodb.NewFromConfig(awsConfig, optFns...),
		table:   table,
		prefix:  dbConfig.Prefix,
		loggers: loggers,
	}
	store.loggers.SetPrefix("[DynamoDBProjectStore]")
	store.loggers.Infof(logMsgUsingDynamoDBTable, store.table)
	return store, nil
}

func (s *dynamoDBStore) Name() string { return "DynamoDB" }

func (s *dynamoDBStore) itemKey(key basictypes.ProjectKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		tablePartitionKey: attrValueOfString(prefixedKey(s.prefix, storeKeyPrefix)),
		tableSortKey:      attrValueOfString(string(key)),
	}
}

func (s *dynamoDBStore) Get(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key:            s.itemKey(key),
	})
	if err != nil || len(result.Item) == 0 {
		return nil, err
	}
	if sValue, ok := result.Item[tableItemAttr].(*types.AttributeValueMemberS); ok {
		return decodeState([]byte(sValue.Value))
	}
	return nil, nil
}

func (s *dynamoDBStore) Put(ctx context.Context, key basictypes.ProjectKey, state *dynconfig.ProjectState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	item := s.itemKey(key)
	item[tableItemAttr] = attrValueOfString(string(data))
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

func (s *dynamoDBStore) Close() error {
	return nil
}

func attrValueOfString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}
