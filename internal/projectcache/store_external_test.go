//go:build external_store_tests
// +build external_store_tests

package projectcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/redis"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	testTableName  = "RELAY_DYNAMODB_TEST_TABLE"
	localDynamoURL = "http://localhost:8000"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()
	state, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	if state != nil {
		t.Logf("%s already had a state for the test key", store.Name())
	}

	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.Put(ctx, testKey, &dynconfig.ProjectState{
		ProjectID:  7,
		Slug:       "stored",
		PublicKeys: []dynconfig.PublicKeyConfig{{PublicKey: testKey}},
		Config:     dynconfig.DefaultProjectConfig(),
		LastFetch:  &now,
	}))

	state, err = store.Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "stored", state.Slug)
	require.NotNil(t, state.LastFetch)
	assert.True(t, now.Equal(*state.LastFetch))

	state, err = store.Get(ctx, otherKey)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRedisStore(t *testing.T) {
	var rc config.RedisConfig
	rc.URL, _ = ct.NewOptURLAbsoluteFromString("redis://localhost:6379")
	rc.Prefix = "test:"
	store, err := newRedisStore(redis.ConfigFromRelayConfig(rc), time.Minute, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	testStoreRoundTrip(t, store)
}

func TestConsulStore(t *testing.T) {
	store, err := newConsulStore(config.ConsulConfig{Host: "localhost:8500", Prefix: "test"}, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	testStoreRoundTrip(t, store)
}

func TestDynamoDBStore(t *testing.T) {
	t.Setenv("AWS_REGION", "us-west-2")
	var dc config.DynamoDBConfig
	dc.Enabled = true
	dc.TableName = testTableName
	dc.URL, _ = ct.NewOptURLAbsoluteFromString(localDynamoURL)
	optFns := []func(*dynamodb.Options){
		func(o *dynamodb.Options) {
			o.Credentials = credentials.NewStaticCredentialsProvider("dummy", "not", "used")
		},
	}
	store, err := newDynamoDBStore(dc, optFns, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	require.NoError(t, createTableIfNecessary(store.client))
	testStoreRoundTrip(t, store)
}

func createTableIfNecessary(client *dynamodb.Client) error {
	ctx := context.Background()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(testTableName)}); err == nil {
		return nil
	}
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(testTableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(tablePartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(tableSortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(tablePartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(tableSortKey), KeyType: types.KeyTypeRange},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	})
	return err
}
