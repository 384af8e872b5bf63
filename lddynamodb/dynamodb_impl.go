package lddynamodb

// Implementation notes:
//
// - Feature flags, segments, and any other kind of entity the data system may
// wish to store, are all put in the same table. The only two required
// attributes are "key" (which is present in all storeable entities) and
// "namespace" (which is used to disambiguate between flags and segments).
//
// - Because of DynamoDB's restrictions on attribute values (e.g. empty strings
// are not allowed), the standard DynamoDB marshaling mechanism with one
// attribute per object property is not used. Instead, the entire object is
// serialized to JSON and stored in a single attribute, "item". The "version"
// property is also stored as a separate attribute since it is used for
// updates.
//
// - Since DynamoDB doesn't have transactions, the Init method, which replaces
// the entire data store, is not atomic, so there can be a race condition if
// another process is adding new data via Upsert. To minimize this, we don't
// delete all the data at the start; instead, we update the items we've
// received, and then delete all other items. That could potentially result in
// deleting new data from another process, but that would be the case anyway if
// the Init happened to execute later than the Upsert; we are relying on the
// fact that normally the process that did the Init will also receive the new
// data shortly and do its own Upsert.
//
// - DynamoDB has a maximum item size of 400KB. Since each feature flag or
// segment is stored as a single item, this mechanism will not work for
// extremely large flags or segments.

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/go-datasystem/subsystems/ldstoretypes"
)

const (
	// Schema of the DynamoDB table
	tablePartitionKey = "namespace"
	tableSortKey      = "key"
	versionAttribute  = "version"
	itemJSONAttribute = "item"

	batchWriteMaxItems = 25
)

type namespaceAndKey struct {
	namespace string
	key       string
}

// Internal implementation of the PersistentDataStore interface for DynamoDB.
type dynamoDBDataStore struct {
	client         *dynamodb.Client
	context        context.Context
	cancelContext  context.CancelFunc
	table          string
	prefix         string
	loggers        ldlog.Loggers
	testUpdateHook func() // Used only by unit tests - see Upsert
}

func newDynamoDBDataStoreImpl(builder *DataStoreBuilder, loggers ldlog.Loggers) (*dynamoDBDataStore, error) {
	if builder.table == "" {
		return nil, errors.New("table name is required")
	}

	client := builder.client
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("unable to configure DynamoDB client: %s", err)
		}
		client = dynamodb.NewFromConfig(awsCfg, builder.clientOptions...)
	}

	ctx, cancelCtx := context.WithCancel(context.Background())

	store := &dynamoDBDataStore{
		client:        client,
		context:       ctx,
		cancelContext: cancelCtx,
		table:         builder.table,
		prefix:        builder.prefix,
		loggers:       loggers, // copied by value so we can modify it
	}
	store.loggers.SetPrefix("DynamoDBDataStore:")
	store.loggers.Infof(`Using DynamoDB table %s`, store.table)

	return store, nil
}

func (store *dynamoDBDataStore) Init(allData []ldstoretypes.SerializedCollection) error {
	// Start by reading the existing keys; we will later delete any of these
	// that weren't in allData.
	unusedOldKeys, err := store.readExistingKeys(allData)
	if err != nil {
		return fmt.Errorf("failed to get existing items prior to Init: %s", err)
	}

	requests := make([]types.WriteRequest, 0)
	numItems := 0

	// Insert or update every provided item
	for _, coll := range allData {
		for _, item := range coll.Items {
			av := store.encodeItem(coll.Kind, item.Key, item.Item)
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: av},
			})
			nk := namespaceAndKey{namespace: store.namespaceForKind(coll.Kind), key: item.Key}
			unusedOldKeys[nk] = false
			numItems++
		}
	}

	// Now delete any previously existing items whose keys were not in the
	// current data
	initedKey := store.initedKey()
	for k, v := range unusedOldKeys {
		if v && k.namespace != initedKey {
			delKey := map[string]types.AttributeValue{
				tablePartitionKey: attrValueOfString(k.namespace),
				tableSortKey:      attrValueOfString(k.key),
			}
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: delKey},
			})
		}
	}

	// Now set the special key that we check in IsInitialized
	initedItem := map[string]types.AttributeValue{
		tablePartitionKey: attrValueOfString(initedKey),
		tableSortKey:      attrValueOfString(initedKey),
	}
	requests = append(requests, types.WriteRequest{
		PutRequest: &types.PutRequest{Item: initedItem},
	})

	if err := store.batchWriteRequests(requests); err != nil {
		return fmt.Errorf("failed to write %d items(s) in batches: %s", len(requests), err)
	}

	store.loggers.Infof("Initialized table %q with %d item(s)", store.table, numItems)

	return nil
}

func (store *dynamoDBDataStore) IsInitialized() bool {
	result, err := store.client.GetItem(store.context, &dynamodb.GetItemInput{
		TableName:      aws.String(store.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			tablePartitionKey: attrValueOfString(store.initedKey()),
			tableSortKey:      attrValueOfString(store.initedKey()),
		},
	})
	return err == nil && len(result.Item) != 0
}

func (store *dynamoDBDataStore) GetAll(
	kind ldstoretypes.DataKind,
) ([]ldstoretypes.KeyedSerializedItemDescriptor, error) {
	var results []ldstoretypes.KeyedSerializedItemDescriptor
	paginator := dynamodb.NewQueryPaginator(store.client, store.makeQueryForKind(kind))
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(store.context)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if key, serializedItemDesc, ok := store.decodeItem(item); ok {
				results = append(results, ldstoretypes.KeyedSerializedItemDescriptor{
					Key:  key,
					Item: serializedItemDesc,
				})
			}
		}
	}
	return results, nil
}

func (store *dynamoDBDataStore) Get(
	kind ldstoretypes.DataKind,
	key string,
) (ldstoretypes.SerializedItemDescriptor, error) {
	result, err := store.client.GetItem(store.context, &dynamodb.GetItemInput{
		TableName:      aws.String(store.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			tablePartitionKey: attrValueOfString(store.namespaceForKind(kind)),
			tableSortKey:      attrValueOfString(key),
		},
	})
	if err != nil {
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(),
			fmt.Errorf("failed to get %s key %s: %s", kind.Name(), key, err)
	}

	if len(result.Item) == 0 {
		if store.loggers.IsDebugEnabled() {
			store.loggers.Debugf("Item not found (key=%s)", key)
		}
		return ldstoretypes.SerializedItemDescriptor{}.NotFound(), nil
	}

	if _, serializedItemDesc, ok := store.decodeItem(result.Item); ok {
		return serializedItemDesc, nil
	}
	return ldstoretypes.SerializedItemDescriptor{}.NotFound(),
		fmt.Errorf("invalid data for %s key %s", kind.Name(), key)
}

func (store *dynamoDBDataStore) Upsert(
	kind ldstoretypes.DataKind,
	key string,
	newItem ldstoretypes.SerializedItemDescriptor,
) (bool, error) {
	av := store.encodeItem(kind, key, newItem)

	if store.testUpdateHook != nil {
		store.testUpdateHook()
	}

	_, err := store.client.PutItem(store.context, &dynamodb.PutItemInput{
		TableName: aws.String(store.table),
		Item:      av,
		ConditionExpression: aws.String(
			"attribute_not_exists(#namespace) or " +
				"attribute_not_exists(#key) or " +
				":version > #version",
		),
		ExpressionAttributeNames: map[string]string{
			"#namespace": tablePartitionKey,
			"#key":       tableSortKey,
			"#version":   versionAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: strconv.Itoa(newItem.Version)},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			if store.loggers.IsDebugEnabled() {
				store.loggers.Debugf("Not updating item due to condition (namespace=%s key=%s version=%d)",
					kind.Name(), key, newItem.Version)
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to put %s key %s: %s", kind.Name(), key, err)
	}

	return true, nil
}

func (store *dynamoDBDataStore) IsStoreAvailable() bool {
	// There doesn't seem to be a specific DynamoDB API for just testing the
	// connection. We will just do a simple query for the "inited" key, and
	// test whether we get an error ("not found" does not count as an error).
	_, err := store.client.GetItem(store.context, &dynamodb.GetItemInput{
		TableName:      aws.String(store.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			tablePartitionKey: attrValueOfString(store.initedKey()),
			tableSortKey:      attrValueOfString(store.initedKey()),
		},
	})
	return err == nil
}

func (store *dynamoDBDataStore) Close() error {
	store.cancelContext()
	return nil
}

func (store *dynamoDBDataStore) prefixedNamespace(baseNamespace string) string {
	if store.prefix == "" {
		return baseNamespace
	}
	return store.prefix + ":" + baseNamespace
}

func (store *dynamoDBDataStore) namespaceForKind(kind ldstoretypes.DataKind) string {
	return store.prefixedNamespace(kind.Name())
}

func (store *dynamoDBDataStore) initedKey() string {
	return store.prefixedNamespace("$inited")
}

func (store *dynamoDBDataStore) makeQueryForKind(kind ldstoretypes.DataKind) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(store.table),
		ConsistentRead:            aws.Bool(true),
		KeyConditionExpression:    aws.String("#namespace = :namespace"),
		ExpressionAttributeNames:  map[string]string{"#namespace": tablePartitionKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{":namespace": attrValueOfString(store.namespaceForKind(kind))},
	}
}

func (store *dynamoDBDataStore) readExistingKeys(
	newData []ldstoretypes.SerializedCollection,
) (map[namespaceAndKey]bool, error) {
	keys := make(map[namespaceAndKey]bool)
	for _, coll := range newData {
		query := store.makeQueryForKind(coll.Kind)
		query.ProjectionExpression = aws.String("#namespace, #key")
		query.ExpressionAttributeNames["#key"] = tableSortKey
		paginator := dynamodb.NewQueryPaginator(store.client, query)
		for paginator.HasMorePages() {
			out, err := paginator.NextPage(store.context)
			if err != nil {
				return nil, err
			}
			for _, i := range out.Items {
				namespace, ok1 := stringAttrValue(i[tablePartitionKey])
				key, ok2 := stringAttrValue(i[tableSortKey])
				if ok1 && ok2 {
					keys[namespaceAndKey{namespace: namespace, key: key}] = true
				}
			}
		}
	}
	return keys, nil
}

// batchWriteRequests executes a list of write requests (PutItem or
// DeleteItem) in batches of 25, which is the maximum BatchWriteItem can
// handle.
func (store *dynamoDBDataStore) batchWriteRequests(requests []types.WriteRequest) error {
	for len(requests) > 0 {
		batchSize := len(requests)
		if batchSize > batchWriteMaxItems {
			batchSize = batchWriteMaxItems
		}
		batch := requests[:batchSize]
		requests = requests[batchSize:]

		_, err := store.client.BatchWriteItem(store.context, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{store.table: batch},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (store *dynamoDBDataStore) decodeItem(
	av map[string]types.AttributeValue,
) (string, ldstoretypes.SerializedItemDescriptor, bool) {
	key, keyOk := stringAttrValue(av[tableSortKey])
	versionStr, versionOk := numberAttrValue(av[versionAttribute])
	itemJSON, itemOk := stringAttrValue(av[itemJSONAttribute])
	if keyOk && versionOk && itemOk {
		v, _ := strconv.Atoi(versionStr)
		return key, ldstoretypes.SerializedItemDescriptor{
			Version:        v,
			SerializedItem: []byte(itemJSON),
		}, true
	}
	return "", ldstoretypes.SerializedItemDescriptor{}, false
}

func (store *dynamoDBDataStore) encodeItem(
	kind ldstoretypes.DataKind,
	key string,
	item ldstoretypes.SerializedItemDescriptor,
) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		tablePartitionKey: attrValueOfString(store.namespaceForKind(kind)),
		tableSortKey:      attrValueOfString(key),
		versionAttribute:  &types.AttributeValueMemberN{Value: strconv.Itoa(item.Version)},
		itemJSONAttribute: attrValueOfString(string(item.SerializedItem)),
	}
}

func attrValueOfString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func stringAttrValue(av types.AttributeValue) (string, bool) {
	if sValue, ok := av.(*types.AttributeValueMemberS); ok {
		return sValue.Value, true
	}
	return "", false
}

func numberAttrValue(av types.AttributeValue) (string, bool) {
	if nValue, ok := av.(*types.AttributeValueMemberN); ok {
		return nValue.Value, true
	}
	return "", false
}
