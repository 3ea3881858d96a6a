package store

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo keeps one map per table and understands the small expression
// grammar the Dynamo store emits: SET lists, equality conditions joined by
// AND, and attribute_exists / attribute_not_exists.
type mockDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int

	scanCalls int
	failPut   error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) table(name *string) map[string]map[string]types.AttributeValue {
	t, ok := m.tables[*name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		m.tables[*name] = t
	}
	return t
}

func singleKey(key map[string]types.AttributeValue) (string, string, error) {
	if len(key) != 1 {
		return "", "", errors.New("mock supports a single partition key")
	}
	for field, v := range key {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", "", errors.New("key must be a string")
		}
		return field, s.Value, nil
	}
	return "", "", nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, k, err := singleKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table(params.TableName)[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut != nil {
		return nil, m.failPut
	}
	field := params.ExpressionAttributeNames["#pk"]
	s, ok := params.Item[field].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	t := m.table(params.TableName)
	if !eval(aString(params.ConditionExpression), t[s.Value], params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	t[s.Value] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	field, k, err := singleKey(params.Key)
	if err != nil {
		return nil, err
	}
	t := m.table(params.TableName)
	old, exists := t[k]
	if !eval(aString(params.ConditionExpression), old, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}

	item := copyItem(old)
	if item == nil {
		item = map[string]types.AttributeValue{field: &types.AttributeValueMemberS{Value: k}}
	}
	expr := strings.TrimPrefix(aString(params.UpdateExpression), "SET ")
	for _, assign := range strings.Split(expr, ", ") {
		lr := strings.SplitN(assign, " = ", 2)
		if len(lr) != 2 {
			return nil, errors.New("unsupported update expression")
		}
		item[params.ExpressionAttributeNames[lr[0]]] = params.ExpressionAttributeValues[lr[1]]
	}
	t[k] = item

	out := &dyn.UpdateItemOutput{}
	if exists && params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = copyItem(old)
	}
	return out, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, k, err := singleKey(params.Key)
	if err != nil {
		return nil, err
	}
	t := m.table(params.TableName)
	if !eval(aString(params.ConditionExpression), t[k], params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(t, k)
	return &dyn.DeleteItemOutput{}, nil
}

// Scan walks items in key order, returning pageSize items per call when set.
func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCalls++

	t := m.table(params.TableName)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		_, after, err := singleKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, after) + 1
	}

	out := &dyn.ScanOutput{}
	for i := start; i < len(keys); i++ {
		if m.pageSize > 0 && i-start == m.pageSize {
			last := keys[i-1]
			for field := range firstKeyField(t[last]) {
				out.LastEvaluatedKey = map[string]types.AttributeValue{field: &types.AttributeValueMemberS{Value: last}}
			}
			break
		}
		item := t[keys[i]]
		if eval(aString(params.FilterExpression), item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	return out, nil
}

// firstKeyField finds the attribute holding the item's key. Test tables are
// keyed by one of the collection key fields below.
func firstKeyField(item map[string]types.AttributeValue) map[string]struct{} {
	for _, f := range []string{"_id", "email", "idempotency_key"} {
		if _, ok := item[f]; ok {
			return map[string]struct{}{f: {}}
		}
	}
	return nil
}

func eval(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == "" {
		return true
	}
	for _, part := range strings.Split(expr, " AND ") {
		switch {
		case strings.HasPrefix(part, "attribute_exists("):
			n := strings.TrimSuffix(strings.TrimPrefix(part, "attribute_exists("), ")")
			if _, ok := item[names[n]]; !ok {
				return false
			}
		case strings.HasPrefix(part, "attribute_not_exists("):
			n := strings.TrimSuffix(strings.TrimPrefix(part, "attribute_not_exists("), ")")
			if _, ok := item[names[n]]; ok {
				return false
			}
		default:
			lr := strings.SplitN(part, " = ", 2)
			if len(lr) != 2 || !reflect.DeepEqual(item[names[lr[0]]], values[lr[1]]) {
				return false
			}
		}
	}
	return true
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func aString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
