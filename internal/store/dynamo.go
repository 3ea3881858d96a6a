package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/imrishuroy/storykeeper/internal/aws"
)

// Dynamo is a Store backed by DynamoDB, one table per collection. Each
// table's partition key is the collection key field (string).
type Dynamo struct {
	client aws.DynamoDBAPI
	prefix string
	newID  func() string
}

// NewDynamo returns a Dynamo store. Table names are prefix + collection name.
func NewDynamo(client aws.DynamoDBAPI, prefix string) *Dynamo {
	return &Dynamo{client: client, prefix: prefix, newID: uuid.NewString}
}

func (d *Dynamo) table(c Collection) *string {
	name := d.prefix + c.Name
	return &name
}

func keyAttr(c Collection, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		c.Key: &types.AttributeValueMemberS{Value: key},
	}
}

func (d *Dynamo) FindByKey(ctx context.Context, c Collection, key string, out any) error {
	res, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: d.table(c),
		Key:       keyAttr(c, key),
	})
	if err != nil {
		return fmt.Errorf("get item %s/%s: %w", c.Name, key, err)
	}
	if len(res.Item) == 0 {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", c.Name, key, err)
	}
	return nil
}

func (d *Dynamo) FindMatching(ctx context.Context, c Collection, filter Filter, out any) error {
	items, err := d.scan(ctx, c, filter)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", c.Name, err)
	}
	return nil
}

func (d *Dynamo) Upsert(ctx context.Context, c Collection, key string, fields any) (UpsertResult, error) {
	set, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("marshal fields: %w", err)
	}
	delete(set, c.Key)
	if len(set) == 0 {
		return UpsertResult{}, ErrEmptyUpdate
	}

	expr, names, values := setExpression(set)
	res, err := d.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 d.table(c),
		Key:                       keyAttr(c, key),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert %s/%s: %w", c.Name, key, err)
	}
	if len(res.Attributes) == 0 {
		return UpsertResult{Upserted: true}, nil
	}
	return UpsertResult{Matched: 1}, nil
}

func (d *Dynamo) Insert(ctx context.Context, c Collection, doc any) (string, error) {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	key := ""
	if s, ok := item[c.Key].(*types.AttributeValueMemberS); ok {
		key = s.Value
	}
	if key == "" {
		key = d.newID()
		item[c.Key] = &types.AttributeValueMemberS{Value: key}
	}

	_, err = d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                d.table(c),
		Item:                     item,
		ConditionExpression:      awsString("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": c.Key},
	})
	if err != nil {
		if conditionFailed(err) {
			return "", fmt.Errorf("insert %s/%s: %w", c.Name, key, ErrDuplicateKey)
		}
		return "", fmt.Errorf("put item %s: %w", c.Name, err)
	}
	return key, nil
}

func (d *Dynamo) UpdateMatching(ctx context.Context, c Collection, filter Filter, set any) (int64, error) {
	fields, err := attributevalue.MarshalMap(set)
	if err != nil {
		return 0, fmt.Errorf("marshal fields: %w", err)
	}
	delete(fields, c.Key)
	if len(fields) == 0 {
		return 0, ErrEmptyUpdate
	}

	keys, err := d.targetKeys(ctx, c, filter)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, key := range keys {
		expr, names, values := setExpression(fields)
		cond, cnames, cvalues, err := condition(c, filter)
		if err != nil {
			return n, err
		}
		merge(names, values, cnames, cvalues)

		_, err = d.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:                 d.table(c),
			Key:                       keyAttr(c, key),
			UpdateExpression:          &expr,
			ConditionExpression:       &cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if err != nil {
			// the document changed or vanished since it matched
			if conditionFailed(err) {
				continue
			}
			return n, fmt.Errorf("update %s/%s: %w", c.Name, key, err)
		}
		n++
	}
	return n, nil
}

func (d *Dynamo) DeleteMatching(ctx context.Context, c Collection, filter Filter) (int64, error) {
	keys, err := d.targetKeys(ctx, c, filter)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, key := range keys {
		cond, names, values, err := condition(c, filter)
		if err != nil {
			return n, err
		}
		in := &dyn.DeleteItemInput{
			TableName:                d.table(c),
			Key:                      keyAttr(c, key),
			ConditionExpression:      &cond,
			ExpressionAttributeNames: names,
		}
		if len(values) > 0 {
			in.ExpressionAttributeValues = values
		}
		if _, err := d.client.DeleteItem(ctx, in); err != nil {
			if conditionFailed(err) {
				continue
			}
			return n, fmt.Errorf("delete %s/%s: %w", c.Name, key, err)
		}
		n++
	}
	return n, nil
}

// targetKeys resolves the keys a filter can touch. A filter on the key
// field needs no scan.
func (d *Dynamo) targetKeys(ctx context.Context, c Collection, filter Filter) ([]string, error) {
	if k, ok := filter[c.Key].(string); ok {
		return []string{k}, nil
	}
	items, err := d.scan(ctx, c, filter)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it[c.Key].(*types.AttributeValueMemberS); ok {
			keys = append(keys, s.Value)
		}
	}
	return keys, nil
}

func (d *Dynamo) scan(ctx context.Context, c Collection, filter Filter) ([]map[string]types.AttributeValue, error) {
	in := &dyn.ScanInput{TableName: d.table(c)}
	if len(filter) > 0 {
		expr, names, values, err := equalities(filter, "f")
		if err != nil {
			return nil, err
		}
		in.FilterExpression = &expr
		in.ExpressionAttributeNames = names
		in.ExpressionAttributeValues = values
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := d.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.Name, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// condition builds the guard for a single-item write: the item must exist
// and still match every filter field.
func condition(c Collection, filter Filter) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{"#pk": c.Key}
	values := map[string]types.AttributeValue{}
	parts := []string{"attribute_exists(#pk)"}

	rest := Filter{}
	for k, v := range filter {
		if k != c.Key {
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		expr, n, v, err := equalities(rest, "c")
		if err != nil {
			return "", nil, nil, err
		}
		parts = append(parts, expr)
		merge(names, values, n, v)
	}
	return strings.Join(parts, " AND "), names, values, nil
}

func equalities(filter Filter, prefix string) (string, map[string]string, map[string]types.AttributeValue, error) {
	fields := make([]string, 0, len(filter))
	for k := range filter {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		av, err := attributevalue.Marshal(filter[f])
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal filter %s: %w", f, err)
		}
		n := fmt.Sprintf("#%s%d", prefix, i)
		v := fmt.Sprintf(":%s%d", prefix, i)
		names[n] = f
		values[v] = av
		parts = append(parts, n+" = "+v)
	}
	return strings.Join(parts, " AND "), names, values, nil
}

func setExpression(fields map[string]types.AttributeValue) (string, map[string]string, map[string]types.AttributeValue) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	parts := make([]string, 0, len(keys))
	for i, k := range keys {
		n := fmt.Sprintf("#s%d", i)
		v := fmt.Sprintf(":s%d", i)
		names[n] = k
		values[v] = fields[k]
		parts = append(parts, n+" = "+v)
	}
	return "SET " + strings.Join(parts, ", "), names, values
}

func merge(names map[string]string, values map[string]types.AttributeValue, n map[string]string, v map[string]types.AttributeValue) {
	for k, x := range n {
		names[k] = x
	}
	for k, x := range v {
		values[k] = x
	}
}

func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
