package dynamo_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-process stand-in for DynamoDB that understands the
// handful of expressions the engine sends.
type fakeClient struct {
	mu      sync.Mutex
	tables  map[string][]map[string]types.AttributeValue
	queries []*dynamodb.QueryInput
	scans   []*dynamodb.ScanInput
	created []*dynamodb.CreateTableInput
	updates []*dynamodb.UpdateItemInput
	err     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string][]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	if v, ok := item["_id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeClient) find(table, id string) (int, map[string]types.AttributeValue) {
	for i, item := range f.tables[table] {
		if keyOf(item) == id {
			return i, item
		}
	}
	return -1, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// sameStrings compares a stored list with an expected one; a missing
// attribute or expectation counts as the empty list.
func sameStrings(stored, want types.AttributeValue) bool {
	values := func(v types.AttributeValue) []string {
		l, _ := v.(*types.AttributeValueMemberL)
		if l == nil {
			return nil
		}
		out := make([]string, 0, len(l.Value))
		for _, e := range l.Value {
			if s, ok := e.(*types.AttributeValueMemberS); ok {
				out = append(out, s.Value)
			}
		}
		return out
	}
	a, b := values(stored), values(want)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	_, item := f.find(*in.TableName, keyOf(in.Key))
	if item == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	i, _ := f.find(table, keyOf(in.Item))
	if i >= 0 {
		if in.ConditionExpression != nil {
			return nil, conditionFailed()
		}
		f.tables[table][i] = in.Item
		return &dynamodb.PutItemOutput{}, nil
	}
	f.tables[table] = append(f.tables[table], in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, in)
	_, item := f.find(*in.TableName, keyOf(in.Key))
	if item == nil {
		return nil, conditionFailed()
	}
	field := in.ExpressionAttributeNames["#f"]
	if next, ok := in.ExpressionAttributeValues[":next"]; ok {
		if !sameStrings(item[field], in.ExpressionAttributeValues[":old"]) {
			failed := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
			if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
				failed.Item = copyItem(item)
			}
			return nil, failed
		}
		item[field] = next
		return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
	}
	var list []types.AttributeValue
	if existing, ok := item[field].(*types.AttributeValueMemberL); ok {
		list = append(list, existing.Value...)
	}
	list = append(list, in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberL).Value...)
	item[field] = &types.AttributeValueMemberL{Value: list}

	return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	table := *in.TableName
	i, _ := f.find(table, keyOf(in.Key))
	if i < 0 {
		return nil, conditionFailed()
	}
	f.tables[table] = append(f.tables[table][:i], f.tables[table][i+1:]...)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) match(table string, names map[string]string, values map[string]types.AttributeValue) []map[string]types.AttributeValue {
	field := names["#f"]
	want := values[":v"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, item := range f.tables[table] {
		if v, ok := item[field].(*types.AttributeValueMemberS); ok && v.Value == want {
			out = append(out, copyItem(item))
		}
	}
	return out
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, in)
	return &dynamodb.QueryOutput{Items: f.match(*in.TableName, in.ExpressionAttributeNames, in.ExpressionAttributeValues)}, nil
}

func (f *fakeClient) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.scans = append(f.scans, in)
	return &dynamodb.ScanOutput{Items: f.match(*in.TableName, in.ExpressionAttributeNames, in.ExpressionAttributeValues)}, nil
}

func (f *fakeClient) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeClient) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   in.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}
