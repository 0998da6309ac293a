package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo implements dynamoAPI over an in-memory item map, enough to
// exercise the single-table layout without AWS.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue // "PK|SK" -> item
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// Query supports the one shape DynamoStore issues: PK equality plus an
// SK begins_with, descending, with a limit.
func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	prefix := in.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		itemPK := item["PK"].(*types.AttributeValueMemberS).Value
		itemSK := item["SK"].(*types.AttributeValueMemberS).Value
		if itemPK == pk && strings.HasPrefix(itemSK, prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		si := matched[i]["SK"].(*types.AttributeValueMemberS).Value
		sj := matched[j]["SK"].(*types.AttributeValueMemberS).Value
		return si > sj
	})
	if in.Limit != nil && len(matched) > int(*in.Limit) {
		matched = matched[:int(*in.Limit)]
	}
	return &dynamodb.QueryOutput{Items: matched}, nil
}

func TestDynamoStore(t *testing.T) {
	storeConformance(t, func(t *testing.T) Store[payload] {
		st, err := NewDynamoStore[payload](newFakeDynamo(), "threads")
		if err != nil {
			t.Fatalf("NewDynamoStore failed: %v", err)
		}
		return st
	})

	t.Run("rejects nil client", func(t *testing.T) {
		if _, err := NewDynamoStore[payload](nil, "threads"); err == nil {
			t.Error("expected error for nil client")
		}
	})

	t.Run("rejects empty table name", func(t *testing.T) {
		if _, err := NewDynamoStore[payload](newFakeDynamo(), "  "); err == nil {
			t.Error("expected error for empty table name")
		}
	})

	t.Run("step sort key pads for lexicographic ordering", func(t *testing.T) {
		ctx := context.Background()
		st, err := NewDynamoStore[payload](newFakeDynamo(), "threads")
		if err != nil {
			t.Fatalf("NewDynamoStore failed: %v", err)
		}

		// Step 10 must sort after step 9 as a string.
		for _, step := range []int{9, 10, 2} {
			if err := st.SaveStep(ctx, "t-pad", step, "assistant", payload{Counter: step}); err != nil {
				t.Fatalf("SaveStep(%d) failed: %v", step, err)
			}
		}

		got, step, err := st.LoadLatest(ctx, "t-pad")
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if step != 10 || got.Counter != 10 {
			t.Errorf("got step=%d counter=%d, want 10", step, got.Counter)
		}
	})

	t.Run("query error surfaces", func(t *testing.T) {
		st, err := NewDynamoStore[payload](failingDynamo{}, "threads")
		if err != nil {
			t.Fatalf("NewDynamoStore failed: %v", err)
		}
		if _, _, err := st.LoadLatest(context.Background(), "t"); err == nil {
			t.Error("expected query error to surface")
		}
	})
}

type failingDynamo struct{}

func (failingDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("put failed")
}

func (failingDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return nil, errors.New("get failed")
}

func (failingDynamo) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("query failed")
}
