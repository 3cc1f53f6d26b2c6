package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

type deleteResult struct {
	out *dynamodb.DeleteItemOutput
	err error
}

type mockDynamo struct {
	putInputs    []*dynamodb.PutItemInput
	putErr       error
	getOutput    *dynamodb.GetItemOutput
	updateInputs []*dynamodb.UpdateItemInput
	updateOutput *dynamodb.UpdateItemOutput
	updateErr    error
	deleteInputs []*dynamodb.DeleteItemInput
	deleteOutput *dynamodb.DeleteItemOutput
	deleteQueue  []deleteResult
	deleteErr    error
	queryInputs  []dynamodb.QueryInput
	queryOutputs []*dynamodb.QueryOutput
	batchInputs  []*dynamodb.BatchWriteItemInput
	batchOutputs []*dynamodb.BatchWriteItemOutput
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInputs = append(m.putInputs, in)
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, in)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateOutput == nil {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return m.updateOutput, nil
}

func (m *mockDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.deleteInputs = append(m.deleteInputs, in)
	if len(m.deleteQueue) > 0 {
		next := m.deleteQueue[0]
		m.deleteQueue = m.deleteQueue[1:]
		if next.err != nil {
			return nil, next.err
		}
		if next.out == nil {
			return &dynamodb.DeleteItemOutput{}, nil
		}
		return next.out, nil
	}
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	if m.deleteOutput == nil || in.ReturnValues != types.ReturnValueAllOld {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	return m.deleteOutput, nil
}

func (m *mockDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInputs = append(m.queryInputs, *in)
	if len(m.queryOutputs) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := m.queryOutputs[0]
	m.queryOutputs = m.queryOutputs[1:]
	return out, nil
}

func (m *mockDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.batchInputs = append(m.batchInputs, in)
	if len(m.batchOutputs) == 0 {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	out := m.batchOutputs[0]
	m.batchOutputs = m.batchOutputs[1:]
	return out, nil
}

var testTables = DynamoTables{Users: "users", Conversations: "conversations", Analyses: "analyses"}

func newTestDynamo(m *mockDynamo) *DynamoStore {
	s := NewDynamoStore(m, testTables, logging.Discard())
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestDynamoGetOrCreateUserExisting(t *testing.T) {
	existing := users.New("u1", "a@example.com", time.Now())
	existing.Stats.TotalAnalyses = 9
	item, err := attributevalue.MarshalMap(existing)
	require.NoError(t, err)

	m := &mockDynamo{
		putErr:    &types.ConditionalCheckFailedException{Message: aws.String("exists")},
		getOutput: &dynamodb.GetItemOutput{Item: item},
	}
	s := newTestDynamo(m)

	u, err := s.GetOrCreateUser(context.Background(), "u1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 9, u.Stats.TotalAnalyses)
	require.Len(t, m.putInputs, 1)
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(m.putInputs[0].ConditionExpression))
}

func TestDynamoIncrementStat(t *testing.T) {
	m := &mockDynamo{}
	s := newTestDynamo(m)

	require.NoError(t, s.IncrementStat(context.Background(), "u1", users.StatOverthinkingInterventions, 1))
	require.Len(t, m.updateInputs, 1)
	in := m.updateInputs[0]
	assert.Equal(t, "ADD #stats.#stat :delta", aws.ToString(in.UpdateExpression))
	assert.Equal(t, users.StatOverthinkingInterventions, in.ExpressionAttributeNames["#stat"])

	m.updateErr = &types.ConditionalCheckFailedException{}
	assert.ErrorIs(t, s.IncrementStat(context.Background(), "ghost", users.StatTotalAnalyses, 1), ErrNotFound)
}

func TestDynamoGetConversationOwnership(t *testing.T) {
	item, err := attributevalue.MarshalMap(conversationItem{
		Conversation: Conversation{ID: "c1", UserID: "owner", Platform: "Hinge"},
	})
	require.NoError(t, err)
	s := newTestDynamo(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}})

	c, err := s.GetConversation(context.Background(), "owner", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hinge", c.Platform)
	assert.NotNil(t, c.Screenshots)

	_, err = s.GetConversation(context.Background(), "intruder", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoAppendScreenshot(t *testing.T) {
	m := &mockDynamo{updateOutput: &dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{
			"screenshots": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberM{}, &types.AttributeValueMemberM{},
			}},
		},
	}}
	s := newTestDynamo(m)

	idx, err := s.AppendScreenshot(context.Background(), "u1", "c1", Screenshot{ImageData: "abc", MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	in := m.updateInputs[0]
	assert.Equal(t, "user_id = :uid", aws.ToString(in.ConditionExpression))
	assert.Contains(t, aws.ToString(in.UpdateExpression), "list_append")

	m.updateErr = &types.ConditionalCheckFailedException{}
	_, err = s.AppendScreenshot(context.Background(), "u2", "c1", Screenshot{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoListConversationsPagesAndSkips(t *testing.T) {
	page1, page2 := make([]map[string]types.AttributeValue, 0), make([]map[string]types.AttributeValue, 0)
	for i := 0; i < 3; i++ {
		item, err := attributevalue.MarshalMap(conversationItem{Conversation: Conversation{ID: fmt.Sprintf("c%d", i), UserID: "u1"}})
		require.NoError(t, err)
		if i < 2 {
			page1 = append(page1, item)
		} else {
			page2 = append(page2, item)
		}
	}
	m := &mockDynamo{queryOutputs: []*dynamodb.QueryOutput{
		{Items: page1, LastEvaluatedKey: map[string]types.AttributeValue{"id": str("c1")}},
		{Items: page2},
	}}
	s := newTestDynamo(m)

	list, err := s.ListConversations(context.Background(), "u1", 2, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "c2", list[1].ID)
	require.Len(t, m.queryInputs, 2)
	assert.False(t, aws.ToBool(m.queryInputs[0].ScanIndexForward))
	assert.Equal(t, conversationsByUserIndex, aws.ToString(m.queryInputs[0].IndexName))
}

func TestDynamoCountByUserSumsPages(t *testing.T) {
	m := &mockDynamo{queryOutputs: []*dynamodb.QueryOutput{
		{Count: 40, LastEvaluatedKey: map[string]types.AttributeValue{"id": str("x")}},
		{Count: 15},
	}}
	s := newTestDynamo(m)

	n, err := s.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 55, n)
	assert.Equal(t, types.SelectCount, m.queryInputs[0].Select)
}

func TestDynamoDeleteAnalysisKeysBatches(t *testing.T) {
	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%d", i)
	}
	unprocessed := []types.WriteRequest{{DeleteRequest: &types.DeleteRequest{Key: idKey("a0")}}}
	m := &mockDynamo{batchOutputs: []*dynamodb.BatchWriteItemOutput{
		{UnprocessedItems: map[string][]types.WriteRequest{"analyses": unprocessed}},
		{},
		{},
	}}
	s := newTestDynamo(m)

	deleted, err := s.deleteAnalysisKeys(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 30, deleted)
	require.Len(t, m.batchInputs, 3)
	assert.Len(t, m.batchInputs[0].RequestItems["analyses"], 25)
	assert.Len(t, m.batchInputs[1].RequestItems["analyses"], 1)
	assert.Len(t, m.batchInputs[2].RequestItems["analyses"], 5)
}

func TestDynamoDeleteAnalysisRemovesEmptyConversation(t *testing.T) {
	old, err := attributevalue.MarshalMap(analysisItem{Analysis: analysis.Analysis{ID: "a1", UserID: "u1", ConversationID: "c1"}})
	require.NoError(t, err)
	m := &mockDynamo{
		deleteOutput: &dynamodb.DeleteItemOutput{Attributes: old},
		queryOutputs: []*dynamodb.QueryOutput{{Count: 0}},
	}
	s := newTestDynamo(m)

	require.NoError(t, s.DeleteAnalysis(context.Background(), "u1", "a1"))
	require.Len(t, m.deleteInputs, 2)
	assert.Equal(t, "analyses", aws.ToString(m.deleteInputs[0].TableName))
	assert.Equal(t, "conversations", aws.ToString(m.deleteInputs[1].TableName))
}

func TestDynamoDeleteAnalysisKeepsBusyConversation(t *testing.T) {
	old, err := attributevalue.MarshalMap(analysisItem{Analysis: analysis.Analysis{ID: "a1", UserID: "u1", ConversationID: "c1"}})
	require.NoError(t, err)
	m := &mockDynamo{
		deleteOutput: &dynamodb.DeleteItemOutput{Attributes: old},
		queryOutputs: []*dynamodb.QueryOutput{{Count: 1}},
	}
	s := newTestDynamo(m)

	require.NoError(t, s.DeleteAnalysis(context.Background(), "u1", "a1"))
	assert.Len(t, m.deleteInputs, 1)
}

func deletedAnalysis(t *testing.T, id, convID string) *dynamodb.DeleteItemOutput {
	t.Helper()
	old, err := attributevalue.MarshalMap(analysisItem{Analysis: analysis.Analysis{ID: id, UserID: "u1", ConversationID: convID}})
	require.NoError(t, err)
	return &dynamodb.DeleteItemOutput{Attributes: old}
}

func TestDynamoPruneAnalysesDropsEmptiedConversations(t *testing.T) {
	conv, err := attributevalue.MarshalMap(conversationItem{Conversation: Conversation{
		ID:          "c1",
		UserID:      "u1",
		Screenshots: []Screenshot{{StorageKey: "screenshots/u1/c1/0.png", MIMEType: "image/png"}},
	}})
	require.NoError(t, err)
	m := &mockDynamo{
		deleteQueue: []deleteResult{
			{out: deletedAnalysis(t, "a1", "c1")},
			{err: &types.ConditionalCheckFailedException{}},
			{out: deletedAnalysis(t, "a3", "c2")},
			{out: deletedAnalysis(t, "a4", "c1")},
			{out: &dynamodb.DeleteItemOutput{Attributes: conv}},
		},
		queryOutputs: []*dynamodb.QueryOutput{{Count: 0}, {Count: 2}},
	}
	s := newTestDynamo(m)

	pruned, err := s.PruneAnalyses(context.Background(), "u1", []string{"a1", "a2", "a3", "a4"})
	require.NoError(t, err)
	assert.Equal(t, 3, pruned.Analyses, "a2 belongs to someone else")
	require.Len(t, pruned.Conversations, 1)
	assert.Equal(t, "c1", pruned.Conversations[0].ID)
	assert.Equal(t, []string{"screenshots/u1/c1/0.png"}, pruned.StorageKeys())

	require.Len(t, m.queryInputs, 2)
	assert.Equal(t, "c1", m.queryInputs[0].ExpressionAttributeValues[":cid"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "c2", m.queryInputs[1].ExpressionAttributeValues[":cid"].(*types.AttributeValueMemberS).Value)
	require.Len(t, m.deleteInputs, 5)
	assert.Equal(t, "conversations", aws.ToString(m.deleteInputs[4].TableName))
}

func TestDynamoInsertAnalysisDuplicateID(t *testing.T) {
	m := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	s := newTestDynamo(m)

	err := s.InsertAnalysis(context.Background(), &analysis.Analysis{ID: "a1", UserID: "u2", ConversationID: "c1"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	require.Len(t, m.putInputs, 1)
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(m.putInputs[0].ConditionExpression))
}

func TestDynamoDeleteAnalysisNotOwned(t *testing.T) {
	s := newTestDynamo(&mockDynamo{deleteErr: &types.ConditionalCheckFailedException{}})
	assert.ErrorIs(t, s.DeleteAnalysis(context.Background(), "u2", "a1"), ErrNotFound)
}

func TestNewDynamoStoreValidates(t *testing.T) {
	assert.Panics(t, func() { NewDynamoStore(nil, testTables, nil) })
	assert.Panics(t, func() { NewDynamoStore(&mockDynamo{}, DynamoTables{Users: "u"}, nil) })
}
