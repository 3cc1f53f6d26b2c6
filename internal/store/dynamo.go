package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
	"github.com/sherlock-labs/screenshot-sherlock/pkg/logging"
)

const (
	conversationsByUserIndex    = "user_id-updated_at_ms-index"
	analysesByUserIndex         = "user_id-ts_ms-index"
	analysesByConversationIndex = "conversation_id-ts_ms-index"

	batchWriteLimit    = 25
	batchWriteAttempts = 3
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoTables names the three tables. Conversations need a GSI on
// (user_id, updated_at_ms); analyses need GSIs on (user_id, ts_ms) and
// (conversation_id, ts_ms).
type DynamoTables struct {
	Users         string
	Conversations string
	Analyses      string
}

// conversationItem adds a numeric sort key; RFC3339Nano strings do not sort
// lexically.
type conversationItem struct {
	Conversation
	UpdatedAtMillis int64 `dynamodbav:"updated_at_ms"`
}

type analysisItem struct {
	analysis.Analysis
	TimestampMillis int64 `dynamodbav:"ts_ms"`
}

// DynamoStore is the DynamoDB-backed Store.
type DynamoStore struct {
	client dynamoAPI
	tables DynamoTables
	logger *logging.Logger
	now    func() time.Time
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, tables DynamoTables, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tables.Users == "" || tables.Conversations == "" || tables.Analyses == "" {
		panic("store: dynamodb table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client: client,
		tables: tables,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *DynamoStore) GetOrCreateUser(ctx context.Context, id, email string) (users.User, error) {
	u := users.New(id, email, s.now())
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return users.User{}, fmt.Errorf("store: marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Users),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err == nil {
		return u, nil
	}
	if !isConditionFailed(err) {
		return users.User{}, fmt.Errorf("store: put user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *DynamoStore) GetUser(ctx context.Context, id string) (users.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Users),
		Key:       idKey(id),
	})
	if err != nil {
		return users.User{}, fmt.Errorf("store: get user: %w", err)
	}
	if out.Item == nil {
		return users.User{}, ErrNotFound
	}
	var u users.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return users.User{}, fmt.Errorf("store: decode user: %w", err)
	}
	return u, nil
}

func (s *DynamoStore) UpdatePreferences(ctx context.Context, id string, prefs users.Preferences) (users.User, error) {
	prefsAttr, err := attributevalue.Marshal(prefs)
	if err != nil {
		return users.User{}, fmt.Errorf("store: marshal preferences: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET preferences = :prefs"),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":prefs": prefsAttr},
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return users.User{}, ErrNotFound
		}
		return users.User{}, fmt.Errorf("store: update preferences: %w", err)
	}
	var u users.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return users.User{}, fmt.Errorf("store: decode user: %w", err)
	}
	return u, nil
}

func (s *DynamoStore) IncrementStat(ctx context.Context, id, stat string, delta int) error {
	if err := checkStat(stat); err != nil {
		return err
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("ADD #stats.#stat :delta"),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  map[string]string{"#stats": "stats", "#stat": stat},
		ExpressionAttributeValues: map[string]types.AttributeValue{":delta": number(int64(delta))},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: increment %s: %w", stat, err)
	}
	return nil
}

func (s *DynamoStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	fillConversation(c)

	item, err := attributevalue.MarshalMap(conversationItem{Conversation: *c, UpdatedAtMillis: c.UpdatedAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("store: marshal conversation: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Conversations),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("store: put conversation: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetConversation(ctx context.Context, userID, id string) (Conversation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Conversations),
		Key:       idKey(id),
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("store: get conversation: %w", err)
	}
	if out.Item == nil {
		return Conversation{}, ErrNotFound
	}
	c, err := decodeConversationItem(out.Item)
	if err != nil {
		return Conversation{}, err
	}
	if c.UserID != userID {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (s *DynamoStore) ListConversations(ctx context.Context, userID string, limit, skip int) ([]Conversation, error) {
	want := 0
	if limit > 0 {
		want = limit + skip
	}
	out := make([]Conversation, 0)
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Conversations),
		IndexName:                 aws.String(conversationsByUserIndex),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
		ScanIndexForward:          aws.Bool(false),
	}, want, func(item map[string]types.AttributeValue) error {
		c, err := decodeConversationItem(item)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	return page(out, limit, skip), nil
}

func (s *DynamoStore) AppendScreenshot(ctx context.Context, userID, id string, shot Screenshot) (int, error) {
	shotAttr, err := attributevalue.Marshal(shot)
	if err != nil {
		return 0, fmt.Errorf("store: marshal screenshot: %w", err)
	}
	now := s.now()
	nowAttr, err := attributevalue.Marshal(now)
	if err != nil {
		return 0, fmt.Errorf("store: marshal timestamp: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Conversations),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET screenshots = list_append(if_not_exists(screenshots, :empty), :shot), updated_at = :now, updated_at_ms = :ms"),
		ConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":shot":  &types.AttributeValueMemberL{Value: []types.AttributeValue{shotAttr}},
			":now":   nowAttr,
			":ms":    number(now.UnixMilli()),
			":uid":   str(userID),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: append screenshot: %w", err)
	}
	list, ok := out.Attributes["screenshots"].(*types.AttributeValueMemberL)
	if !ok || len(list.Value) == 0 {
		return 0, errors.New("store: append screenshot: missing screenshots in response")
	}
	return len(list.Value) - 1, nil
}

func (s *DynamoStore) UpdateConversationMeta(ctx context.Context, userID, id string, update MetaUpdate) error {
	now := s.now()
	nowAttr, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("store: marshal timestamp: %w", err)
	}
	expr := "SET updated_at = :now, updated_at_ms = :ms"
	values := map[string]types.AttributeValue{
		":now": nowAttr,
		":ms":  number(now.UnixMilli()),
		":uid": str(userID),
	}
	if update.Platform != nil {
		expr += ", platform = :platform"
		values[":platform"] = str(*update.Platform)
	}
	if update.ParticipantName != nil {
		expr += ", participant_name = :participant"
		values[":participant"] = str(*update.ParticipantName)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Conversations),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("user_id = :uid"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: update conversation: %w", err)
	}
	return nil
}

func (s *DynamoStore) DeleteConversation(ctx context.Context, userID, id string) error {
	if err := s.deleteOwned(ctx, s.tables.Conversations, userID, id, nil); err != nil {
		return err
	}

	var ids []string
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Analyses),
		IndexName:                 aws.String(analysesByConversationIndex),
		KeyConditionExpression:    aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":cid": str(id)},
		ProjectionExpression:      aws.String("id"),
	}, 0, func(item map[string]types.AttributeValue) error {
		if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: list conversation analyses: %w", err)
	}
	if _, err := s.deleteAnalysisKeys(ctx, ids); err != nil {
		return err
	}
	return nil
}

func (s *DynamoStore) InsertAnalysis(ctx context.Context, a *analysis.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	fillAnalysis(a)

	item, err := attributevalue.MarshalMap(analysisItem{Analysis: *a, TimestampMillis: a.Timestamp.UnixMilli()})
	if err != nil {
		return fmt.Errorf("store: marshal analysis: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Analyses),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("store: put analysis: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetAnalysis(ctx context.Context, userID, id string) (analysis.Analysis, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Analyses),
		Key:       idKey(id),
	})
	if err != nil {
		return analysis.Analysis{}, fmt.Errorf("store: get analysis: %w", err)
	}
	if out.Item == nil {
		return analysis.Analysis{}, ErrNotFound
	}
	a, err := decodeAnalysisItem(out.Item)
	if err != nil {
		return analysis.Analysis{}, err
	}
	if a.UserID != userID {
		return analysis.Analysis{}, ErrNotFound
	}
	return a, nil
}

func (s *DynamoStore) ListByConversation(ctx context.Context, userID, conversationID string, ascending bool, limit int) ([]analysis.Analysis, error) {
	return s.listAnalyses(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Analyses),
		IndexName:              aws.String(analysesByConversationIndex),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		FilterExpression:       aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": str(conversationID),
			":uid": str(userID),
		},
		ScanIndexForward: aws.Bool(ascending),
	}, limit)
}

func (s *DynamoStore) ListRecentByUser(ctx context.Context, userID string, limit int) ([]analysis.Analysis, error) {
	return s.listAnalyses(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Analyses),
		IndexName:                 aws.String(analysesByUserIndex),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
		ScanIndexForward:          aws.Bool(false),
	}, limit)
}

func (s *DynamoStore) CountByUser(ctx context.Context, userID string) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Analyses),
		IndexName:                 aws.String(analysesByUserIndex),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
		Select:                    types.SelectCount,
	}
	total := 0
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("store: count analyses: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) OldestIDsByUser(ctx context.Context, userID string, n int) ([]string, error) {
	ids := make([]string, 0)
	if n <= 0 {
		return ids, nil
	}
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Analyses),
		IndexName:                 aws.String(analysesByUserIndex),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
		ProjectionExpression:      aws.String("id"),
		ScanIndexForward:          aws.Bool(true),
	}, n, func(item map[string]types.AttributeValue) error {
		if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, v.Value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: oldest analyses: %w", err)
	}
	return ids, nil
}

// PruneAnalyses deletes item by item so each delete is conditioned on the
// owner and returns the conversation id needed for the empty check.
func (s *DynamoStore) PruneAnalyses(ctx context.Context, userID string, ids []string) (Pruned, error) {
	var out Pruned
	seen := map[string]struct{}{}
	var convIDs []string
	for _, id := range ids {
		var old analysis.Analysis
		err := s.deleteOwned(ctx, s.tables.Analyses, userID, id, &old)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		out.Analyses++
		if _, ok := seen[old.ConversationID]; !ok && old.ConversationID != "" {
			seen[old.ConversationID] = struct{}{}
			convIDs = append(convIDs, old.ConversationID)
		}
	}

	for _, convID := range convIDs {
		c, removed, err := s.dropIfEmpty(ctx, userID, convID)
		if err != nil {
			return out, err
		}
		if removed {
			out.Conversations = append(out.Conversations, c)
		}
	}
	return out, nil
}

// deleteAnalysisKeys batches deletes in groups of 25. DynamoDB does not report
// whether a key existed, so the count is the number of deletes accepted.
func (s *DynamoStore) deleteAnalysisKeys(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(ids))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, id := range ids[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: idKey(id)},
			})
		}

		pending := map[string][]types.WriteRequest{s.tables.Analyses: requests}
		for attempt := 1; attempt <= batchWriteAttempts && len(pending[s.tables.Analyses]) > 0; attempt++ {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return deleted, fmt.Errorf("store: delete analyses: %w", err)
			}
			sent := len(pending[s.tables.Analyses])
			pending = out.UnprocessedItems
			deleted += sent - len(pending[s.tables.Analyses])
		}
		if left := len(pending[s.tables.Analyses]); left > 0 {
			s.logger.Warn("store: analyses left unprocessed after retries", "count", left)
		}
	}
	return deleted, nil
}

func (s *DynamoStore) DeleteAnalysis(ctx context.Context, userID, id string) error {
	var old analysis.Analysis
	if err := s.deleteOwned(ctx, s.tables.Analyses, userID, id, &old); err != nil {
		return err
	}
	if old.ConversationID == "" {
		return nil
	}
	_, _, err := s.dropIfEmpty(ctx, userID, old.ConversationID)
	return err
}

// dropIfEmpty deletes the conversation when no analysis references it and
// returns the deleted item.
func (s *DynamoStore) dropIfEmpty(ctx context.Context, userID, convID string) (Conversation, bool, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Analyses),
		IndexName:                 aws.String(analysesByConversationIndex),
		KeyConditionExpression:    aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":cid": str(convID)},
		Select:                    types.SelectCount,
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return Conversation{}, false, fmt.Errorf("store: count conversation analyses: %w", err)
	}
	if out.Count > 0 {
		return Conversation{}, false, nil
	}
	var c Conversation
	if err := s.deleteOwned(ctx, s.tables.Conversations, userID, convID, &c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, err
	}
	fillConversation(&c)
	return c, true, nil
}

// deleteOwned deletes id from table when owned by userID, decoding the old
// item into old when non-nil.
func (s *DynamoStore) deleteOwned(ctx context.Context, table, userID, id string, old any) error {
	in := &dynamodb.DeleteItemInput{
		TableName:                 aws.String(table),
		Key:                       idKey(id),
		ConditionExpression:       aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": str(userID)},
	}
	if old != nil {
		in.ReturnValues = types.ReturnValueAllOld
	}
	out, err := s.client.DeleteItem(ctx, in)
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete from %s: %w", table, err)
	}
	if old != nil && out != nil && out.Attributes != nil {
		if err := attributevalue.UnmarshalMap(out.Attributes, old); err != nil {
			return fmt.Errorf("store: decode deleted item: %w", err)
		}
	}
	return nil
}

func (s *DynamoStore) listAnalyses(ctx context.Context, in *dynamodb.QueryInput, limit int) ([]analysis.Analysis, error) {
	out := make([]analysis.Analysis, 0)
	err := s.query(ctx, in, limit, func(item map[string]types.AttributeValue) error {
		a, err := decodeAnalysisItem(item)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	return out, nil
}

// query pages through in, calling fn per item until want items (0 = all).
func (s *DynamoStore) query(ctx context.Context, in *dynamodb.QueryInput, want int, fn func(map[string]types.AttributeValue) error) error {
	seen := 0
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			if want > 0 && seen >= want {
				return nil
			}
			if err := fn(item); err != nil {
				return err
			}
			seen++
		}
		if len(out.LastEvaluatedKey) == 0 || (want > 0 && seen >= want) {
			return nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeConversationItem(item map[string]types.AttributeValue) (Conversation, error) {
	var rec conversationItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return Conversation{}, fmt.Errorf("store: decode conversation: %w", err)
	}
	c := rec.Conversation
	fillConversation(&c)
	return c, nil
}

func decodeAnalysisItem(item map[string]types.AttributeValue) (analysis.Analysis, error) {
	var rec analysisItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return analysis.Analysis{}, fmt.Errorf("store: decode analysis: %w", err)
	}
	a := rec.Analysis
	fillAnalysis(&a)
	return a, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": str(id)}
}

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func number(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}
