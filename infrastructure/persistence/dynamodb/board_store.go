package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	entityTypeBoard = "BOARD"
	boardSKPrefix   = "BOARD#"
)

// API is the subset of the DynamoDB client the board store uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// BoardStore implements ports.BoardStore on a single DynamoDB table.
// Boards live in the owner's partition: PK=USER#<user>, SK=BOARD#<board>.
type BoardStore struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewBoardStore creates a new DynamoDB backed board store
func NewBoardStore(client API, tableName string, logger *zap.Logger) *BoardStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// boardItem represents the DynamoDB item structure for a board
type boardItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	BoardID    string `dynamodbav:"BoardID"`
	UserID     string `dynamodbav:"UserID"`
	Name       string `dynamodbav:"Name"`
	Content    string `dynamodbav:"Content"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func userPK(userID string) string {
	return "USER#" + userID
}

func boardSK(id valueobjects.BoardID) string {
	return boardSKPrefix + id.String()
}

func (r *BoardStore) key(userID string, id valueobjects.BoardID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: boardSK(id)},
	}
}

func toItem(board ports.StoredBoard) boardItem {
	return boardItem{
		PK:         userPK(board.UserID),
		SK:         boardSK(board.ID),
		EntityType: entityTypeBoard,
		BoardID:    board.ID.String(),
		UserID:     board.UserID,
		Name:       board.Name,
		Content:    board.Content,
		CreatedAt:  board.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  board.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromItem(item boardItem) (ports.StoredBoard, error) {
	id, err := valueobjects.ParseBoardID(item.BoardID)
	if err != nil {
		return ports.StoredBoard{}, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return ports.StoredBoard{
		ID:        id,
		UserID:    item.UserID,
		Name:      item.Name,
		Content:   item.Content,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Create implements ports.BoardStore. An existing board with the same id
// fails the put condition and becomes a ConflictError.
func (r *BoardStore) Create(ctx context.Context, board ports.StoredBoard) error {
	if board.UserID == "" || board.ID == "" {
		return pkgerrors.NewValidationError("board requires an id and an owner")
	}
	if strings.TrimSpace(board.Name) == "" {
		return pkgerrors.NewValidationError("board name cannot be empty")
	}

	now := r.now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	if board.UpdatedAt.IsZero() {
		board.UpdatedAt = board.CreatedAt
	}

	av, err := attributevalue.MarshalMap(toItem(board))
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal board").WithCause(err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build create condition").WithCause(err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewConflictError("board already exists")
		}
		return pkgerrors.NewDatabaseError("create board", err)
	}

	r.logger.Debug("Board item created",
		zap.String("boardID", board.ID.String()),
		zap.String("userID", board.UserID),
	)
	return nil
}

// Load implements ports.BoardStore
func (r *BoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(userID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load board", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("board")
	}

	var item boardItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewInternalError("failed to unmarshal board").WithCause(err)
	}
	board, err := fromItem(item)
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// Save implements ports.BoardStore as a conditional update, so saving a
// deleted board fails instead of recreating it.
func (r *BoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	update := expression.
		Set(expression.Name("Content"), expression.Value(content)).
		Set(expression.Name("UpdatedAt"), expression.Value(r.now().UTC().Format(time.RFC3339Nano)))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build save expression").WithCause(err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(userID, id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("board")
		}
		return pkgerrors.NewDatabaseError("save board", err)
	}
	return nil
}

// List implements ports.BoardStore. Content is not projected.
func (r *BoardStore) List(ctx context.Context, userID string) ([]ports.BoardSummary, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith(boardSKPrefix))
	proj := expression.NamesList(expression.Name("BoardID"), expression.Name("Name"), expression.Name("UpdatedAt"))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(proj).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build list expression").WithCause(err)
	}

	summaries := make([]ports.BoardSummary, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list boards", err)
		}

		for _, raw := range out.Items {
			var item boardItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal board item", zap.Error(err))
				continue
			}
			id, err := valueobjects.ParseBoardID(item.BoardID)
			if err != nil {
				r.logger.Warn("Skipping board item with invalid id", zap.String("boardID", item.BoardID))
				continue
			}
			updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
			summaries = append(summaries, ports.BoardSummary{ID: id, Name: item.Name, UpdatedAt: updatedAt})
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete implements ports.BoardStore
func (r *BoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build delete condition").WithCause(err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      r.key(userID, id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return pkgerrors.NewNotFoundError("board")
		}
		return pkgerrors.NewDatabaseError("delete board", err)
	}

	r.logger.Debug("Board item deleted",
		zap.String("boardID", id.String()),
		zap.String("userID", userID),
	)
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// String describes the table for logs
func (r *BoardStore) String() string {
	return fmt.Sprintf("dynamodb(%s)", r.tableName)
}
