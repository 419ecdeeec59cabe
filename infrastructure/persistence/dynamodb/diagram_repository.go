package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API the repository uses
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	entityDiagram  = "DIAGRAM"
	metadataSK     = "METADATA"
	diagramsGSI1PK = "DIAGRAMS"
	counterPK      = "COUNTER"
	counterSK      = "DIAGRAM_ID"
)

// DiagramRepository implements ports.DiagramRepository on a single
// DynamoDB table. Ids come from an atomic counter item; GSI1 lists
// diagrams in creation order.
type DiagramRepository struct {
	client    Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewDiagramRepository creates a new repository
func NewDiagramRepository(client Client, tableName, indexName string, logger *zap.Logger) *DiagramRepository {
	if indexName == "" {
		indexName = "GSI1"
	}
	return &DiagramRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// diagramItem represents the DynamoDB item structure for a diagram
type diagramItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	GSI1PK          string  `dynamodbav:"GSI1PK"`
	GSI1SK          string  `dynamodbav:"GSI1SK"`
	EntityType      string  `dynamodbav:"EntityType"`
	DiagramID       int64   `dynamodbav:"DiagramID"`
	Title           string  `dynamodbav:"Title"`
	BlueprintURL    string  `dynamodbav:"BlueprintURL"`
	BlueprintWidth  int     `dynamodbav:"BlueprintWidth"`
	BlueprintHeight int     `dynamodbav:"BlueprintHeight"`
	OffsetX         float64 `dynamodbav:"OffsetX"`
	OffsetY         float64 `dynamodbav:"OffsetY"`
	Nodes           string  `dynamodbav:"Nodes"`
	NodeCount       int     `dynamodbav:"NodeCount"`
	NodeSequence    int64   `dynamodbav:"NodeSequence"`
	Version         int     `dynamodbav:"Version"`
	CreatedAt       string  `dynamodbav:"CreatedAt"`
	UpdatedAt       string  `dynamodbav:"UpdatedAt"`
}

func diagramPK(id int64) string { return "DIAGRAM#" + strconv.FormatInt(id, 10) }

// listSK orders GSI1 by creation time, then id
func listSK(created time.Time, id int64) string {
	return fmt.Sprintf("%s#%019d", created.UTC().Format(time.RFC3339Nano), id)
}

func diagramKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: diagramPK(id)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

// nextID increments the counter item and returns the new value
func (r *DiagramRepository) nextID(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name("Value"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("build counter expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment diagram counter: %w", err)
	}

	var counter struct {
		Value int64 `dynamodbav:"Value"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("read diagram counter: %w", err)
	}
	return counter.Value, nil
}

// Create stores a new diagram under the next counter value
func (r *DiagramRepository) Create(ctx context.Context, diagram *aggregates.Diagram) (int64, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return 0, err
	}

	s := diagram.Snapshot()
	nodes, err := json.Marshal(nonNil(s.Nodes))
	if err != nil {
		return 0, fmt.Errorf("encode nodes: %w", err)
	}

	item := diagramItem{
		PK:              diagramPK(id),
		SK:              metadataSK,
		GSI1PK:          diagramsGSI1PK,
		GSI1SK:          listSK(s.CreatedAt, id),
		EntityType:      entityDiagram,
		DiagramID:       id,
		Title:           s.Title,
		BlueprintURL:    s.BlueprintURL,
		BlueprintWidth:  s.BlueprintWidth,
		BlueprintHeight: s.BlueprintHeight,
		OffsetX:         s.BlueprintOffset.X,
		OffsetY:         s.BlueprintOffset.Y,
		Nodes:           string(nodes),
		NodeCount:       len(s.Nodes),
		NodeSequence:    s.NodeSequence,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal diagram: %w", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return 0, err
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	}); err != nil {
		r.logger.Error("Failed to save diagram to DynamoDB", zap.Int64("diagram_id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to save diagram: %w", err)
	}

	r.logger.Debug("Saved diagram to DynamoDB", zap.Int64("diagram_id", id), zap.String("PK", item.PK))
	return id, nil
}

// GetByID loads one diagram
func (r *DiagramRepository) GetByID(ctx context.Context, id int64) (*aggregates.Diagram, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            diagramKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewDiagramNotFoundError(id)
	}

	var item diagramItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagram: %w", err)
	}
	return item.toDiagram()
}

// SaveNodes overwrites the node list if the diagram exists. The stored
// sequence is only replaced by a higher one.
func (r *DiagramRepository) SaveNodes(ctx context.Context, id int64, nodes []entities.Node, sequence int64) error {
	encoded, err := json.Marshal(nonNil(nodes))
	if err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}

	update := expression.
		Set(expression.Name("Nodes"), expression.Value(string(encoded))).
		Set(expression.Name("NodeCount"), expression.Value(len(nodes))).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339Nano))).
		Add(expression.Name("Version"), expression.Value(1))
	cond := expression.AttributeExists(expression.Name("PK"))

	if err := r.update(ctx, id, update, cond); err != nil {
		return err
	}

	// Raising the sequence is a separate conditional write so a stale
	// writer cannot move it backwards
	raise := expression.Set(expression.Name("NodeSequence"), expression.Value(sequence))
	raiseCond := expression.Or(
		expression.AttributeNotExists(expression.Name("NodeSequence")),
		expression.Name("NodeSequence").LessThan(expression.Value(sequence)),
	)
	if err := r.update(ctx, id, raise, raiseCond); err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}
	return nil
}

// Update persists the title and blueprint offset
func (r *DiagramRepository) Update(ctx context.Context, diagram *aggregates.Diagram) error {
	offset := diagram.BlueprintOffset()
	update := expression.
		Set(expression.Name("Title"), expression.Value(diagram.Title())).
		Set(expression.Name("OffsetX"), expression.Value(offset.X)).
		Set(expression.Name("OffsetY"), expression.Value(offset.Y)).
		Set(expression.Name("Version"), expression.Value(diagram.Version())).
		Set(expression.Name("UpdatedAt"), expression.Value(diagram.UpdatedAt().UTC().Format(time.RFC3339Nano)))
	return r.update(ctx, diagram.ID(), update, expression.AttributeExists(expression.Name("PK")))
}

// update applies a conditional update. A failed condition is reported as
// not found.
func (r *DiagramRepository) update(ctx context.Context, id int64, update expression.UpdateBuilder, cond expression.ConditionBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build update expression: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       diagramKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return pkgerrors.NewDiagramNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("failed to update diagram %d: %w", id, err)
	}
	return nil
}

// List walks GSI1 newest first
func (r *DiagramRepository) List(ctx context.Context, opts ports.ListOptions) ([]ports.DiagramSummary, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(diagramsGSI1PK))
	proj := expression.NamesList(
		expression.Name("DiagramID"), expression.Name("Title"), expression.Name("BlueprintURL"),
		expression.Name("NodeCount"), expression.Name("CreatedAt"), expression.Name("UpdatedAt"),
	)
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("build list expression: %w", err)
	}

	want := 0
	if opts.Limit > 0 {
		want = opts.Offset + opts.Limit
	}

	var out []ports.DiagramSummary
	var startKey map[string]types.AttributeValue
	for {
		page, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list diagrams: %w", err)
		}

		for _, raw := range page.Items {
			var item diagramItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Skipping unreadable diagram item", zap.Error(err))
				continue
			}
			out = append(out, item.summary())
		}

		if len(page.LastEvaluatedKey) == 0 || (want > 0 && len(out) >= want) {
			break
		}
		startKey = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []ports.DiagramSummary{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	if out == nil {
		out = []ports.DiagramSummary{}
	}
	return out, nil
}

func (item diagramItem) summary() ports.DiagramSummary {
	return ports.DiagramSummary{
		ID:           item.DiagramID,
		Title:        item.Title,
		BlueprintURL: item.BlueprintURL,
		NodeCount:    item.NodeCount,
		CreatedAt:    parseTime(item.CreatedAt),
		UpdatedAt:    parseTime(item.UpdatedAt),
	}
}

func (item diagramItem) toDiagram() (*aggregates.Diagram, error) {
	nodes := []entities.Node{}
	if item.Nodes != "" {
		if err := json.Unmarshal([]byte(item.Nodes), &nodes); err != nil {
			return nil, fmt.Errorf("decode nodes of diagram %d: %w", item.DiagramID, err)
		}
	}
	return aggregates.ReconstructDiagram(aggregates.Snapshot{
		ID:              item.DiagramID,
		Title:           item.Title,
		BlueprintURL:    item.BlueprintURL,
		BlueprintWidth:  item.BlueprintWidth,
		BlueprintHeight: item.BlueprintHeight,
		BlueprintOffset: valueobjects.Position{X: item.OffsetX, Y: item.OffsetY},
		Nodes:           nodes,
		NodeSequence:    item.NodeSequence,
		CreatedAt:       parseTime(item.CreatedAt),
		UpdatedAt:       parseTime(item.UpdatedAt),
		Version:         item.Version,
	})
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(nodes []entities.Node) []entities.Node {
	if nodes == nil {
		return []entities.Node{}
	}
	return nodes
}
