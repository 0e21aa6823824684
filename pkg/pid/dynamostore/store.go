// Package dynamostore is a pid.Store backed by a single DynamoDB table.
//
// Every Pid occupies two items keyed by the partition key "pk":
//
//	pk = "pid#<uuid>"  attributes: id, uri, created_at
//	pk = "uri#<uri>"   attributes: id
//
// Both items are written and removed in one TransactWriteItems call, each
// guarded by a condition on pk, so DynamoDB itself enforces that an id and a
// uri are each bound at most once.
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name ceres-pids \
//	  --attribute-definitions AttributeName=pk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fairspace/ceres/pkg/pid"
)

const (
	attrPK        = "pk"
	attrID        = "id"
	attrURI       = "uri"
	attrCreatedAt = "created_at"

	conditionFailed = "ConditionalCheckFailed"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements pid.Store on DynamoDB.
type Store struct {
	client    Client
	tableName string
	opts      pid.Options
}

var _ pid.Store = (*Store)(nil)

// New returns a Store over an existing table.
func New(client Client, tableName string, opts ...pid.Option) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		opts:      pid.NewOptions(opts...),
	}
}

// Config holds the connection settings for NewFromConfig.
type Config struct {
	Table  string
	Region string

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
}

// NewFromConfig builds a DynamoDB client from the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg Config, opts ...pid.Option) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return New(client, cfg.Table, opts...), nil
}

func pidKey(id pid.UUID) string { return "pid#" + id.String() }
func uriKey(uri string) string  { return "uri#" + uri }

func keyAttr(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
	}
}

// Create implements pid.Store.
func (s *Store) Create(ctx context.Context, uri string) (*pid.Pid, error) {
	return s.insert(ctx, pid.Pid{ID: s.opts.NewID(), URI: uri})
}

// Import implements pid.Store.
func (s *Store) Import(ctx context.Context, p pid.Pid) (*pid.Pid, error) {
	return s.insert(ctx, pid.Pid{ID: p.ID, URI: p.URI})
}

func (s *Store) insert(ctx context.Context, p pid.Pid) (*pid.Pid, error) {
	p.CreatedAt = s.opts.Now()

	notExists := aws.String("attribute_not_exists(" + attrPK + ")")
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item: map[string]types.AttributeValue{
						attrPK:        &types.AttributeValueMemberS{Value: pidKey(p.ID)},
						attrID:        &types.AttributeValueMemberS{Value: p.ID.String()},
						attrURI:       &types.AttributeValueMemberS{Value: p.URI},
						attrCreatedAt: &types.AttributeValueMemberS{Value: p.CreatedAt.Format(time.RFC3339Nano)},
					},
					ConditionExpression: notExists,
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item: map[string]types.AttributeValue{
						attrPK: &types.AttributeValueMemberS{Value: uriKey(p.URI)},
						attrID: &types.AttributeValueMemberS{Value: p.ID.String()},
					},
					ConditionExpression: notExists,
				},
			},
		},
	})
	if err != nil {
		if reasons, ok := cancellationReasons(err); ok {
			// Reasons are reported in TransactItems order.
			if len(reasons) > 1 && isConditionFailed(reasons[1]) {
				return nil, pid.ErrDuplicateURI
			}
			if len(reasons) > 0 && isConditionFailed(reasons[0]) {
				return nil, pid.ErrDuplicateID
			}
		}
		return nil, fmt.Errorf("failed to write pid to DynamoDB: %w", err)
	}

	return &p, nil
}

// GetByID implements pid.Store.
func (s *Store) GetByID(ctx context.Context, id pid.UUID) (*pid.Pid, error) {
	item, err := s.getItem(ctx, pidKey(id))
	if err != nil {
		return nil, err
	}
	return decodePid(item)
}

// GetByURI implements pid.Store.
func (s *Store) GetByURI(ctx context.Context, uri string) (*pid.Pid, error) {
	item, err := s.getItem(ctx, uriKey(uri))
	if err != nil {
		return nil, err
	}

	idAttr, ok := item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid id attribute in DynamoDB")
	}
	id, err := pid.ParseUUID(idAttr.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid id attribute in DynamoDB: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete implements pid.Store.
func (s *Store) Delete(ctx context.Context, id pid.UUID) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	exists := aws.String("attribute_exists(" + attrPK + ")")
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(s.tableName),
					Key:                 keyAttr(pidKey(p.ID)),
					ConditionExpression: exists,
				},
			},
			{
				Delete: &types.Delete{
					TableName:           aws.String(s.tableName),
					Key:                 keyAttr(uriKey(p.URI)),
					ConditionExpression: exists,
				},
			},
		},
	})
	if err != nil {
		// A concurrent delete removed the items first.
		if _, ok := cancellationReasons(err); ok {
			return pid.ErrNotFound
		}
		return fmt.Errorf("failed to delete pid from DynamoDB: %w", err)
	}
	return nil
}

func (s *Store) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAttr(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if len(resp.Item) == 0 {
		return nil, pid.ErrNotFound
	}
	return resp.Item, nil
}

func decodePid(item map[string]types.AttributeValue) (*pid.Pid, error) {
	idAttr, ok := item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid id attribute in DynamoDB")
	}
	uriAttr, ok := item[attrURI].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("invalid uri attribute in DynamoDB")
	}

	id, err := pid.ParseUUID(idAttr.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid id attribute in DynamoDB: %w", err)
	}

	p := &pid.Pid{ID: id, URI: uriAttr.Value}
	if createdAttr, ok := item[attrCreatedAt].(*types.AttributeValueMemberS); ok {
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAttr.Value); err != nil {
			return nil, fmt.Errorf("invalid created_at attribute in DynamoDB: %w", err)
		}
	}
	return p, nil
}

func cancellationReasons(err error) ([]types.CancellationReason, bool) {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil, false
	}
	return canceled.CancellationReasons, true
}

func isConditionFailed(r types.CancellationReason) bool {
	return r.Code != nil && *r.Code == conditionFailed
}
