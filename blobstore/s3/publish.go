package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/atmolab/gribdex/blobstore"
)

// DDBClient is the subset of the DynamoDB API the publisher uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentPublish is returned when another indexing run committed a
// snapshot version between our read and our write.
var ErrConcurrentPublish = errors.New("concurrent snapshot publish detected")

// Publisher writes manifest snapshots to S3 and commits the current
// version through DynamoDB conditional writes, which supply the atomic
// compare-and-swap S3 lacks. Readers that only ever load the committed
// version never observe a half-published snapshot.
//
// Table schema: partition key base_uri (S), sort key version (N), plus a
// snapshot_key (S) attribute naming the committed object.
type Publisher struct {
	store    *Store
	uploader *manager.Uploader
	ddb      DDBClient
	table    string
	baseURI  string
}

// NewPublisher creates a publisher over the store's bucket. upload may be
// nil, in which case snapshots are written with single-request puts;
// passing a manager.UploadAPIClient (an *s3.Client) enables multipart
// uploads for snapshots too large for one request.
func NewPublisher(store *Store, upload manager.UploadAPIClient, ddb DDBClient, table, baseURI string) *Publisher {
	p := &Publisher{
		store:   store,
		ddb:     ddb,
		table:   table,
		baseURI: baseURI,
	}
	if upload != nil {
		p.uploader = manager.NewUploader(upload)
	}
	return p
}

// Publish uploads the encoded snapshot and commits it as the next
// version. Returns the committed version and object name.
func (p *Publisher) Publish(ctx context.Context, snapshot []byte) (uint64, string, error) {
	current, _, err := p.latest(ctx)
	if err != nil {
		return 0, "", err
	}
	version := current + 1
	name := fmt.Sprintf("snapshots/MANIFEST-%06d", version)

	if p.uploader != nil {
		_, err = p.uploader.Upload(ctx, &awss3.PutObjectInput{
			Bucket: aws.String(p.store.bucket),
			Key:    aws.String(p.store.key(name)),
			Body:   bytes.NewReader(snapshot),
		})
	} else {
		err = p.store.Put(ctx, name, snapshot)
	}
	if err != nil {
		return 0, "", fmt.Errorf("upload snapshot: %w", err)
	}

	_, err = p.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item: map[string]ddbtypes.AttributeValue{
			"base_uri":     &ddbtypes.AttributeValueMemberS{Value: p.baseURI},
			"version":      &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", version)},
			"snapshot_key": &ddbtypes.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return 0, "", ErrConcurrentPublish
		}
		return 0, "", fmt.Errorf("commit snapshot version: %w", err)
	}
	return version, name, nil
}

// Current loads the most recently committed snapshot bytes.
func (p *Publisher) Current(ctx context.Context) ([]byte, error) {
	version, name, err := p.latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	data, _, err := blobstore.Fetch(ctx, p.store, name)
	return data, err
}

// latest queries DynamoDB for the highest committed version.
func (p *Publisher) latest(ctx context.Context) (uint64, string, error) {
	resp, err := p.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uri": &ddbtypes.AttributeValueMemberS{Value: p.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query snapshot versions: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}
	item := resp.Items[0]
	versionAttr, ok := item["version"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("version attribute missing or mistyped")
	}
	keyAttr, ok := item["snapshot_key"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("snapshot_key attribute missing or mistyped")
	}
	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, keyAttr.Value, nil
}
