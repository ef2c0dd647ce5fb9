// Package dynamo implements the application and activity stores on DynamoDB.
// Reviews are kept as a list attribute on the application item and grown
// with list_append under a condition on status and reviewCount.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// NewClient builds a DynamoDB client. A non-empty endpoint targets
// DynamoDB Local with static credentials.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Store implements store.ApplicationStore and store.ActivityStore
type Store struct {
	client            API
	applicationsTable string
	logsTable         string
}

var (
	_ store.ApplicationStore = (*Store)(nil)
	_ store.ActivityStore    = (*Store)(nil)
)

// New creates a store over the two tables. Both use "id" as the hash key.
func New(client API, applicationsTable, logsTable string) *Store {
	return &Store{client: client, applicationsTable: applicationsTable, logsTable: logsTable}
}

// applicationItem is the DynamoDB shape of an application
type applicationItem struct {
	ID                   string             `dynamodbav:"id"`
	UserID               string             `dynamodbav:"userId"`
	FullName             string             `dynamodbav:"fullName"`
	FatherHusbandName    string             `dynamodbav:"fatherHusbandName"`
	Age                  int                `dynamodbav:"age"`
	Phone                string             `dynamodbav:"phone"`
	Email                string             `dynamodbav:"email"`
	Address              string             `dynamodbav:"address"`
	AadharNumber         string             `dynamodbav:"aadharNumber"`
	DigitalSignature     string             `dynamodbav:"digitalSignature"`
	DocumentType         string             `dynamodbav:"documentType"`
	RequiredByDate       string             `dynamodbav:"requiredByDate"`
	GovernmentDepartment string             `dynamodbav:"governmentDepartment,omitempty"`
	Document             models.DocumentRef `dynamodbav:"document"`
	SignedKey            string             `dynamodbav:"signedKey,omitempty"`
	VerificationCode     string             `dynamodbav:"verificationCode,omitempty"`
	SignedDigest         string             `dynamodbav:"signedDigest,omitempty"`
	SignedAt             string             `dynamodbav:"signedAt,omitempty"`
	Status               string             `dynamodbav:"status"`
	CurrentStep          int                `dynamodbav:"currentStep"`
	ReviewCount          int                `dynamodbav:"reviewCount"`
	Reviews              []models.Review    `dynamodbav:"reviews"`
	CreatedAt            string             `dynamodbav:"createdAt"`
	UpdatedAt            string             `dynamodbav:"updatedAt"`
}

func toItem(app *models.Application) applicationItem {
	reviews := app.Reviews
	if reviews == nil {
		reviews = []models.Review{}
	}
	item := applicationItem{
		ID:                   app.ID,
		UserID:               app.OwnerID,
		FullName:             app.FullName,
		FatherHusbandName:    app.GuardianName,
		Age:                  app.Age,
		Phone:                app.Phone,
		Email:                app.Email,
		Address:              app.Address,
		AadharNumber:         app.NationalID,
		DigitalSignature:     app.DigitalSignature,
		DocumentType:         app.DocumentType,
		RequiredByDate:       app.RequiredByDate,
		GovernmentDepartment: app.GovernmentDepartment,
		Document:             app.Document,
		SignedKey:            app.SignedKey,
		VerificationCode:     app.VerificationCode,
		SignedDigest:         app.SignedDigest,
		Status:               string(app.Status),
		CurrentStep:          app.CurrentStep,
		ReviewCount:          len(reviews),
		Reviews:              reviews,
		CreatedAt:            app.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:            app.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if app.SignedAt != nil {
		item.SignedAt = app.SignedAt.UTC().Format(time.RFC3339Nano)
	}
	return item
}

func fromItem(item *applicationItem) (*models.Application, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updatedAt: %w", err)
	}

	app := &models.Application{
		ID:                   item.ID,
		OwnerID:              item.UserID,
		FullName:             item.FullName,
		GuardianName:         item.FatherHusbandName,
		Age:                  item.Age,
		Phone:                item.Phone,
		Email:                item.Email,
		Address:              item.Address,
		NationalID:           item.AadharNumber,
		DigitalSignature:     item.DigitalSignature,
		DocumentType:         item.DocumentType,
		RequiredByDate:       item.RequiredByDate,
		GovernmentDepartment: item.GovernmentDepartment,
		Document:             item.Document,
		SignedKey:            item.SignedKey,
		VerificationCode:     item.VerificationCode,
		SignedDigest:         item.SignedDigest,
		Status:               models.ApplicationStatus(item.Status),
		CurrentStep:          item.CurrentStep,
		ReviewCount:          item.ReviewCount,
		Reviews:              item.Reviews,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}
	if item.SignedAt != "" {
		signedAt, err := time.Parse(time.RFC3339Nano, item.SignedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signedAt: %w", err)
		}
		app.SignedAt = &signedAt
	}
	for i := range app.Reviews {
		app.Reviews[i].ApplicationID = app.ID
	}
	return app, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	app.ReviewCount = 0
	app.Reviews = nil
	av, err := attributevalue.MarshalMap(toItem(app))
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.applicationsTable),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to put application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.applicationsTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if result.Item == nil {
		return nil, store.ErrNotFound
	}

	var item applicationItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal application: %w", err)
	}
	return fromItem(&item)
}

func (s *Store) FindByVerificationCode(ctx context.Context, code string) (*models.Application, error) {
	if code == "" {
		return nil, store.ErrNotFound
	}
	apps, err := s.scanApplications(ctx, expression.Name("verificationCode").Equal(expression.Value(code)))
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, store.ErrNotFound
	}
	return &apps[0], nil
}

func (s *Store) ListApplications(ctx context.Context, filter store.ApplicationFilter) ([]models.Application, error) {
	var conds []expression.ConditionBuilder
	if filter.OwnerID != "" {
		conds = append(conds, expression.Name("userId").Equal(expression.Value(filter.OwnerID)))
	}
	if filter.Status != "" {
		conds = append(conds, expression.Name("status").Equal(expression.Value(string(filter.Status))))
	}

	var apps []models.Application
	var err error
	switch len(conds) {
	case 0:
		apps, err = s.scanApplications(ctx)
	case 1:
		apps, err = s.scanApplications(ctx, conds[0])
	default:
		apps, err = s.scanApplications(ctx, expression.And(conds[0], conds[1]))
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

// scanApplications scans the whole table, applying at most one filter
func (s *Store) scanApplications(ctx context.Context, filter ...expression.ConditionBuilder) ([]models.Application, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.applicationsTable)}
	if len(filter) > 0 {
		expr, err := expression.NewBuilder().WithFilter(filter[0]).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var apps []models.Application
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan applications: %w", err)
		}
		var items []applicationItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal applications: %w", err)
		}
		for i := range items {
			app, err := fromItem(&items[i])
			if err != nil {
				return nil, err
			}
			apps = append(apps, *app)
		}
	}
	return apps, nil
}

func (s *Store) AppendReview(ctx context.Context, id string, a store.ReviewAppend) error {
	review := a.Review
	review.Seq = a.ExpectedReviewCount

	update := expression.Set(expression.Name("status"), expression.Value(string(a.NewStatus))).
		Set(expression.Name("currentStep"), expression.Value(a.NewStep)).
		Set(expression.Name("updatedAt"), expression.Value(a.At.UTC().Format(time.RFC3339Nano))).
		Set(expression.Name("reviews"), expression.ListAppend(
			expression.IfNotExists(expression.Name("reviews"), expression.Value([]models.Review{})),
			expression.Value([]models.Review{review}))).
		Add(expression.Name("reviewCount"), expression.Value(1))

	cond := expression.Name("status").Equal(expression.Value(string(a.ExpectedStatus))).
		And(expression.Name("reviewCount").Equal(expression.Value(a.ExpectedReviewCount)))

	return s.conditionalUpdate(ctx, id, update, cond)
}

func (s *Store) AttachSealed(ctx context.Context, id string, sealed models.SealedDocument) error {
	at := sealed.SealedAt.UTC().Format(time.RFC3339Nano)
	update := expression.Set(expression.Name("signedKey"), expression.Value(sealed.Key)).
		Set(expression.Name("verificationCode"), expression.Value(sealed.VerificationCode)).
		Set(expression.Name("signedDigest"), expression.Value(sealed.Digest)).
		Set(expression.Name("signedAt"), expression.Value(at)).
		Set(expression.Name("updatedAt"), expression.Value(at))

	cond := expression.AttributeExists(expression.Name("id")).
		And(expression.AttributeNotExists(expression.Name("signedKey")))

	return s.conditionalUpdate(ctx, id, update, cond)
}

func (s *Store) Resubmit(ctx context.Context, id string, doc models.DocumentRef, at time.Time) error {
	update := expression.Set(expression.Name("status"), expression.Value(string(models.StatusSubmitted))).
		Set(expression.Name("currentStep"), expression.Value(models.StepJunior)).
		Set(expression.Name("document"), expression.Value(doc)).
		Set(expression.Name("updatedAt"), expression.Value(at.UTC().Format(time.RFC3339Nano)))

	cond := expression.Name("status").Equal(expression.Value(string(models.StatusRejected)))

	return s.conditionalUpdate(ctx, id, update, cond)
}

// conditionalUpdate runs an UpdateItem guarded by cond. A failed guard on a
// missing item reports ErrNotFound, otherwise ErrConflict.
func (s *Store) conditionalUpdate(ctx context.Context, id string, update expression.UpdateBuilder, cond expression.ConditionBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.applicationsTable),
		Key:                       idKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err == nil {
		return nil
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("failed to update application: %w", err)
	}

	if _, err := s.GetApplication(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return err
	}
	return store.ErrConflict
}

func (s *Store) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	av, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.logsTable),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, q store.ActivityQuery) ([]models.ActivityLog, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.logsTable)}

	var filter *expression.ConditionBuilder
	switch {
	case q.ActorID != "":
		c := expression.Name("actorId").Equal(expression.Value(q.ActorID))
		filter = &c
	case q.ActionType != "":
		c := expression.Name("actionType").Equal(expression.Value(string(q.ActionType)))
		filter = &c
	}
	if filter != nil {
		expr, err := expression.NewBuilder().WithFilter(*filter).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var logs []models.ActivityLog
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		var items []models.ActivityLog
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
		}
		logs = append(logs, items...)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if q.Limit > 0 && len(logs) > q.Limit {
		logs = logs[:q.Limit]
	}
	return logs, nil
}
