package ddb

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/models"
)

var _ models.MeetingRepository = &MeetingDatabase{}

type meetingItem struct {
	Id        int64  `dynamodbav:"id"`
	RoomId    string `dynamodbav:"roomId"`
	Subject   string `dynamodbav:"subject"`
	StartDate string `dynamodbav:"startDate"` // epoch millis
	Status    string `dynamodbav:"meetingStatus"`
}

type MeetingDatabase struct {
	client       dynamoDbApi
	logger       models.Logger
	meetingTable string
	now          func() time.Time
}

func NewMeetingDb(ctx context.Context, logger models.Logger, client *dynamodb.Client) *MeetingDatabase {
	meetingTable := os.Getenv(callpush.Env_MeetingTable)
	if len(meetingTable) == 0 {
		meetingTable = "callpush-" + os.Getenv(callpush.Env_Env) + "-meeting"
	}
	mdb := MeetingDatabase{
		client,
		logger,
		meetingTable,
		time.Now,
	}
	if err := mdb.createMeetingTable(ctx); err != nil {
		logger.Fatalf("meeting: table creation failed: %v", err)
	}
	return &mdb
}

func (mdb *MeetingDatabase) createMeetingTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: "N",
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       "HASH",
			},
		},
		TableName: aws.String(mdb.meetingTable),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	return createTable(ctx, mdb.logger, mdb.client, &createTableInput)
}

// CreateMeeting stores a new upcoming meeting. The id is the creation time in epoch millis, so two meetings created in
// the same millisecond collide. The write is conditional on the id being unused so that a collision surfaces as an
// error instead of silently replacing the earlier meeting.
func (mdb *MeetingDatabase) CreateMeeting(ctx context.Context, roomId, subject string, startTime time.Time) (int64, error) {
	item := meetingItem{
		Id:        mdb.now().UnixMilli(),
		RoomId:    roomId,
		Subject:   subject,
		StartDate: models.FormatEpochMillis(startTime),
		Status:    string(models.MeetingStatus_Upcoming),
	}
	attributeValues, err := attributevalue.MarshalMap(item)
	if err != nil {
		return 0, &models.StoreError{Op: "create meeting", Err: err}
	}
	putItemIn := dynamodb.PutItemInput{
		TableName:                aws.String(mdb.meetingTable),
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
		Item:                     attributeValues,
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	if _, err = mdb.client.PutItem(httpCtx, &putItemIn); err != nil {
		mdb.logger.Errorf("createMeeting: error writing to db: %v", err)
		return 0, &models.StoreError{Op: "create meeting", Err: err}
	}
	return item.Id, nil
}

func (mdb *MeetingDatabase) DeleteMeeting(ctx context.Context, id int64) error {
	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	if _, err := mdb.client.DeleteItem(httpCtx, &dynamodb.DeleteItemInput{
		TableName: aws.String(mdb.meetingTable),
		Key:       idKey(id),
	}); err != nil {
		mdb.logger.Errorf("deleteMeeting: error deleting %d: %v", id, err)
		return &models.StoreError{Op: "delete meeting", Err: err}
	}
	return nil
}

func (mdb *MeetingDatabase) ScanMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	return mdb.scanMeetings(ctx, "meetingStatus", string(status))
}

func (mdb *MeetingDatabase) ScanMeetingsByRoom(ctx context.Context, roomId string) ([]*models.Meeting, error) {
	return mdb.scanMeetings(ctx, "roomId", roomId)
}

// UpdateMeetingStatus sets the status of an existing meeting. A meeting deleted in the meantime is left deleted rather
// than recreated as a bare status record.
func (mdb *MeetingDatabase) UpdateMeetingStatus(ctx context.Context, id int64, status models.MeetingStatus) error {
	updateItemIn := dynamodb.UpdateItemInput{
		Key:                      idKey(id),
		TableName:                aws.String(mdb.meetingTable),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id", "#status": "meetingStatus"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
		UpdateExpression: aws.String("set #status = :status"),
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	if _, err := mdb.client.UpdateItem(httpCtx, &updateItemIn); err != nil {
		var condUpdErr *types.ConditionalCheckFailedException
		if errors.As(err, &condUpdErr) {
			mdb.logger.Debugf("updateMeetingStatus: meeting %d already removed", id)
			return nil
		}
		mdb.logger.Errorf("updateMeetingStatus: error writing to db: %v", err)
		return &models.StoreError{Op: "update meeting status", Err: err}
	}
	return nil
}

// ClaimMeeting atomically moves a meeting from one status to another. It returns false, without error, if the meeting
// was not in the expected status, i.e. another invocation got there first.
func (mdb *MeetingDatabase) ClaimMeeting(ctx context.Context, id int64, from, to models.MeetingStatus) (bool, error) {
	updateItemIn := dynamodb.UpdateItemInput{
		Key:                      idKey(id),
		TableName:                aws.String(mdb.meetingTable),
		ConditionExpression:      aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{"#status": "meetingStatus"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":to":   &types.AttributeValueMemberS{Value: string(to)},
		},
		UpdateExpression: aws.String("set #status = :to"),
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	if _, err := mdb.client.UpdateItem(httpCtx, &updateItemIn); err != nil {
		// To get a specific API error
		var condUpdErr *types.ConditionalCheckFailedException
		if errors.As(err, &condUpdErr) {
			// Not an error, just indicate that we couldn't claim the meeting
			mdb.logger.Debugf("claimMeeting: meeting %d no longer %s", id, from)
			return false, nil
		}
		mdb.logger.Errorf("claimMeeting: error writing to db: %v", err)
		return false, &models.StoreError{Op: "claim meeting", Err: err}
	}
	return true, nil
}

func (mdb *MeetingDatabase) scanMeetings(ctx context.Context, attribute, value string) ([]*models.Meeting, error) {
	meetings := make([]*models.Meeting, 0)
	p := dynamodb.NewScanPaginator(mdb.client, &dynamodb.ScanInput{
		TableName:                aws.String(mdb.meetingTable),
		FilterExpression:         aws.String("#attr = :value"),
		ExpressionAttributeNames: map[string]string{"#attr": attribute},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: value},
		},
	})
	// Every page is read, callers rely on seeing the full set of matching meetings
	for p.HasMorePages() {
		err := func() error {
			httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
			defer httpCancel()

			page, err := p.NextPage(httpCtx)
			if err != nil {
				return err
			}
			var items []meetingItem
			if err = attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
				mdb.logger.Errorf("scanMeetings: unable to unmarshal page: %v", err)
				return err
			}
			for _, item := range items {
				if meeting, err := item.toMeeting(); err != nil {
					// Skip the bad record rather than failing the whole scan
					mdb.logger.Errorf("scanMeetings: invalid meeting %d: %v", item.Id, err)
				} else {
					meetings = append(meetings, meeting)
				}
			}
			return nil
		}()
		if err != nil {
			return nil, &models.StoreError{Op: "scan meetings", Err: err}
		}
	}
	return meetings, nil
}

func (item meetingItem) toMeeting() (*models.Meeting, error) {
	startTime, err := models.ParseEpochMillis(item.StartDate)
	if err != nil {
		return nil, err
	}
	return &models.Meeting{
		Id:        item.Id,
		RoomId:    item.RoomId,
		Subject:   item.Subject,
		StartTime: startTime,
		Status:    models.MeetingStatus(item.Status),
	}, nil
}
