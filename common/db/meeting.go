package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ceramicnetwork/go-callpush/models"
)

var _ models.MeetingRepository = &MeetingDatabase{}

const meetingTableDdl = `CREATE TABLE IF NOT EXISTS meeting (
	id BIGINT PRIMARY KEY,
	room_id TEXT NOT NULL,
	subject TEXT NOT NULL,
	start_date BIGINT NOT NULL,
	meeting_status TEXT NOT NULL
)`

type pgxApi interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type MeetingDbOpts struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (opts MeetingDbOpts) connUrl() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(opts.User),
		url.QueryEscape(opts.Password),
		opts.Host,
		opts.Port,
		opts.Name,
	)
}

// MeetingDatabase is the Postgres meeting store. It offers the same operations as the DynamoDB store, with claims
// implemented as a conditional UPDATE.
type MeetingDatabase struct {
	pool   pgxApi
	logger models.Logger
	now    func() time.Time
}

func NewMeetingDb(ctx context.Context, logger models.Logger, opts MeetingDbOpts) *MeetingDatabase {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	pool, err := pgxpool.New(dbCtx, opts.connUrl())
	if err != nil {
		logger.Fatalf("meeting: error connecting to db: %v", err)
	}
	mdb := MeetingDatabase{pool, logger, time.Now}
	if _, err = pool.Exec(dbCtx, meetingTableDdl); err != nil {
		logger.Fatalf("meeting: table creation failed: %v", err)
	}
	return &mdb
}

func (mdb *MeetingDatabase) CreateMeeting(ctx context.Context, roomId, subject string, startTime time.Time) (int64, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	id := mdb.now().UnixMilli()
	tag, err := mdb.pool.Exec(
		dbCtx,
		"INSERT INTO meeting (id, room_id, subject, start_date, meeting_status) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		id,
		roomId,
		subject,
		startTime.UnixMilli(),
		string(models.MeetingStatus_Upcoming),
	)
	if err != nil {
		mdb.logger.Errorf("createMeeting: error writing to db: %v", err)
		return 0, &models.StoreError{Op: "create meeting", Err: err}
	} else if tag.RowsAffected() == 0 {
		return 0, &models.StoreError{Op: "create meeting", Err: fmt.Errorf("meeting %d already exists", id)}
	}
	return id, nil
}

func (mdb *MeetingDatabase) DeleteMeeting(ctx context.Context, id int64) error {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	if _, err := mdb.pool.Exec(dbCtx, "DELETE FROM meeting WHERE id = $1", id); err != nil {
		mdb.logger.Errorf("deleteMeeting: error deleting %d: %v", id, err)
		return &models.StoreError{Op: "delete meeting", Err: err}
	}
	return nil
}

func (mdb *MeetingDatabase) ScanMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	return mdb.query(ctx, "SELECT id, room_id, subject, start_date, meeting_status FROM meeting WHERE meeting_status = $1 ORDER BY id", string(status))
}

func (mdb *MeetingDatabase) ScanMeetingsByRoom(ctx context.Context, roomId string) ([]*models.Meeting, error) {
	return mdb.query(ctx, "SELECT id, room_id, subject, start_date, meeting_status FROM meeting WHERE room_id = $1 ORDER BY id", roomId)
}

func (mdb *MeetingDatabase) UpdateMeetingStatus(ctx context.Context, id int64, status models.MeetingStatus) error {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	if _, err := mdb.pool.Exec(dbCtx, "UPDATE meeting SET meeting_status = $1 WHERE id = $2", string(status), id); err != nil {
		mdb.logger.Errorf("updateMeetingStatus: error writing to db: %v", err)
		return &models.StoreError{Op: "update meeting status", Err: err}
	}
	return nil
}

func (mdb *MeetingDatabase) ClaimMeeting(ctx context.Context, id int64, from, to models.MeetingStatus) (bool, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	tag, err := mdb.pool.Exec(dbCtx, "UPDATE meeting SET meeting_status = $1 WHERE id = $2 AND meeting_status = $3", string(to), id, string(from))
	if err != nil {
		mdb.logger.Errorf("claimMeeting: error writing to db: %v", err)
		return false, &models.StoreError{Op: "claim meeting", Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

func (mdb *MeetingDatabase) query(ctx context.Context, sql string, args ...any) ([]*models.Meeting, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer dbCancel()

	rows, err := mdb.pool.Query(dbCtx, sql, args...)
	if err != nil {
		mdb.logger.Errorf("query: error querying db: %v", err)
		return nil, &models.StoreError{Op: "scan meetings", Err: err}
	}
	defer rows.Close()

	meetings := make([]*models.Meeting, 0)
	for rows.Next() {
		var startDate int64
		var status string
		meeting := new(models.Meeting)
		if err = rows.Scan(&meeting.Id, &meeting.RoomId, &meeting.Subject, &startDate, &status); err != nil {
			return nil, &models.StoreError{Op: "scan meetings", Err: err}
		}
		meeting.StartTime = time.UnixMilli(startDate)
		meeting.Status = models.MeetingStatus(status)
		meetings = append(meetings, meeting)
	}
	if err = rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "scan meetings", Err: err}
	}
	return meetings, nil
}
