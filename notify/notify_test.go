package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lostandfound-exchange/dao"
	"lostandfound-exchange/metrics"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	gdb  *gorm.DB
)

func setUp() {
	db, mock, _ = sqlmock.New()
	gdb, _ = gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

// gormMessages 直接写 messages 表, 不做迁移
type gormMessages struct {
	db *gorm.DB
}

func (g gormMessages) CreateMessage(ctx context.Context, msg *dao.Message) error {
	return g.db.WithContext(ctx).Create(msg).Error
}

type fakePublisher struct {
	events []Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestSendPersists(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `messages`").WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectCommit()

		publisher := &fakePublisher{}
		msg, err := NewSink(gormMessages{gdb}, publisher).Send(context.Background(), 1, 2, "subject", "body")
		require.NoError(t, err)
		assert.Equal(t, uint(7), msg.MessageId)
		assert.Equal(t, uint(1), msg.SenderId)
		assert.Equal(t, uint(2), msg.ReceiverId)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, uint(7), publisher.events[0].MessageId)
		assert.Equal(t, "subject", publisher.events[0].Subject)

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestSendPersistFailure(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `messages`").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		before := testutil.ToFloat64(metrics.NotificationFailures)
		publisher := &fakePublisher{}
		msg, err := NewSink(gormMessages{gdb}, publisher).Send(context.Background(), 1, 2, "subject", "body")
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, ErrDelivery)
		assert.Empty(t, publisher.events)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationFailures))

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	})
}

func TestSendPublishFailure(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `messages`").WillReturnResult(sqlmock.NewResult(3, 1))
		mock.ExpectCommit()

		before := testutil.ToFloat64(metrics.NotificationFailures)
		publisher := &fakePublisher{err: errors.New("channel closed")}
		msg, err := NewSink(gormMessages{gdb}, publisher).Send(context.Background(), 1, 2, "subject", "body")
		require.NoError(t, err)
		assert.Equal(t, uint(3), msg.MessageId)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationFailures))
	})
}

func TestSendWithoutPublisher(t *testing.T) {
	store, err := dao.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	msg, err := NewSink(store, nil).Send(ctx, 1, 2, "您的认领申请已通过", "请联系发布者领取。")
	require.NoError(t, err)

	inbox, err := store.MessagesByReceiver(ctx, 2)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, msg.MessageId, inbox[0].MessageId)
	assert.False(t, inbox[0].IsRead)
}
