//go:build integration

package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"eet/internal/journal"
	"eet/pkg/platform/sentinel"
	"eet/pkg/platform/tx"
	"eet/pkg/testutil/containers"
)

func attempt(id string, status journal.Status, at time.Time) journal.Entry {
	return journal.Entry{
		MessageUUID:   id,
		ReceiptSerial: "68",
		TaxID:         "CZ1212121218",
		BKP:           "a9993e36-4706816a-ba3e2571-7850c26c-9cd0d89d",
		PKP:           "c2lnbmF0dXJl",
		Status:        status,
		AttemptedAt:   at.UTC().Truncate(time.Microsecond),
	}
}

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *journal.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = journal.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "eet_submissions"))
}

func (s *PostgresStoreSuite) TestRecordAndFind() {
	ctx := context.Background()
	id := uuid.NewString()
	base := time.Now()

	failed := attempt(id, journal.StatusFailed, base)
	failed.ErrorNumber = 999
	failed.Message = "temporary technical error"
	s.Require().NoError(s.store.Record(ctx, failed))

	ok := attempt(id, journal.StatusRegistered, base.Add(time.Second))
	ok.FiscalCode = "fik-1"
	s.Require().NoError(s.store.Record(ctx, ok))

	entries, err := s.store.Find(ctx, id)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(journal.StatusFailed, entries[0].Status)
	s.Equal(999, entries[0].ErrorNumber)
	s.Equal("fik-1", entries[1].FiscalCode)
	s.True(entries[1].AttemptedAt.Equal(ok.AttemptedAt))
}

func (s *PostgresStoreSuite) TestFindUnknown() {
	_, err := s.store.Find(context.Background(), uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRecordJoinsContextTransaction() {
	ctx := context.Background()
	id := uuid.NewString()

	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := tx.WithTx(ctx, sqlTx)
	s.Require().NoError(s.store.Record(txCtx, attempt(id, journal.StatusRegistered, time.Now())))

	entries, err := s.store.Find(txCtx, id)
	s.Require().NoError(err)
	s.Len(entries, 1)

	s.Require().NoError(sqlTx.Rollback())
	_, err = s.store.Find(ctx, id)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByStatusUsesLatestAttempt() {
	ctx := context.Background()
	base := time.Now()
	resent := uuid.NewString()
	stuck := uuid.NewString()

	s.Require().NoError(s.store.Record(ctx, attempt(resent, journal.StatusFailed, base)))
	s.Require().NoError(s.store.Record(ctx, attempt(resent, journal.StatusRegistered, base.Add(time.Second))))
	s.Require().NoError(s.store.Record(ctx, attempt(stuck, journal.StatusFailed, base.Add(2*time.Second))))

	entries, err := s.store.ListByStatus(ctx, journal.StatusFailed, journal.StatusRejected)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(stuck, entries[0].MessageUUID)
}

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *journal.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = journal.NewRedisStore(s.redis.Client.Client, journal.WithTTL(time.Hour))
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRecordAndFind() {
	ctx := context.Background()
	id := uuid.NewString()
	base := time.Now()

	s.Require().NoError(s.store.Record(ctx, attempt(id, journal.StatusVerified, base)))
	s.Require().NoError(s.store.Record(ctx, attempt(id, journal.StatusRegistered, base.Add(time.Second))))

	entries, err := s.store.Find(ctx, id)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(journal.StatusVerified, entries[0].Status)
	s.Equal(journal.StatusRegistered, entries[1].Status)

	ttl, err := s.redis.Client.TTL(ctx, "eet:journal:"+id).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)
}

func (s *RedisStoreSuite) TestFindUnknown() {
	_, err := s.store.Find(context.Background(), uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
