package stats

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresStore(db), mock
}

func TestPostgresStoreRecord(t *testing.T) {
	store, mock := newTestStore(t)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := models.EpisodeResult{
		EpisodeID: "ep-1",
		ArenaID:   "arena-1",
		AgentID:   "agent-1",
		Steps:     120,
		Return:    1.25,
		Shots:     30,
		Hits:      3,
		Truncated: true,
		StartTime: start,
		EndTime:   start.Add(time.Minute),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO episode_records")).
		WithArgs("ep-1", "arena-1", "agent-1", 120, 1.25, 30, 3, true, start, start.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Record(context.Background(), res); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestPostgresStoreRecordError(t *testing.T) {
	store, mock := newTestStore(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO episode_records")).WillReturnError(boom)

	if err := store.Record(context.Background(), models.EpisodeResult{EpisodeID: "ep"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPostgresStoreRecent(t *testing.T) {
	store, mock := newTestStore(t)
	end := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	cols := []string{"episode_id", "arena_id", "agent_id", "steps", "episode_return", "shots", "hits", "truncated", "start_time", "end_time"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM episode_records")).
		WithArgs("agent-1", 5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("ep-2", "arena-1", "agent-1", 50, 0.5, 10, 1, false, end.Add(-time.Minute), end).
			AddRow("ep-1", "", "agent-1", 5000, -2.0, 80, 0, true, end.Add(-time.Hour), end.Add(-time.Minute)))

	got, err := store.Recent(context.Background(), "agent-1", 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].EpisodeID != "ep-2" || got[0].Steps != 50 || got[0].Hits != 1 || !got[0].EndTime.Equal(end) {
		t.Fatalf("recent %+v", got)
	}
	if got[1].ArenaID != "" || !got[1].Truncated || got[1].Return != -2.0 {
		t.Fatalf("second %+v", got[1])
	}
}
