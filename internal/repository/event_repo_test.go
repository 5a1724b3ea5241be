package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"smarthome_collector/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newSQLMock(t *testing.T) (sqlmock.Sqlmock, func() *EventSQLite) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, func() *EventSQLite { return NewEventSQLite(db) }
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()
	mock, newRepo := newSQLMock(t)
	repo := newRepo()

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			"dehumidifier", "TIMER_ARMED", "countdown started",
			`{"humidity":58}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(testCtx(t), models.AutomationEvent{
		Automation:  "dehumidifier",
		Type:        "  timer_armed ",
		Description: "countdown started",
		Metadata:    map[string]any{"humidity": 58},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	mock, newRepo := newSQLMock(t)

	mock.ExpectExec("INSERT INTO automation_events").
		WillReturnError(errors.New("down"))

	err := newRepo().Append(testCtx(t), models.AutomationEvent{Type: "TURN_ON", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	mock, newRepo := newSQLMock(t)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"a": "b"})

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "automation", "type", "message", "meta"}).
		AddRow("1", now, "dehumidifier", "TURN_ON", "m1", string(js)).
		AddRow("2", now.Add(time.Hour), "dehumidifier", "TURN_OFF", "m2", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, occurred_at, automation, type, message, meta FROM automation_events ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := newRepo().List(testCtx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "1" || got[1].EventID != "2" {
		t.Fatalf("unexpected results: %+v", got)
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b1), string(js))
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	mock, newRepo := newSQLMock(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, occurred_at, automation, type, message, meta FROM automation_events WHERE occurred_at >= ? AND occurred_at <= ? AND automation = ? AND type = ? ORDER BY occurred_at ASC`
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "automation", "type", "message", "meta"}).
		AddRow("2", from, "dehumidifier", "TURN_OFF", "b", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(from, to, "dehumidifier", "TURN_OFF").
		WillReturnRows(rows)

	got, err := newRepo().List(testCtx(t), EventFilter{From: from, To: to, Automation: "dehumidifier", Type: " turn_off "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Type != "TURN_OFF" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	mock, newRepo := newSQLMock(t)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "automation", "type", "message", "meta"}).
		AddRow("x", 123, "dehumidifier", "TURN_ON", "msg", nil)
	mock.ExpectQuery("SELECT id, occurred_at").WillReturnRows(rows)

	if _, err := newRepo().List(testCtx(t), EventFilter{}); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
