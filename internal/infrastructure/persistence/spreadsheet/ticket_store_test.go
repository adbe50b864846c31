package spreadsheet

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

func newStore(t *testing.T) (*TicketStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheets", "requests.xlsx")
	s := NewTicketStore(path, "", zap.NewNop())
	require.NoError(t, s.Bootstrap(context.Background()))
	return s, path
}

func sampleTicket(number string, lastUpdated time.Time) *entity.Ticket {
	return &entity.Ticket{
		TicketNumber: number,
		Timestamp:    lastUpdated,
		SenderNumber: "6281234567890",
		SenderName:   "Budi",
		GoodsName:    "Proyektor",
		Quantity:     "2",
		Link:         "https://example.com/p",
		Reason:       "Rapat",
		Status:       entity.StatusPendingApproval,
		LastUpdated:  lastUpdated,
	}
}

func TestBootstrap_WritesHeaderOnce(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, s.Bootstrap(context.Background()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DefaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Header(), rows[0])
}

func TestBootstrap_AppendsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet(DefaultSheet)
	require.NoError(t, err)
	legacy := []interface{}{"ticketNumber", "status", "lastUpdated"}
	require.NoError(t, f.SetSheetRow(DefaultSheet, "A1", &legacy))
	row := []interface{}{"42", "PENDING_APPROVAL", "2025-03-10T09:00:00.000+07:00"}
	require.NoError(t, f.SetSheetRow(DefaultSheet, "A2", &row))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	s := NewTicketStore(path, DefaultSheet, zap.NewNop())
	require.NoError(t, s.Bootstrap(context.Background()))

	got, err := s.Get(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.StatusPendingApproval, got.Status)

	require.NoError(t, s.MarkNotified(context.Background(), "42", entity.FlagNewRequest))
	got, err = s.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, got.Notified.Has(entity.FlagNewRequest))
}

func TestTicketStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	t0 := time.Date(2025, 3, 10, 2, 0, 0, 123_000_000, time.UTC)

	require.NoError(t, s.Create(ctx, sampleTicket("T-100", t0)))

	got, err := s.Get(ctx, "t-100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "T-100", got.TicketNumber)
	assert.Equal(t, "6281234567890", got.SenderNumber)
	assert.Equal(t, "Proyektor", got.GoodsName)
	assert.Equal(t, "2", got.Quantity)
	assert.True(t, t0.Equal(got.LastUpdated))
	assert.True(t, t0.Equal(got.Timestamp))

	missing, err := s.Get(ctx, "T-999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, s.Create(ctx, sampleTicket("t-100", t0)), port.ErrDuplicateTicket)
}

func TestTicketStore_UpdateCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	t0 := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleTicket("7", t0)))

	next := sampleTicket("7", t0)
	next.Status = entity.StatusPendingProcess
	next.ApprovalSekdep = entity.DecisionApproved
	next.LastUpdated = t0.Add(time.Second)
	require.NoError(t, s.Update(ctx, next, t0))

	stale := sampleTicket("7", t0)
	stale.Status = entity.StatusRejected
	stale.LastUpdated = t0.Add(2 * time.Second)
	assert.ErrorIs(t, s.Update(ctx, stale, t0), port.ErrConflict)

	got, err := s.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingProcess, got.Status)
	assert.Equal(t, entity.DecisionApproved, got.ApprovalSekdep)
	assert.True(t, t0.Add(time.Second).Equal(got.LastUpdated))
}

func TestTicketStore_UpdateWritesFlags(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	t0 := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleTicket("8", t0)))
	require.NoError(t, s.MarkNotified(ctx, "8", entity.FlagApproved))

	next := sampleTicket("8", t0)
	next.LastUpdated = t0.Add(time.Second)
	require.NoError(t, s.Update(ctx, next, t0))

	got, err := s.Get(ctx, "8")
	require.NoError(t, err)
	assert.False(t, got.Notified.Has(entity.FlagApproved))
}

func TestTicketStore_MarkNotifiedKeepsLastUpdated(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	t0 := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleTicket("9", t0)))

	require.NoError(t, s.MarkNotified(ctx, "9", entity.FlagProcessed))

	got, err := s.Get(ctx, "9")
	require.NoError(t, err)
	assert.True(t, got.Notified.Has(entity.FlagProcessed))
	assert.True(t, t0.Equal(got.LastUpdated))

	assert.Error(t, s.MarkNotified(ctx, "404", entity.FlagProcessed))
}

func TestTicketStore_ListReadsHandEdits(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	t0 := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, sampleTicket("1", t0)))
	require.NoError(t, s.Create(ctx, sampleTicket("2", t0)))

	// Someone edits the status of ticket 2 directly in the workbook.
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr(DefaultSheet, "I3", "rejected"))
	require.NoError(t, f.SetCellStr(DefaultSheet, "N3", "2025-03-10 10:00:00"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	tickets, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "1", tickets[0].TicketNumber)
	assert.Equal(t, entity.StatusRejected, tickets[1].Status)
	assert.Equal(t, "2025-03-10T10:00:00.000+07:00", utils.FormatWIB(tickets[1].LastUpdated))
}

func TestTicketStore_ReadsDateCells(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, s.Create(ctx, sampleTicket("1", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC))))

	// A spreadsheet app saves an edited date as a serial number.
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(DefaultSheet, "N2", time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	want := time.Date(2025, 3, 11, 10, 0, 0, 0, utils.WIB)
	assert.True(t, want.Equal(got.LastUpdated), "got %s", utils.FormatWIB(got.LastUpdated))

	next := got.Clone()
	next.Status = entity.StatusRejected
	next.LastUpdated = want.Add(time.Minute)
	require.NoError(t, s.Update(ctx, next, got.LastUpdated))
}

func TestTicketStore_UnreadableTimestampIsLogged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "requests.xlsx")
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewTicketStore(path, "", zap.New(core))
	require.NoError(t, s.Bootstrap(ctx))
	require.NoError(t, s.Create(ctx, sampleTicket("1", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC))))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr(DefaultSheet, "N2", "kemarin sore"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	tickets, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.True(t, tickets[0].LastUpdated.IsZero())

	entries := logs.FilterMessage("Unreadable timestamp cell").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "lastUpdated", entries[0].ContextMap()["column"])
	assert.Equal(t, "1", entries[0].ContextMap()["ticket_number"])
}

func TestTicketStore_MissingWorkbook(t *testing.T) {
	s := NewTicketStore(filepath.Join(t.TempDir(), "none.xlsx"), "", zap.NewNop())
	_, err := s.List(context.Background())
	assert.Error(t, err)
}
