// Package spreadsheet stores tickets as rows of an xlsx workbook, one row
// per ticket under a header row. The file is reopened on every call so
// edits made by hand between calls are seen.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// DefaultSheet is the sheet holding the ticket table.
const DefaultSheet = "Requests"

// TicketStore implements port.TicketStore on an xlsx file
type TicketStore struct {
	path   string
	sheet  string
	logger *zap.Logger

	// mu serializes read-modify-write cycles on the file within this process.
	mu sync.Mutex
}

// NewTicketStore creates a store for the workbook at path. Call Bootstrap
// before first use.
func NewTicketStore(path, sheet string, logger *zap.Logger) *TicketStore {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &TicketStore{
		path:   path,
		sheet:  sheet,
		logger: logger,
	}
}

// Bootstrap creates the workbook, the sheet and any missing header columns.
func (s *TicketStore) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		return fmt.Errorf("failed to look up sheet %s: %w", s.sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.sheet, err)
		}
	}

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}

	existing := newLayout(header)
	next := len(header)
	added := 0
	for _, name := range Header() {
		if _, ok := existing[name]; ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(next+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(s.sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header %s: %w", name, err)
		}
		next++
		added++
	}

	// A fresh workbook carries an empty default sheet; drop it.
	if def := "Sheet1"; def != s.sheet {
		if i, _ := f.GetSheetIndex(def); i != -1 && len(f.GetSheetList()) > 1 {
			if rows, _ := f.GetRows(def); len(rows) == 0 {
				_ = f.DeleteSheet(def)
			}
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	if added > 0 {
		s.logger.Info("Ticket sheet header bootstrapped",
			zap.String("path", s.path),
			zap.String("sheet", s.sheet),
			zap.Int("columns_added", added))
	}
	return nil
}

func (s *TicketStore) openOrCreate() (*excelize.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create workbook directory: %w", err)
			}
		}
		f := excelize.NewFile()
		if err := f.SaveAs(s.path); err != nil {
			return nil, fmt.Errorf("failed to create workbook: %w", err)
		}
		return f, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

// table is the loaded sheet.
type table struct {
	file     *excelize.File
	layout   layout
	rows     [][]string
	date1904 bool
	logger   *zap.Logger
}

// load opens the workbook and reads the sheet. The caller closes file.
func (s *TicketStore) load() (*table, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	rows, err := f.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}
	if len(rows) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("sheet %s has no header row", s.sheet)
	}

	l := newLayout(rows[0])
	if _, ok := l[colTicketNumber]; !ok {
		_ = f.Close()
		return nil, fmt.Errorf("sheet %s has no %s column", s.sheet, colTicketNumber)
	}

	props, err := f.GetWorkbookProps()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read workbook properties: %w", err)
	}

	return &table{
		file:     f,
		layout:   l,
		rows:     rows,
		date1904: props.Date1904 != nil && *props.Date1904,
		logger:   s.logger,
	}, nil
}

func (t *table) decode(row []string) *entity.Ticket {
	ticket := t.layout.decodeRow(row)
	ticket.Timestamp = t.timeCell(row, ticket.TicketNumber, colTimestamp)
	ticket.LastUpdated = t.timeCell(row, ticket.TicketNumber, colLastUpdated)
	return ticket
}

// timeCell decodes a timestamp column. An unreadable value decodes as zero,
// which keeps the row out of the poller, so it is logged.
func (t *table) timeCell(row []string, ticketNumber, column string) time.Time {
	value := t.layout.get(row, column)
	ts, err := parseTime(value, t.date1904)
	if err != nil {
		t.logger.Warn("Unreadable timestamp cell",
			zap.String("ticket_number", ticketNumber),
			zap.String("column", column),
			zap.String("value", value),
			zap.Error(err))
	}
	return ts
}

// find returns the 1-based sheet row of ticketNumber, or 0.
func (t *table) find(ticketNumber string) int {
	key := entity.NormalizeTicketNumber(ticketNumber)
	for i := 1; i < len(t.rows); i++ {
		if entity.NormalizeTicketNumber(t.layout.get(t.rows[i], colTicketNumber)) == key {
			return i + 1
		}
	}
	return 0
}

func (t *table) write(sheet string, row int, cells map[string]string) error {
	for name, value := range cells {
		col, ok := t.layout[name]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		// Strings keep phone numbers and ticket numbers from turning numeric.
		if err := t.file.SetCellStr(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write %s: %w", cell, err)
		}
	}
	return nil
}

func (s *TicketStore) Create(ctx context.Context, ticket *entity.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	defer t.file.Close()

	if t.find(ticket.TicketNumber) != 0 {
		return fmt.Errorf("%w: %s", port.ErrDuplicateTicket, ticket.TicketNumber)
	}

	row := len(t.rows) + 1
	if err := t.write(s.sheet, row, allCells(ticket)); err != nil {
		return err
	}
	if err := t.file.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	s.logger.Debug("Ticket row appended",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int("row", row))
	return nil
}

func (s *TicketStore) Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	defer t.file.Close()

	row := t.find(ticketNumber)
	if row == 0 {
		return nil, nil
	}
	return t.decode(t.rows[row-1]), nil
}

func (s *TicketStore) Update(ctx context.Context, ticket *entity.Ticket, expectedLastUpdated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	defer t.file.Close()

	row := t.find(ticket.TicketNumber)
	if row == 0 {
		return fmt.Errorf("ticket %s is no longer in the sheet", ticket.TicketNumber)
	}

	stored := t.timeCell(t.rows[row-1], ticket.TicketNumber, colLastUpdated)
	if !utils.TruncateMillis(stored).Equal(utils.TruncateMillis(expectedLastUpdated)) {
		return port.ErrConflict
	}

	if err := t.write(s.sheet, row, mutableCells(ticket)); err != nil {
		return err
	}
	if err := t.file.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (s *TicketStore) List(ctx context.Context) ([]*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	defer t.file.Close()

	tickets := make([]*entity.Ticket, 0, len(t.rows))
	for _, row := range t.rows[1:] {
		ticket := t.decode(row)
		if ticket.TicketNumber == "" {
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (s *TicketStore) MarkNotified(ctx context.Context, ticketNumber string, flag entity.NotifyFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	defer t.file.Close()

	row := t.find(ticketNumber)
	if row == 0 {
		return fmt.Errorf("ticket %s is no longer in the sheet", ticketNumber)
	}
	if _, ok := t.layout[string(flag)]; !ok {
		return fmt.Errorf("sheet %s has no %s column", s.sheet, flag)
	}

	if err := t.write(s.sheet, row, map[string]string{string(flag): flagYes}); err != nil {
		return err
	}
	if err := t.file.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.TicketStore = (*TicketStore)(nil)
