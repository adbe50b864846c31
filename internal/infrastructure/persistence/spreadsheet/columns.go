package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// Column headers of the ticket sheet, in the order a new sheet gets them.
// Columns are found by header, so a sheet may order them differently.
const (
	colTicketNumber    = "ticketNumber"
	colTimestamp       = "timestamp"
	colSenderNumber    = "senderNumber"
	colSenderName      = "senderName"
	colGoodsName       = "goodsName"
	colQuantity        = "quantity"
	colLink            = "link"
	colReason          = "reason"
	colStatus          = "status"
	colApprovalSekdep  = "approvalSekdep"
	colStatusBendahara = "statusBendahara"
	colReasonSekdep    = "reasonSekdep"
	colReasonBendahara = "reasonBendahara"
	colLastUpdated     = "lastUpdated"
)

// flagYes marks a set idempotency flag cell.
const flagYes = "YES"

// Header lists every column header.
func Header() []string {
	h := []string{
		colTicketNumber, colTimestamp, colSenderNumber, colSenderName,
		colGoodsName, colQuantity, colLink, colReason, colStatus,
		colApprovalSekdep, colStatusBendahara, colReasonSekdep,
		colReasonBendahara, colLastUpdated,
	}
	for _, f := range entity.AllNotifyFlags {
		h = append(h, string(f))
	}
	return h
}

// layout maps header names to zero-based column indexes.
type layout map[string]int

func newLayout(header []string) layout {
	l := make(layout, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := l[name]; !dup {
			l[name] = i
		}
	}
	return l
}

func (l layout) get(row []string, name string) string {
	i, ok := l[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// decodeRow builds a ticket from one sheet row, timestamps excluded.
func (l layout) decodeRow(row []string) *entity.Ticket {
	t := &entity.Ticket{
		TicketNumber:    l.get(row, colTicketNumber),
		SenderNumber:    l.get(row, colSenderNumber),
		SenderName:      l.get(row, colSenderName),
		GoodsName:       l.get(row, colGoodsName),
		Quantity:        l.get(row, colQuantity),
		Link:            l.get(row, colLink),
		Reason:          l.get(row, colReason),
		Status:          entity.Status(strings.ToUpper(l.get(row, colStatus))),
		ApprovalSekdep:  entity.SekdepDecision(strings.ToUpper(l.get(row, colApprovalSekdep))),
		StatusBendahara: entity.TreasurerStatus(strings.ToUpper(l.get(row, colStatusBendahara))),
		ReasonSekdep:    l.get(row, colReasonSekdep),
		ReasonBendahara: l.get(row, colReasonBendahara),
	}
	for _, f := range entity.AllNotifyFlags {
		if strings.EqualFold(l.get(row, string(f)), flagYes) {
			t.SetFlag(f, true)
		}
	}
	return t
}

// mutableCells are the cells Update rewrites.
func mutableCells(t *entity.Ticket) map[string]string {
	cells := map[string]string{
		colStatus:          string(t.Status),
		colApprovalSekdep:  string(t.ApprovalSekdep),
		colStatusBendahara: string(t.StatusBendahara),
		colReasonSekdep:    t.ReasonSekdep,
		colReasonBendahara: t.ReasonBendahara,
		colLastUpdated:     utils.FormatWIB(t.LastUpdated),
	}
	for _, f := range entity.AllNotifyFlags {
		cells[string(f)] = flagCell(t.Notified.Has(f))
	}
	return cells
}

// allCells are the cells Create writes.
func allCells(t *entity.Ticket) map[string]string {
	cells := mutableCells(t)
	cells[colTicketNumber] = t.TicketNumber
	cells[colTimestamp] = utils.FormatWIB(t.Timestamp)
	cells[colSenderNumber] = t.SenderNumber
	cells[colSenderName] = t.SenderName
	cells[colGoodsName] = t.GoodsName
	cells[colQuantity] = t.Quantity
	cells[colLink] = t.Link
	cells[colReason] = t.Reason
	return cells
}

func flagCell(set bool) string {
	if set {
		return flagYes
	}
	return ""
}

// parseTime reads a timestamp cell. Text goes through ParseWIB. A number is
// a date serial, which is what a spreadsheet app stores when a cell is
// edited as a date; its wall clock is taken as WIB.
func parseTime(value string, date1904 bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := utils.ParseWIB(value); err == nil {
		return t, nil
	}

	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
	}
	civil, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(civil.Year(), civil.Month(), civil.Day(),
		civil.Hour(), civil.Minute(), civil.Second(), civil.Nanosecond(), utils.WIB), nil
}
