package conversation

import (
	"regexp"
	"strings"

	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// ticketToken matches what actors type as a ticket number: digits with an
// optional letter prefix and dash, e.g. 123 or T-100.
const ticketToken = `[A-Za-z]*-?\d+`

var (
	actionLinePattern = regexp.MustCompile(`(?s)^(\d+)\s+(` + ticketToken + `)(?:\s+(.*))?$`)
	lookupPattern     = regexp.MustCompile(`^` + ticketToken + `$`)
)

// actionLine is a privileged "<code> <ticket> [text]" command.
type actionLine struct {
	Code         string
	TicketNumber string
	Text         string
}

func parseActionLine(text string) (actionLine, bool) {
	m := actionLinePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return actionLine{}, false
	}
	return actionLine{
		Code:         m[1],
		TicketNumber: entity.NormalizeTicketNumber(m[2]),
		Text:         strings.TrimSpace(m[3]),
	}, true
}

func isTicketLookup(text string) bool {
	return lookupPattern.MatchString(strings.TrimSpace(text))
}

// isCommand reports whether text is the keyword cmd, optionally followed
// by an argument.
func isCommand(text, cmd string) bool {
	lower := strings.ToLower(text)
	if lower == cmd {
		return true
	}
	return strings.HasPrefix(lower, cmd+" ") || strings.HasPrefix(lower, cmd+"\n")
}

// commandArgument returns what follows the command keyword.
func commandArgument(text, cmd string) string {
	if len(text) <= len(cmd) {
		return ""
	}
	return strings.TrimSpace(text[len(cmd):])
}

// parseRequestForm reads the labeled lines of a request form. Labels are
// matched case-insensitively; unknown lines are ignored and a later line
// overrides an earlier one.
func parseRequestForm(text string) entity.RequestForm {
	var form entity.RequestForm
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case strings.ToLower(service.FormLabelName):
			form.SenderName = value
		case strings.ToLower(service.FormLabelGoods):
			form.GoodsName = value
		case strings.ToLower(service.FormLabelQuantity):
			form.Quantity = value
		case strings.ToLower(service.FormLabelLink):
			form.Link = value
		case strings.ToLower(service.FormLabelReason), "alasan":
			form.Reason = value
		}
	}
	return form
}
