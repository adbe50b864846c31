package entity

// Chat command keywords.
const (
	CommandRequest = "/request"
	CommandHelp    = "/help"
	CommandReply   = "/jawab"
)
