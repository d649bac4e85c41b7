package logger

const (
	FieldChannel    = "channel"
	FieldChatID     = "chat_id"
	FieldUserID     = "user_id"
	FieldMessageID  = "message_id"
	FieldCallbackID = "callback_id"
	FieldEventKind  = "event"
	FieldAction     = "action"
	FieldCommand    = "command"
	FieldIncidentID = "incident_id"
	FieldPreview    = "preview"
	FieldError      = "error"

	FieldPayloadLength = "payload_length"
	FieldActionCount   = "action_count"
)
