package logger

const (
	FieldUserID  = "user_id"
	FieldMenuID  = "menu_id"
	FieldError   = "error"
	FieldPreview = "preview"
	FieldReason  = "reason"
)
