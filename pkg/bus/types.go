package bus

// MessageRef identifies an inbound message on the transport so that read
// receipts can point back at it. A zero ref means "no specific message".
type MessageRef struct {
	ID     string `json:"id"`
	Chat   string `json:"chat"`
	Sender string `json:"sender"`
}

func (r MessageRef) IsZero() bool {
	return r.ID == ""
}

type InboundMessage struct {
	UserID   string     `json:"user_id"`
	Text     string     `json:"text"`
	PushName string     `json:"push_name,omitempty"`
	Ref      MessageRef `json:"ref"`
}
