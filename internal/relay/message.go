package relay

// MessageType tags relayed metric envelopes.
const MessageType = "PERFORMANCE_METRIC"

// Metric is the relayed part of a metric update.
type Metric struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Rating string  `json:"rating,omitempty"`
}

// Message is the envelope delivered to embedding dashboards.
type Message struct {
	Type     string `json:"type"`
	Metric   Metric `json:"metric"`
	Pathname string `json:"pathname"`
}

func NewMessage(m Metric, pathname string) Message {
	return Message{
		Type:     MessageType,
		Metric:   m,
		Pathname: pathname,
	}
}

// Relay posts messages to frames of one origin. Delivery is best-effort:
// no acknowledgement, no retry, no error reported to the sender.
type Relay interface {
	Post(msg Message, targetOrigin string)
}

// Discard is a Relay that drops everything.
type Discard struct{}

func (Discard) Post(Message, string) {}
