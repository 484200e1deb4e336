package relay

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	PLATFORM_INSTAGRAM = "instagram"
	PLATFORM_MESSENGER = "page"
	PLATFORM_WHATSAPP  = "whatsapp"
)

// Event is the first text message of an inbound webhook delivery.
// A message Event always has SenderID and Text set. Echo and Status events
// are acknowledgements only and may lack them.
type Event struct {
	Platform    string
	SenderID    string
	RecipientID string
	Timestamp   int64
	MessageID   string
	Text        string
	Echo        bool // mensagem enviada pela própria página
	Status      bool // recibo de entrega do WhatsApp (sent/delivered/read)
}

type idField struct {
	ID string `json:"id"`
}

// envelope covers both the Messenger/Instagram shape (entry[].messaging[])
// and the WhatsApp Cloud shape (entry[].changes[].value.messages[]).
type envelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Messaging []struct {
			Sender    *idField `json:"sender"`
			Recipient *idField `json:"recipient"`
			Timestamp int64    `json:"timestamp"`
			Message   *struct {
				Mid    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// DecodeEvent turns a raw webhook body into an Event. It fails with
// ErrMalformedPayload when the body is not JSON, or when the first message
// has no sender id or no text.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, malformed("body is not valid json: %v", err)
	}
	if len(env.Entry) == 0 {
		return Event{}, malformed("entry is empty")
	}
	entry := env.Entry[0]

	if len(entry.Messaging) > 0 {
		m := entry.Messaging[0]
		ev := Event{
			Platform:  platformOf(env.Object),
			Timestamp: m.Timestamp,
		}
		if m.Sender == nil || strings.TrimSpace(m.Sender.ID) == "" {
			return Event{}, malformed("sender.id is missing")
		}
		ev.SenderID = m.Sender.ID
		if m.Recipient != nil {
			ev.RecipientID = m.Recipient.ID
		}
		if m.Message != nil && m.Message.IsEcho {
			ev.MessageID = m.Message.Mid
			ev.Text = m.Message.Text
			ev.Echo = true
			return ev, nil
		}
		if m.Message == nil || strings.TrimSpace(m.Message.Text) == "" {
			return Event{}, malformed("message.text is missing")
		}
		ev.MessageID = m.Message.Mid
		ev.Text = m.Message.Text
		return ev, nil
	}

	if len(entry.Changes) > 0 && len(entry.Changes[0].Value.Messages) > 0 {
		v := entry.Changes[0].Value
		m := v.Messages[0]
		if strings.TrimSpace(m.From) == "" {
			return Event{}, malformed("messages[0].from is missing")
		}
		if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
			return Event{}, malformed("messages[0].text.body is missing")
		}
		ts, _ := strconv.ParseInt(strings.TrimSpace(m.Timestamp), 10, 64)
		return Event{
			Platform:    PLATFORM_WHATSAPP,
			SenderID:    m.From,
			RecipientID: v.Metadata.PhoneNumberID,
			Timestamp:   ts,
			MessageID:   m.ID,
			Text:        m.Text.Body,
		}, nil
	}

	if len(entry.Changes) > 0 && len(entry.Changes[0].Value.Statuses) > 0 {
		v := entry.Changes[0].Value
		st := v.Statuses[0]
		ts, _ := strconv.ParseInt(strings.TrimSpace(st.Timestamp), 10, 64)
		return Event{
			Platform:    PLATFORM_WHATSAPP,
			SenderID:    st.RecipientID,
			RecipientID: v.Metadata.PhoneNumberID,
			Timestamp:   ts,
			MessageID:   st.ID,
			Status:      true,
		}, nil
	}

	return Event{}, malformed("entry[0] has no message")
}

func platformOf(object string) string {
	switch strings.ToLower(strings.TrimSpace(object)) {
	case "page":
		return PLATFORM_MESSENGER
	case "whatsapp_business_account":
		return PLATFORM_WHATSAPP
	default:
		return PLATFORM_INSTAGRAM
	}
}
