package arenadto

import "encoding/json"

// Event names on the push channel.
const (
	EventUser       = "user"
	EventUsers      = "users"
	EventGame       = "game"
	EventInputError = "input_error"

	EventPlayGame    = "play_game"
	EventMakeMove    = "make_move"
	EventDeleteUsers = "delete_users"
)

// Frame is one push channel message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals data and wraps it into a frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

type ErrorBody struct {
	Error string `json:"error"`
}
