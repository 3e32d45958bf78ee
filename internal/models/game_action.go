package models

// GameAction is one inbound player message after transport decoding.
type GameAction struct {
	ActionType string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// String returns the payload value at key, or "" if absent or not a string.
func (a GameAction) String(key string) string {
	if a.Payload == nil {
		return ""
	}
	s, _ := a.Payload[key].(string)
	return s
}
