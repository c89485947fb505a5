package mfsw

// BuzzerState is the payload of both the buzzer state endpoint and the
// buzzer_update push event.
type BuzzerState struct {
	BuzzerOn *bool `json:"buzzer_on"`
}

// ListenResult is returned by the start listening endpoint.
type ListenResult struct {
	Message string `json:"message"`
}
