package model

// RequestDetails is the structured extraction result of the first pipeline
// stage. When ValidRequestReceived is false, at least one of
// ClarifyingQuestion or InfoMessage carries the user-facing text.
type RequestDetails struct {
	ValidRequestReceived bool   `json:"valid_request_received"`
	ClarifyingQuestion   string `json:"clarifying_question,omitempty"`
	InfoMessage          string `json:"info_message,omitempty"`
	ProductID            string `json:"product_id,omitempty"`
}

// CustomerText returns the text to send back to the customer while the
// request is still being clarified. The clarifying question wins over the
// informational message.
func (d *RequestDetails) CustomerText() string {
	if d.ClarifyingQuestion != "" {
		return d.ClarifyingQuestion
	}
	return d.InfoMessage
}

// RequestItem is one decomposed sub-request produced by the coordinator.
// IDs are assigned by the coordinator, never taken from the model. Items are
// immutable after creation and consumed exactly once by one responder run.
type RequestItem struct {
	ID          string `json:"id"`
	RequestText string `json:"request_text"`
	Category    string `json:"category"`
	ProductID   string `json:"product_id,omitempty"`
}

// ExtractedRequests is the structured extraction envelope returned by the
// coordinator model call.
type ExtractedRequests struct {
	ItemList []RequestItem `json:"item_list"`
}

// ResponseItem is one sub-answer produced by a responder run, including the
// error path. RequestText and ProductID are carried through so the assembler
// has its context without joining back to the request items.
type ResponseItem struct {
	RequestID     string  `json:"request_id"`
	RequestText   string  `json:"request_text"`
	ProductID     string  `json:"product_id,omitempty"`
	ResponseText  string  `json:"response_text"`
	ResponseFound bool    `json:"response_found"`
	Confidence    float64 `json:"confidence"`
	Error         bool    `json:"error,omitempty"`
}

// AssembledResponse is the final customer-facing assembly result.
type AssembledResponse struct {
	ResponseText     string `json:"response_text"`
	FollowUpQuestion string `json:"follow_up_question,omitempty"`
}

// ResponderAnswer is the JSON contract a responder's final model reply is
// expected to follow.
type ResponderAnswer struct {
	ResponseText  string  `json:"response_text"`
	ResponseFound bool    `json:"response_found"`
	Confidence    float64 `json:"confidence"`
}

// ClampConfidence limits a confidence score to [0, 1]. Model output is not
// trusted to stay inside the range.
func ClampConfidence(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
