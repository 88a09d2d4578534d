package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/api-support-chatbot/server/internal/agent/model"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

var plog = logx.Component("structured_parser")

// ExtractJSONObject isolates the JSON object from a model reply. Models
// occasionally wrap the object in a markdown fence or surrounding prose;
// the substring between the first '{' and the last '}' is taken.
func ExtractJSONObject(content string) (string, error) {
	if len(content) > maxContentLen {
		plog.Warn().
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("empty content")
	}

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object in content: %s", safeSnippet(content))
	}
	return content[start : end+1], nil
}

func decodeObject(content string, out any, what string) error {
	obj, err := ExtractJSONObject(content)
	if err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("decode %s: %w (content: %s)", what, err, safeSnippet(obj))
	}
	return nil
}

// DecodeRequestDetails parses the extractor model reply. A parseable reply
// where both the clarifying question and the info message are empty while
// the request is invalid gets a fallback info message so the customer never
// receives an empty turn.
func DecodeRequestDetails(content string) (*model.RequestDetails, error) {
	var details model.RequestDetails
	if err := decodeObject(content, &details, "request details"); err != nil {
		return nil, err
	}
	if !details.ValidRequestReceived && details.ClarifyingQuestion == "" && details.InfoMessage == "" {
		details.InfoMessage = "Could you share more detail about your request so I can help?"
	}
	return &details, nil
}

// DecodeRequestItems parses the coordinator model reply.
func DecodeRequestItems(content string) (*model.ExtractedRequests, error) {
	var extracted model.ExtractedRequests
	if err := decodeObject(content, &extracted, "request items"); err != nil {
		return nil, err
	}
	return &extracted, nil
}

// DecodeAssembledResponse parses the assembler model reply.
func DecodeAssembledResponse(content string) (*model.AssembledResponse, error) {
	var assembled model.AssembledResponse
	if err := decodeObject(content, &assembled, "assembled response"); err != nil {
		return nil, err
	}
	if assembled.ResponseText == "" {
		return nil, fmt.Errorf("decode assembled response: empty response_text")
	}
	return &assembled, nil
}

// DecodeResponderAnswer parses a responder's final reply. This never fails:
// unparseable content degrades to the raw text with response_found=false
// and zero confidence, and confidence is always clamped to [0,1].
func DecodeResponderAnswer(content string) model.ResponderAnswer {
	var answer model.ResponderAnswer
	if err := decodeObject(content, &answer, "responder answer"); err != nil {
		plog.Warn().
			Str("content", safeSnippet(content)).
			Msg("responder answer not valid json, falling back to raw text")
		return model.ResponderAnswer{
			ResponseText:  content,
			ResponseFound: false,
			Confidence:    0.0,
		}
	}
	if answer.ResponseText == "" {
		answer.ResponseText = content
		answer.ResponseFound = false
	}
	answer.Confidence = model.ClampConfidence(answer.Confidence)
	return answer
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrSnippet {
		return s[:maxErrSnippet] + "..."
	}
	return s
}
