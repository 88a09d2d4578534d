package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// GreetingMessage opens a fresh conversation thread.
const GreetingMessage = "Hello! I'm an AI assistant here to help you with any Lightspeed API questions or issues. How can I assist you today?"

// GenericErrorMessage prefixes every customer-facing failure turn.
const GenericErrorMessage = "I apologize, but I encountered an issue while processing your request."

// WorkingMessage is the transient turn appended once a request is validated.
const WorkingMessage = "Working on your request..."

// CouldNotIdentifyMessage is used when coordination yields no request items.
const CouldNotIdentifyMessage = "I could not identify specific requests in your message. Could you rephrase what you need help with?"

//go:embed template/scope_categories.txt
var scopeCategories string

//go:embed template/products.txt
var productsInScope string

//go:embed template/extractor_prompt.txt
var extractorSystemPrompt string

//go:embed template/coordinator_prompt.txt
var coordinatorSystemPrompt string

//go:embed template/responder_prompt.txt
var responderSystemPrompt string

//go:embed template/assembler_prompt.txt
var assemblerSystemPrompt string

// render substitutes known tokens only (the templates contain literal JSON
// braces) and pushes the result through the eino prompt component so prompt
// callbacks fire.
func render(ctx context.Context, name, raw string, tokens ...string) (string, error) {
	content := strings.NewReplacer(tokens...).Replace(raw)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// RenderExtractorSystem renders the request-detail extraction system prompt.
func RenderExtractorSystem(ctx context.Context) (string, error) {
	return render(ctx, "extractor", extractorSystemPrompt,
		"{support_scope_categories}", scopeCategories,
		"{products_in_scope}", productsInScope,
	)
}

// RenderCoordinatorSystem renders the request-decomposition system prompt.
func RenderCoordinatorSystem(ctx context.Context) (string, error) {
	return render(ctx, "coordinator", coordinatorSystemPrompt,
		"{support_scope_categories}", scopeCategories,
		"{products_in_scope}", productsInScope,
	)
}

// RenderResponderSystem renders the per-item response-agent system prompt.
func RenderResponderSystem(ctx context.Context) (string, error) {
	return render(ctx, "responder", responderSystemPrompt,
		"{date}", today(),
	)
}

// RenderAssemblerSystem renders the final-assembly system prompt.
func RenderAssemblerSystem(ctx context.Context) (string, error) {
	return render(ctx, "assembler", assemblerSystemPrompt,
		"{date}", today(),
	)
}

// MessagesToText renders a message segment as a plain text block,
// one "role:\ncontent" paragraph per turn.
func MessagesToText(messages []*schema.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: \n%s", msg.Role, msg.Content))
	}
	return strings.Join(parts, "\n\n")
}

// FormatConversationContext renders the historical and current conversation
// segments as the tagged text blocks the extraction prompts expect.
func FormatConversationContext(historical, current []*schema.Message) string {
	var b strings.Builder
	b.WriteString("<HISTORICAL CONVERSATION>\n")
	b.WriteString(MessagesToText(historical))
	b.WriteString("\n</HISTORICAL CONVERSATION>\n\n")
	b.WriteString("<CONVERSATION>\n")
	b.WriteString(MessagesToText(current))
	b.WriteString("\n</CONVERSATION>\n")
	return b.String()
}
