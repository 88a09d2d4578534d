package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// ===================================
// Retrieve Support Context Tool
// ===================================

type RetrieveSupportContextInput struct {
	RequestText string `json:"request_text"`
	Product     string `json:"product,omitempty"`
	Search      string `json:"search,omitempty"`
}

type SupportSnippet struct {
	Source  string `json:"source"`
	Kind    string `json:"kind"`
	Product string `json:"product,omitempty"`
	Content string `json:"content"`
}

type RetrieveSupportContextOutput struct {
	Snippets []SupportSnippet `json:"snippets"`
	Total    int              `json:"total"`
}

func createRetrieveSupportContextTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRetrieveSupportContext,
			Desc: "Retrieve support context (documentation excerpts and resolved ticket summaries) relevant to an API support question. Use this before answering any technical question.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"request_text": {
					Type:     "string",
					Desc:     "The specific question or issue to retrieve context for.",
					Required: true,
				},
				"product": {
					Type: "string",
					Desc: "The API product ID the question relates to, e.g. c-series or x-series.",
				},
				"search": {
					Type: "string",
					Desc: "Type of search: tickets, docs, or all (default).",
				},
			}),
		},
		func(ctx context.Context, in *RetrieveSupportContextInput) (*RetrieveSupportContextOutput, error) {
			if in.RequestText == "" {
				return nil, fmt.Errorf("request_text is required")
			}

			search := strings.ToLower(strings.TrimSpace(in.Search))
			if search == "" {
				search = "all"
			}

			queryLower := strings.ToLower(in.RequestText)
			var matched []SupportSnippet
			for _, snippet := range supportCorpus {
				if search != "all" && !strings.EqualFold(snippet.Kind, search) {
					continue
				}
				if in.Product != "" && snippet.Product != "" && !strings.EqualFold(snippet.Product, in.Product) {
					continue
				}
				if snippetMatches(snippet, queryLower) {
					matched = append(matched, snippet)
				}
			}

			if len(matched) > maxSnippets {
				matched = matched[:maxSnippets]
			}

			return &RetrieveSupportContextOutput{
				Snippets: matched,
				Total:    len(matched),
			}, nil
		},
	)
}

const maxSnippets = 5

func snippetMatches(snippet SupportSnippet, queryLower string) bool {
	content := strings.ToLower(snippet.Content)
	for _, word := range strings.Fields(queryLower) {
		if len(word) < 4 {
			continue
		}
		if strings.Contains(content, word) {
			return true
		}
	}
	return false
}

// supportCorpus is the embedded knowledge base the local tool source serves.
// A production deployment points TOOLS_TRANSPORT at an MCP retrieval server
// instead.
var supportCorpus = []SupportSnippet{
	{
		Source:  "docs/authentication",
		Kind:    "docs",
		Product: "c-series",
		Content: "Lightspeed eCom (C-Series) API authentication uses HTTP Basic auth with an API key and secret generated per app. OAuth2 is not supported on C-Series; each shop grants access during app installation and credentials are delivered to your app's callback URL.",
	},
	{
		Source:  "docs/authentication",
		Kind:    "docs",
		Product: "x-series",
		Content: "Lightspeed eCom (X-Series) API supports OAuth2 authorization code flow. Register your application to obtain a client_id and client_secret, direct the merchant to the authorize endpoint, then exchange the code for an access token at /api/1.0/token. Access tokens expire and must be refreshed with the refresh_token grant.",
	},
	{
		Source:  "docs/rate-limits",
		Kind:    "docs",
		Product: "c-series",
		Content: "C-Series API requests are rate limited per app per shop using a leaky bucket of 300 requests per 5 minutes. Exceeding the limit returns HTTP 429 with a Retry-After header. Batch endpoints and caching reduce request volume.",
	},
	{
		Source:  "docs/webhooks",
		Kind:    "docs",
		Product: "c-series",
		Content: "C-Series webhooks are registered via POST /webhooks.json with an itemGroup, itemAction and address. Deliveries retry with backoff for 24 hours on non-2xx responses; repeated failures deactivate the webhook and notify the app owner.",
	},
	{
		Source:  "docs/webhooks",
		Kind:    "docs",
		Product: "x-series",
		Content: "X-Series webhooks are managed through the /api/2.0/webhooks endpoint. Payloads are signed with the webhook secret; verify the X-Signature header before processing. Duplicate deliveries are possible, consumers must be idempotent.",
	},
	{
		Source:  "tickets/TCK-4821",
		Kind:    "tickets",
		Product: "x-series",
		Content: "Customer reported 401 responses after token refresh on X-Series. Resolution: the refresh_token is single use; using a stale refresh token invalidates the grant and the merchant must re-authorize the app.",
	},
	{
		Source:  "tickets/TCK-5130",
		Kind:    "tickets",
		Product: "c-series",
		Content: "Customer reported duplicate webhook notifications on C-Series order events. Resolution: deliveries are at-least-once; deduplicate on the event id included in the payload envelope.",
	},
	{
		Source:  "docs/sandbox",
		Kind:    "docs",
		Content: "Developer sandbox accounts are available for both product lines through the partner portal. Sandbox shops reset monthly and are not rate limited, but external webhook delivery is disabled.",
	},
}
