package server

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Iron-Ham/crew/internal/mailbox"
	"github.com/Iron-Ham/crew/internal/team"
)

func (s *Server) registerExternalTools() {
	s.mcp.AddTool(
		mcplib.NewTool("send_message",
			mcplib.WithDescription(`Send a message to another team member.

Writes to the recipient's inbox. The team lead is CC'd when two
teammates message each other directly.`),
			mcplib.WithString("team_name", mcplib.Required()),
			mcplib.WithString("sender",
				mcplib.Description("Your agent name, as registered in the team"),
				mcplib.Required(),
			),
			mcplib.WithString("recipient",
				mcplib.Description("Target agent name, e.g. 'team-lead'"),
				mcplib.Required(),
			),
			mcplib.WithString("content",
				mcplib.Description("Message body"),
				mcplib.Required(),
			),
			mcplib.WithString("summary",
				mcplib.Description("Brief summary of the message"),
				mcplib.Required(),
			),
		),
		s.handleExternalSend,
	)

	s.registerTaskTools()
}

func (s *Server) handleExternalSend(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	teamName := request.GetString("team_name", "")
	sender := request.GetString("sender", "")
	recipient := request.GetString("recipient", "")
	content := request.GetString("content", "")
	summary := request.GetString("summary", "")

	switch {
	case teamName == "":
		return errorResult("team_name is required"), nil
	case sender == "":
		return errorResult("sender must not be empty"), nil
	case recipient == "":
		return errorResult("recipient must not be empty"), nil
	case content == "":
		return errorResult("message content must not be empty"), nil
	case summary == "":
		return errorResult("message summary must not be empty"), nil
	case sender == recipient:
		return errorResult("cannot send a message to yourself"), nil
	}

	enriched := withSenderReminder(content, sender)
	if _, err := s.deps.Mail.Send(teamName, sender, recipient, mailbox.KindPlain, mailbox.Payload{
		Content: enriched,
		Summary: summary,
	}); err != nil {
		return errorResult("failed to send: %v", err), nil
	}

	// Keep the lead in the loop on teammate-to-teammate traffic.
	if sender != team.LeadName && recipient != team.LeadName {
		if _, err := s.deps.Mail.Send(teamName, sender, team.LeadName, mailbox.KindPlain, mailbox.Payload{
			Content: enriched,
			Summary: fmt.Sprintf("[CC %s->%s] %s", sender, recipient, summary),
		}); err != nil {
			s.log.Warn("failed to CC team lead",
				"team", teamName, "sender", sender, "recipient", recipient, "error", err)
		}
	}

	return jsonResult(map[string]any{
		"success": true,
		"message": "message sent to " + recipient,
	}), nil
}
