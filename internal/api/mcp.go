package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the relay operations as MCP tools. Tool results carry
// the same JSON bodies the HTTP routes return.
func NewMCPServer(svc Relay, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"moodrelay",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("moodrelay: chat with an LLM, log messages for sentiment tracking, and read a user's recent mood."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the LLM on behalf of a user and record the exchange."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
		),
		mcpChat(svc),
	)

	s.AddTool(
		mcp.NewTool("talk",
			mcp.WithDescription("Record a user's message and its sentiment score without calling the LLM."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
		),
		mcpTalk(svc),
	)

	s.AddTool(
		mcp.NewTool("mood",
			mcp.WithDescription("Classify a user's mood from messages logged in the last few minutes."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpMood(svc),
	)

	return s
}

func mcpChat(svc Relay) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, message, errRes := messageArgs(req)
		if errRes != nil {
			return errRes, nil
		}
		res, err := svc.Chat(ctx, userID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %s", clientMessage(err))), nil
		}
		return mcpJSON(newChatResponse(res)), nil
	}
}

func mcpTalk(svc Relay) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, message, errRes := messageArgs(req)
		if errRes != nil {
			return errRes, nil
		}
		res, err := svc.Talk(ctx, userID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("talk failed: %s", clientMessage(err))), nil
		}
		return mcpJSON(newTalkResponse(res)), nil
	}
}

func mcpMood(svc Relay) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		res, err := svc.Mood(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("mood failed: %s", clientMessage(err))), nil
		}
		return mcpJSON(newMoodResponse(res)), nil
	}
}

func messageArgs(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return "", "", mcpError("user_id is required")
	}
	message, err := req.RequireString("message")
	if err != nil {
		return "", "", mcpError("message is required")
	}
	return userID, message, nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
