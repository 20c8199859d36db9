package openai

import (
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

const systemPrompt = "You are a marketing copywriter producing ready-to-publish content. " +
	"Write in the client's voice based on the brief. Match the requested channel's conventions. " +
	"Return only the content itself, formatted as Markdown, with no commentary."

// BuildMessages creates the chat messages for a generation request.
func BuildMessages(req llm.Request) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if req.Feedback != "" && req.Previous != "" {
		msgs = append(msgs,
			openai.UserMessage(buildUserPrompt(req)),
			openai.ChatCompletionMessageParamOfAssistant(req.Previous),
			openai.UserMessage(buildRevisionPrompt(req)),
		)
		return msgs
	}
	msgs = append(msgs, openai.UserMessage(buildUserPrompt(req)))
	return msgs
}

func buildUserPrompt(req llm.Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	if req.TemplateID != "" {
		fmt.Fprintf(&sb, "Template: %s\n", req.TemplateID)
	}
	fmt.Fprintf(&sb, "Post %d of the content plan.\n", req.PostNumber)
	if strings.TrimSpace(req.Brief) != "" {
		fmt.Fprintf(&sb, "\nClient brief:\n%s\n", req.Brief)
	}
	return sb.String()
}

func buildRevisionPrompt(req llm.Request) string {
	return fmt.Sprintf("Revise the draft above using this feedback. Keep the channel and topic unchanged.\n\nFeedback:\n%s", req.Feedback)
}
