package confirm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/flowagent/types"
)

const DefaultSystemPrompt = `You decide whether a user is confirming an action.

Determine whether the user's message:
1. Explicitly CONFIRMS running the proposed flow (for example "yes", "go ahead", "run it", "proceed").
2. Explicitly DENIES running it (for example "no", "cancel", "stop", "never mind").
3. Does not make it clear (an ambiguous message or a different subject).

Answer with exactly one of these words on the first line:
CONFIRMED
DENIED
AMBIGUOUS

Then, on a new line, briefly explain your decision.`

// ModelJudge asks a chat model for a one-word verdict on the first line of
// its reply.
type ModelJudge struct {
	chatModel    model.BaseChatModel
	systemPrompt string
}

var _ Judge = (*ModelJudge)(nil)

type ModelJudgeOption func(*ModelJudge)

func WithSystemPrompt(prompt string) ModelJudgeOption {
	return func(j *ModelJudge) {
		j.systemPrompt = prompt
	}
}

func NewModelJudge(chatModel model.BaseChatModel, opts ...ModelJudgeOption) *ModelJudge {
	j := &ModelJudge{chatModel: chatModel, systemPrompt: DefaultSystemPrompt}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *ModelJudge) Judge(ctx context.Context, req *Request) (Judgment, error) {
	resp, err := j.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(j.systemPrompt),
		schema.UserMessage(FormatRequest(req)),
	})
	if err != nil {
		return Ambiguous, fmt.Errorf("call model failed: %w", err)
	}
	return ParseJudgment(resp.Content), nil
}

// ParseJudgment reads the verdict from the first line of a reply. Anything
// other than one of the three tokens is Ambiguous.
func ParseJudgment(reply string) Judgment {
	first, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	first = strings.ToUpper(strings.TrimSpace(first))
	switch Judgment(first) {
	case Confirmed, Denied:
		return Judgment(first)
	default:
		return Ambiguous
	}
}

func FormatRequest(req *Request) string {
	sections := []string{
		"# Proposed action\n" + req.Schema.About(),
		"# Parameters\n" + types.FormatInputSummary(req.Schema, req.Inputs),
	}
	if len(req.Schema.Outputs) > 0 {
		lines := make([]string, 0, len(req.Schema.Outputs))
		for _, o := range req.Schema.Outputs {
			lines = append(lines, "- "+o.Description)
		}
		sections = append(sections, "# Expected results\n"+strings.Join(lines, "\n"))
	}
	sections = append(sections,
		fmt.Sprintf("# Flow\n%s", req.Schema.DisplayName()),
		"# User message\n"+req.Utterance,
	)
	return strings.Join(sections, "\n\n")
}
