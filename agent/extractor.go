package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/tbxark/flowagent/confirm"
	"github.com/tbxark/flowagent/intent"
	"github.com/tbxark/flowagent/metrics"
	"github.com/tbxark/flowagent/slots"
	"github.com/tbxark/flowagent/types"
)

// Extractor bundles the three oracle tasks a conversation needs. Every
// failure it returns wraps types.ErrExtraction.
type Extractor struct {
	Intent  intent.Recognizer
	Slots   slots.Extractor
	Confirm confirm.Judge
}

func NewExtractor(recognizer intent.Recognizer, extractor slots.Extractor, judge confirm.Judge) *Extractor {
	return &Extractor{Intent: recognizer, Slots: extractor, Confirm: judge}
}

func NewToolBasedExtractor(chatModel model.ToolCallingChatModel) (*Extractor, error) {
	recognizer, err := intent.NewToolBasedRecognizer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based intent recognizer: %w", err)
	}
	extractor, err := slots.NewToolBasedExtractor(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based slot extractor: %w", err)
	}
	return NewExtractor(recognizer, extractor, confirm.NewModelJudge(chatModel)), nil
}

// NewLocalExtractor works without a model: keyword intent matching,
// "name: value" slot parsing and yes/no confirmation.
func NewLocalExtractor() *Extractor {
	return NewExtractor(
		intent.NewLocalRecognizer(),
		slots.Single{Next: slots.NewLocalExtractor()},
		confirm.NewLocalJudge(),
	)
}

func (e *Extractor) RecognizeIntent(ctx context.Context, utterance string, flows []types.FlowSummary) (*intent.Result, error) {
	start := time.Now()
	res, err := e.Intent.Recognize(ctx, &intent.Request{Utterance: utterance, Flows: flows})
	metrics.RecordOracleCall("intent", metrics.Status(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: intent: %w", types.ErrExtraction, err)
	}
	return res, nil
}

func (e *Extractor) ExtractInputs(ctx context.Context, utterance string, schema *types.FlowSchema, fields []types.FieldSpec) (map[string]any, error) {
	start := time.Now()
	values, err := e.Slots.Extract(ctx, &slots.Request{Utterance: utterance, Schema: schema, Fields: fields})
	metrics.RecordOracleCall("slots", metrics.Status(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: slots: %w", types.ErrExtraction, err)
	}
	return values, nil
}

func (e *Extractor) JudgeConfirmation(ctx context.Context, utterance string, schema *types.FlowSchema, inputs map[string]any) (confirm.Judgment, error) {
	start := time.Now()
	judgment, err := e.Confirm.Judge(ctx, &confirm.Request{Utterance: utterance, Schema: schema, Inputs: inputs})
	metrics.RecordOracleCall("confirm", metrics.Status(err), time.Since(start))
	if err != nil {
		return confirm.Ambiguous, fmt.Errorf("%w: confirm: %w", types.ErrExtraction, err)
	}
	return judgment, nil
}
