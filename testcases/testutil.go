package testcases

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"gocloud.dev/blob/memblob"

	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/config"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/store"
	"github.com/tbxark/flowagent/types"
)

func InitChatModel(t *testing.T) *openai.ChatModel {
	if os.Getenv("FLOWAGENT_RUN_LIVE_TESTS") != "1" {
		t.Skip("set FLOWAGENT_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}

	ctx := context.Background()
	conf, err := config.Load("../config.json")
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.APIKey == "" {
		t.Skip("config.json api_key is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}

// TestAgent drives one conversation against a live model.
type TestAgent struct {
	Orchestrator *agent.Orchestrator
	Store        *store.MemoryStore
	ID           string
}

func NewTestAgent(t *testing.T) *TestAgent {
	chatModel := InitChatModel(t)
	if chatModel == nil {
		return nil
	}

	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	reg := registry.NewBucketRegistry(bucket)
	for _, flow := range Flows() {
		if err := reg.Put(ctx, flow); err != nil {
			t.Fatalf("failed to store flow %s: %v", flow.ID, err)
		}
	}

	extractor, err := agent.NewToolBasedExtractor(chatModel)
	if err != nil {
		t.Fatalf("failed to create extractor: %v", err)
	}
	st := store.NewMemoryStore()
	return &TestAgent{
		Orchestrator: agent.NewOrchestrator(reg, extractor, st),
		Store:        st,
		ID:           t.Name(),
	}
}

func (a *TestAgent) Invoke(ctx context.Context, message string) (*types.Response, error) {
	return a.Orchestrator.Turn(ctx, &types.TurnRequest{
		ConversationID: a.ID,
		Message:        message,
	})
}
