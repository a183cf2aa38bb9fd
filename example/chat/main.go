package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/config"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/store"
	"github.com/tbxark/flowagent/types"
)

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	local := flag.Bool("local", false, "use keyword matching instead of a language model")
	flows := flag.String("flows", "mem://", "bucket URL holding flow definitions")
	flag.Parse()
	err := startApp(context.Background(), *conf, *flows, *local)
	if err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func newExtractor(ctx context.Context, path string, local bool) (*agent.Extractor, error) {
	if local {
		return agent.NewLocalExtractor(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return agent.NewToolBasedExtractor(cm)
}

func startApp(ctx context.Context, path, flowsURL string, local bool) error {
	slog.SetLogLoggerLevel(slog.LevelWarn)
	extractor, err := newExtractor(ctx, path, local)
	if err != nil {
		return err
	}
	reg, err := registry.OpenBucketRegistry(ctx, flowsURL, registry.WithExecutor(submitFlow))
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()
	if strings.HasPrefix(flowsURL, "mem://") {
		for _, flow := range demoFlows() {
			if err := reg.Put(ctx, flow); err != nil {
				return err
			}
		}
	}

	st := store.NewMemoryStore()
	orch := agent.NewOrchestrator(reg, extractor, st)
	flowAgent := agent.NewAgent(
		"FlowAgent",
		"An agent that runs flows by collecting their parameters through conversation",
		orch,
	)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: flowAgent,
	})

	prompt := color.New(color.FgGreen, color.Bold)
	reply := color.New(color.FgCyan)
	errColor := color.New(color.FgRed)

	conversation := uuid.NewString()
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Describe what you want to do (\"/reset\" starts over, \"/state\" shows the conversation):")
	for {
		_, _ = prompt.Print("you> ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("bye")
			break
		}
		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "/reset":
			if err := orch.Reset(ctx, conversation); err != nil {
				_, _ = errColor.Println(err)
			}
			conversation = uuid.NewString()
			continue
		case "/state":
			state, err := orch.State(ctx, conversation)
			if err != nil {
				_, _ = errColor.Println(err)
				continue
			}
			fmt.Printf("phase=%s flow=%s inputs=%v missing=%v\n",
				agent.DerivePhase(state), state.FlowID, state.Inputs, state.Missing)
			continue
		}

		chatCtx := agent.WithConversationID(ctx, conversation)
		iter := runner.Run(chatCtx, []*schema.Message{schema.UserMessage(input)})
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				_, _ = errColor.Println(event.Err)
				continue
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			_, _ = reply.Printf("\nagent> %s\n\n", msg.Content)
			if resp, ok := event.Output.CustomizedOutput.(*types.Response); ok && resp.Completed {
				conversation = uuid.NewString()
			}
		}
	}
	return nil
}
