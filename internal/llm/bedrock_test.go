package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (f *fakeConverseAPI) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	return f.output, f.err
}

func (f *fakeConverseAPI) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, errors.New("not implemented")
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func TestBedrockClient_Complete(t *testing.T) {
	api := &fakeConverseAPI{output: converseTextOutput("Yes, call today.")}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:       "test-model",
		System:      []string{"be brief"},
		Messages:    []Message{{Role: RoleUser, Content: "Should I call?"}},
		Temperature: -1,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Text != "Yes, call today." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected usage 15, got %d", resp.Usage.TotalTokens)
	}
	if len(api.lastInput.System) != 1 {
		t.Errorf("expected 1 system block, got %d", len(api.lastInput.System))
	}
	if len(api.lastInput.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(api.lastInput.Messages))
	}
	// Negative temperature means "omit inference config entirely" here.
	if api.lastInput.InferenceConfig != nil && api.lastInput.InferenceConfig.Temperature != nil {
		t.Error("negative temperature should not be forwarded")
	}
}

func TestBedrockClient_Complete_RequiresModel(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{})
	_, err := client.Complete(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for missing model id")
	}
}

func TestBedrockClient_Complete_UnsupportedRole(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{})
	_, err := client.Complete(context.Background(), Request{
		Model:       "m",
		Messages:    []Message{{Role: "tool", Content: "x"}},
		Temperature: -1,
	})
	if err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestBuildConverseInput_SystemRoleFolded(t *testing.T) {
	system, messages, _, err := buildConverseInput(Request{
		System: []string{"rule one"},
		Messages: []Message{
			{Role: RoleSystem, Content: "rule two"},
			{Role: RoleUser, Content: "question"},
			{Role: RoleAssistant, Content: "answer"},
		},
		Temperature: -1,
	})
	if err != nil {
		t.Fatalf("buildConverseInput: %v", err)
	}
	if len(system) != 2 {
		t.Errorf("expected system-role message folded into system blocks, got %d", len(system))
	}
	if len(messages) != 2 {
		t.Errorf("expected 2 conversation messages, got %d", len(messages))
	}
}
