package classify

import (
	"context"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

const sentimentPrompt = `You label the sentiment of short market commentary.
Answer with exactly one word: Bullish, Bearish, or Neutral.
Judge only the author's stance on the assets mentioned, not the market at large.`

// OpenAIClassifier asks a chat model for the label and falls back to the
// lexicon when the call fails or the reply is unusable.
type OpenAIClassifier struct {
	tracer   trace.Tracer
	llm      LLMClient
	model    string
	fallback SentimentClassifier
}

func NewOpenAIClassifier(tracer trace.Tracer, llm LLMClient, model string, fallback SentimentClassifier) *OpenAIClassifier {
	if fallback == nil {
		fallback = NewLexiconClassifier()
	}
	return &OpenAIClassifier{
		tracer:   tracer,
		llm:      llm,
		model:    model,
		fallback: fallback,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) domain.Sentiment {
	ctx, span := c.tracer.Start(ctx, "classify.sentiment-llm")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	completion, err := c.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sentimentPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		span.RecordError(err)
		log.Printf("sentiment llm call failed, using lexicon: %v", err)
		return c.fallback.Classify(ctx, text)
	}
	if len(completion.Choices) == 0 {
		log.Print("sentiment llm returned no choices, using lexicon")
		return c.fallback.Classify(ctx, text)
	}

	reply := strings.ToLower(strings.TrimSpace(completion.Choices[0].Message.Content))
	switch {
	case strings.HasPrefix(reply, "bullish"):
		return domain.SentimentBullish
	case strings.HasPrefix(reply, "bearish"):
		return domain.SentimentBearish
	case strings.HasPrefix(reply, "neutral"):
		return domain.SentimentNeutral
	default:
		log.Printf("sentiment llm returned %q, using lexicon", reply)
		return c.fallback.Classify(ctx, text)
	}
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
