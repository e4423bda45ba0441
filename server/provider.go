package main

import (
	"context"

	"graphicarena/server/arena"
	"graphicarena/server/llm"
)

// llmProvider adapts the OpenRouter client to the arena.
type llmProvider struct{ c *llm.Client }

func (p llmProvider) ListModels(ctx context.Context) ([]arena.CatalogModel, error) {
	models, err := p.c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]arena.CatalogModel, 0, len(models))
	for _, m := range models {
		out = append(out, arena.CatalogModel{
			ID:   m.ID,
			Name: m.Name,
			Pricing: arena.PriceInfo{
				InputPerMTok:  m.Pricing.Input,
				OutputPerMTok: m.Pricing.Output,
			},
		})
	}
	return out, nil
}

func (p llmProvider) Complete(ctx context.Context, model string, messages []arena.Message) (string, error) {
	msgs := make([]llm.Message, len(messages))
	for i, m := range messages {
		msgs[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return p.c.Complete(ctx, model, msgs)
}
