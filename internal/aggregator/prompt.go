package aggregator

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meshgate/mcp-gateway/internal/gwerrors"
	"github.com/meshgate/mcp-gateway/internal/model"
	"github.com/meshgate/mcp-gateway/internal/proxyset"
)

// PromptAggregator is symmetric with ToolAggregator: first-wins dedup on
// prompt name (spec §4.6).
type PromptAggregator struct {
	routeMap map[string]string // name -> connection_id
	prompts  []mcp.Prompt
}

func BuildPromptAggregator(ctx context.Context, coll *proxyset.Collection, mode model.ToolSelectionMode) *PromptAggregator {
	entries := coll.Entries()
	perEntry := make([][]mcp.Prompt, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *proxyset.Entry) {
			defer wg.Done()
			prompts, err := e.Proxy.ListPrompts(ctx)
			if err != nil {
				return
			}
			perEntry[i] = filterPromptNames(prompts, e.SelectedPrompts, mode)
		}(i, e)
	}
	wg.Wait()

	routeMap := make(map[string]string)
	var merged []mcp.Prompt
	for i, prompts := range perEntry {
		for _, p := range prompts {
			if _, dup := routeMap[p.Name]; dup {
				continue
			}
			routeMap[p.Name] = entries[i].Connection.ID
			merged = append(merged, p)
		}
	}
	return &PromptAggregator{routeMap: routeMap, prompts: merged}
}

func (a *PromptAggregator) Prompts() []mcp.Prompt { return a.prompts }

// GetPrompt routes by name; missing -> PromptNotFound (spec §4.6).
func (a *PromptAggregator) GetPrompt(ctx context.Context, coll *proxyset.Collection, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	connID, ok := a.routeMap[name]
	if !ok {
		return nil, gwerrors.ErrPromptNotFound
	}
	entry, ok := coll.Get(connID)
	if !ok {
		return nil, gwerrors.ErrPromptNotFound
	}
	return entry.Proxy.GetPrompt(ctx, name, args)
}

func filterPromptNames(prompts []mcp.Prompt, selected []string, mode model.ToolSelectionMode) []mcp.Prompt {
	if len(selected) == 0 {
		return prompts
	}
	set := make(map[string]bool, len(selected))
	for _, s := range selected {
		set[s] = true
	}
	out := make([]mcp.Prompt, 0, len(prompts))
	for _, p := range prompts {
		switch mode {
		case model.SelectionInclusion:
			if set[p.Name] {
				out = append(out, p)
			}
		case model.SelectionExclusion:
			if !set[p.Name] {
				out = append(out, p)
			}
		default:
			out = append(out, p)
		}
	}
	return out
}
