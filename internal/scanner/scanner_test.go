package scanner

import (
	"context"
	"testing"

	"VideoScanner/internal/domain"
)

type namedProvider string

func (n namedProvider) Name() string        { return string(n) }
func (n namedProvider) SearchCost() int     { return 0 }
func (n namedProvider) StatisticsCost() int { return 0 }
func (n namedProvider) Search(context.Context, domain.SearchRequest) ([]domain.RawItem, error) {
	return nil, nil
}
func (n namedProvider) Statistics(context.Context, []string) (map[string]domain.Metrics, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedProvider("feed"))
	reg.Register(namedProvider("youtube"))

	p, err := reg.Resolve("youtube")
	if err != nil || p.Name() != "youtube" {
		t.Fatalf("resolve youtube: %v %v", p, err)
	}

	p, err = reg.Resolve("")
	if err != nil || p.Name() != "feed" {
		t.Fatalf("expected first registered provider as fallback, got %v %v", p, err)
	}

	reg.SetFallback("youtube")
	if p, _ := reg.Resolve(""); p.Name() != "youtube" {
		t.Fatalf("expected youtube fallback")
	}

	if _, err := reg.Resolve("arxiv"); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "feed" || names[1] != "youtube" {
		t.Fatalf("unexpected names: %v", names)
	}
}
