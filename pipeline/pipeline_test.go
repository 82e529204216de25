package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/marketrec/core"
)

// stageNode 是测试用 Node，对输入做固定变换并记录执行顺序。
type stageNode struct {
	name  string
	kind  Kind
	trail *[]string
	fn    func(items []*core.Item) []*core.Item
	err   error
}

func (n *stageNode) Name() string { return n.name }
func (n *stageNode) Kind() Kind   { return n.kind }

func (n *stageNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.trail != nil {
		*n.trail = append(*n.trail, n.name)
	}
	if n.err != nil {
		return nil, n.err
	}
	if n.fn != nil {
		return n.fn(items), nil
	}
	return items, nil
}

func TestPipeline_RunsNodesInOrder(t *testing.T) {
	var trail []string
	p := &Pipeline{Nodes: []Node{
		&stageNode{name: "recall", kind: KindRecall, trail: &trail, fn: func([]*core.Item) []*core.Item {
			return []*core.Item{core.NewItem("a"), core.NewItem("b")}
		}},
		&stageNode{name: "filter", kind: KindFilter, trail: &trail, fn: func(items []*core.Item) []*core.Item {
			return items[:1]
		}},
	}}

	out, err := p.Run(context.Background(), &core.RecommendContext{UserID: "u1"}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("got %v, want [a]", out)
	}
	if len(trail) != 2 || trail[0] != "recall" || trail[1] != "filter" {
		t.Fatalf("execution order %v", trail)
	}
}

func TestPipeline_NodeErrorAborts(t *testing.T) {
	var trail []string
	boom := errors.New("recall backend down")
	p := &Pipeline{Nodes: []Node{
		&stageNode{name: "broken", kind: KindRecall, trail: &trail, err: boom},
		&stageNode{name: "never", kind: KindFilter, trail: &trail},
	}}

	_, err := p.Run(context.Background(), nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the node's error", err)
	}
	if len(trail) != 1 {
		t.Fatalf("downstream node ran after failure: %v", trail)
	}
}

func TestConfig_LoadYAMLAndBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yaml := `
pipeline:
  name: similar-products
  nodes:
    - type: test.recall
      config:
        limit: 3
    - type: test.filter
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.Name != "similar-products" || len(cfg.Pipeline.Nodes) != 2 {
		t.Fatalf("parsed config %+v", cfg.Pipeline)
	}
	if got := cfg.Pipeline.Nodes[0].Config["limit"]; got != 3 {
		t.Fatalf("node config limit = %v (%T), want 3", got, got)
	}

	factory := NewNodeFactory()
	factory.Register("test.recall", func(conf map[string]interface{}) (Node, error) {
		limit, _ := conf["limit"].(int)
		return &stageNode{name: "test.recall", kind: KindRecall, fn: func([]*core.Item) []*core.Item {
			out := make([]*core.Item, 0, limit)
			for i := 0; i < limit; i++ {
				out = append(out, core.NewItem(string(rune('a'+i))))
			}
			return out
		}}, nil
	})
	factory.Register("test.filter", func(map[string]interface{}) (Node, error) {
		return &stageNode{name: "test.filter", kind: KindFilter}, nil
	})

	p, err := cfg.BuildPipeline(factory)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := p.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d items, want 3", len(out))
	}
}

func TestNodeFactory_UnknownType(t *testing.T) {
	factory := NewNodeFactory()
	if _, err := factory.Build("test.ghost", nil); err == nil {
		t.Fatal("unknown node type must fail")
	}
}
