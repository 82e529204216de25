package dsl

import (
	"testing"

	"github.com/rushteam/marketrec/core"
	"github.com/rushteam/marketrec/pkg/utils"
)

func TestCompile_EmptyIsAlwaysTrue(t *testing.T) {
	r, err := Compile("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := r.Evaluate(core.NewItem("p1"), nil)
	if err != nil || !ok {
		t.Fatalf("empty rule: got (%v, %v), want true", ok, err)
	}
}

func TestCompile_SyntaxError(t *testing.T) {
	if _, err := Compile("item.score >"); err == nil {
		t.Fatal("broken expression must fail to compile")
	}
}

func TestRule_Evaluate(t *testing.T) {
	item := core.NewItem("p1")
	item.Score = 0.42
	item.PutLabel("recall_source", utils.Label{Value: "session", Source: "recall"})

	rctx := &core.RecommendContext{UserID: "u1", Scene: "feed", SeedProductID: "seed"}

	tests := []struct {
		expr string
		want bool
	}{
		{`item.score > 0.4`, true},
		{`item.score > 0.5`, false},
		{`item.id == "p1"`, true},
		{`label.recall_source == "session"`, true},
		{`label.recall_source.contains("sess")`, true},
		{`item.labels.recall_source.source == "recall"`, true},
		{`rctx.scene == "feed" && rctx.user_id == "u1"`, true},
		{`rctx.seed == "p1"`, false},
	}
	for _, tt := range tests {
		r, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tt.expr, err)
		}
		got, err := r.Evaluate(item, rctx)
		if err != nil {
			t.Fatalf("eval %q: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestRule_NonBooleanResult(t *testing.T) {
	r, err := Compile(`item.score`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := r.Evaluate(core.NewItem("p1"), nil); err == nil {
		t.Fatal("non-boolean expression must error at eval")
	}
}
