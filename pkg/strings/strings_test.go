package strings

import (
	"testing"
)

func TestBuilder(t *testing.T) {
	builder := NewBuilder(32)

	builder.WriteString("hello")
	_ = builder.WriteByte(' ')
	_, _ = builder.Write([]byte("world"))

	if result := builder.String(); result != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", result)
	}
	if builder.Len() != 11 {
		t.Errorf("expected length 11, got %d", builder.Len())
	}

	builder.Reset()
	if builder.Len() != 0 {
		t.Errorf("expected length 0 after reset, got %d", builder.Len())
	}
}

func TestBuilderGrow(t *testing.T) {
	builder := NewBuilder(2)
	initialCap := builder.Cap()

	builder.Grow(10)
	if builder.Cap() <= initialCap {
		t.Errorf("expected capacity to grow, initial: %d, after: %d", initialCap, builder.Cap())
	}
}

func TestPooledBuilders(t *testing.T) {
	for _, size := range []BuilderSize{Small, Medium, Large, BuilderSize(42)} {
		b := GetBuilder(size)
		if b.Len() != 0 {
			t.Errorf("expected empty pooled builder, got length %d", b.Len())
		}
		b.WriteString("data")
		PutBuilder(b, size)
	}
	PutBuilder(nil, Small)
}

func TestSprintf(t *testing.T) {
	if got := Sprintf("plain"); got != "plain" {
		t.Errorf("expected 'plain', got '%s'", got)
	}
	if got := Sprintf("%s=%d", "rows", 12); got != "rows=12" {
		t.Errorf("expected 'rows=12', got '%s'", got)
	}
}

func TestSprintfResultsOutliveBuilder(t *testing.T) {
	first := Sprintf("%s-%s", "left", "side")
	second := Sprintf("%s-%s", "xxxx", "yyyy")

	if first != "left-side" {
		t.Errorf("expected 'left-side' after reuse, got '%s'", first)
	}
	if second != "xxxx-yyyy" {
		t.Errorf("expected 'xxxx-yyyy', got '%s'", second)
	}
}
