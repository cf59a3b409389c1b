package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockClientRoutesThroughRespond(t *testing.T) {
	c := NewMockClient(func(ctx context.Context, model string, req Request) (Response, error) {
		return Response{Content: "hi " + model}, nil
	})
	resp, err := c.Complete(context.Background(), "claude-haiku-4-5", Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi claude-haiku-4-5" {
		t.Errorf("got %q", resp.Content)
	}
	if len(c.Calls) != 1 {
		t.Errorf("expected call to be recorded, got %d", len(c.Calls))
	}
}

func TestMockClientNilRespondReturnsEmptyArray(t *testing.T) {
	c := NewMockClient(nil)
	resp, err := c.Complete(context.Background(), "m", Request{})
	if err != nil || resp.Content != "[]" {
		t.Fatalf("expected empty-array default, got %+v, %v", resp, err)
	}
}

func TestFailingClientAlwaysErrors(t *testing.T) {
	c := FailingClient(errors.New("boom"))
	_, err := c.Complete(context.Background(), "m", Request{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStaticClientIgnoresRequest(t *testing.T) {
	c := StaticClient(`{"ok":true}`, 10, 20)
	resp, _ := c.Complete(context.Background(), "m", Request{System: "whatever"})
	if resp.Content != `{"ok":true}` || resp.InputTokens != 10 || resp.OutputTokens != 20 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
