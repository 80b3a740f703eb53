// Package llmtest provides shared contract tests that verify any
// llm.Provider implementation behaves correctly. Every adapter's test
// file should call TestProviderContract to ensure conformance.
package llmtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/mobchat/pkg/llm"
)

// resultTimeout bounds how long the contract waits for a single result.
const resultTimeout = 10 * time.Second

// TestProviderContract runs a suite of behavioral contract tests against
// any llm.Provider implementation. The factory must return a configured,
// not yet initialized provider whose backend answers every request
// successfully (typically an httptest server or a fake client):
//
//	func TestContract(t *testing.T) {
//	    llmtest.TestProviderContract(t, func(t *testing.T) llm.Provider { return newMockedProvider(t) })
//	}
func TestProviderContract(t *testing.T, factory func(t *testing.T) llm.Provider) {
	t.Helper()

	t.Run("Name_is_stable", func(t *testing.T) {
		p := factory(t)
		if p.Name() == "" {
			t.Fatal("Name() must not be empty")
		}
		if p.Name() != p.Name() {
			t.Error("Name() must return consistent results")
		}
	})

	t.Run("IsConfigured_is_true", func(t *testing.T) {
		p := factory(t)
		if !p.IsConfigured() {
			t.Fatal("factory must return a configured provider")
		}
	})

	t.Run("Shutdown_before_Initialize_does_not_panic", func(t *testing.T) {
		p := factory(t)
		p.Shutdown()
		p.Shutdown()
	})

	t.Run("Send_before_Initialize_fails", func(t *testing.T) {
		p := factory(t)
		r := await(t, p.SendMessage(context.Background(), "hello", nil))
		if r.OK() {
			t.Fatal("SendMessage() before Initialize must fail")
		}
		if r.Code() != llm.ErrCodeNotConfigured {
			t.Errorf("Code() = %q, want %q", r.Code(), llm.ErrCodeNotConfigured)
		}
	})

	t.Run("Send_delivers_exactly_one_result", func(t *testing.T) {
		p := initialized(t, factory)
		ch := p.SendMessage(context.Background(), "hello", []llm.Message{
			llm.NewMessage(llm.RoleUser, "earlier question"),
			llm.NewMessage(llm.RoleAssistant, "earlier answer"),
		})
		r := await(t, ch)
		if !r.OK() {
			t.Fatalf("SendMessage() = %s, want success", r)
		}
		if r.TokensUsed() < 0 {
			t.Errorf("TokensUsed() = %d, want >= 0", r.TokensUsed())
		}
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("channel delivered a second result")
			}
		case <-time.After(resultTimeout):
			t.Error("channel was not closed after the result")
		}
	})

	t.Run("Concurrent_sends_are_independent", func(t *testing.T) {
		p := initialized(t, factory)
		const n = 16
		var wg sync.WaitGroup
		results := make([]llm.Result, n)
		ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
		defer cancel()
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = llm.Await(ctx, p.SendMessage(context.Background(), "hello", nil))
			}()
		}
		wg.Wait()
		for i, r := range results {
			if !r.OK() {
				t.Errorf("call %d: %s", i, r)
			}
		}
	})

	t.Run("Send_after_Shutdown_fails", func(t *testing.T) {
		p := initialized(t, factory)
		p.Shutdown()
		r := await(t, p.SendMessage(context.Background(), "hello", nil))
		if r.OK() {
			t.Fatal("SendMessage() after Shutdown must fail")
		}
		p.Shutdown()
	})
}

func initialized(t *testing.T, factory func(t *testing.T) llm.Provider) llm.Provider {
	t.Helper()
	p := factory(t)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(p.Shutdown)
	return p
}

func await(t *testing.T, ch <-chan llm.Result) llm.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), resultTimeout)
	defer cancel()
	r := llm.Await(ctx, ch)
	if r.Code() == llm.ErrCodeTimeout {
		t.Fatal("no result delivered before timeout")
	}
	return r
}
