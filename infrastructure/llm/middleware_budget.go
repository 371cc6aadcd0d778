package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrBudgetExceeded is returned once a budgeted client has used up its
// token or call allowance.
var ErrBudgetExceeded = errors.New("oracle budget exceeded")

// Budget limits the oracle spend of one client. Zero fields are unlimited.
type Budget struct {
	// MaxTokens caps prompt plus completion tokens.
	MaxTokens int64
	// MaxCalls caps completed provider calls.
	MaxCalls int64
}

// Unlimited reports whether b imposes no limit.
func (b Budget) Unlimited() bool { return b.MaxTokens <= 0 && b.MaxCalls <= 0 }

// Usage is the spend recorded so far.
type Usage struct {
	Tokens int64
	Calls  int64
}

// BudgetExceededError reports which limit refused a request.
type BudgetExceededError struct {
	LimitType string
	Limit     int64
	Used      int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%v: %s used %d of %d", ErrBudgetExceeded, e.LimitType, e.Used, e.Limit)
}

// Unwrap returns ErrBudgetExceeded.
func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// BudgetObserver provides observability hooks for budget checks without
// coupling tracing and metrics to the accounting.
type BudgetObserver interface {
	// PreCheck is called before a request is admitted.
	PreCheck(ctx context.Context, usage Usage, budget Budget)

	// PostCheck is called after the request with the updated usage. err
	// is a *BudgetExceededError when the request was refused.
	PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error)
}

// budgetedLLM refuses requests once the shared usage reaches the budget.
type budgetedLLM struct {
	next     CoreLLM
	budget   Budget
	tokens   *atomic.Int64
	calls    *atomic.Int64
	observer BudgetObserver
}

// BudgetMiddleware caps the total spend of every client built from the
// returned Middleware. Usage is checked before each request and charged
// after it, so requests already in flight when the limit is reached may
// overshoot it. Refusals are not retryable.
func BudgetMiddleware(budget Budget, observer BudgetObserver) Middleware {
	var tokens, calls atomic.Int64
	return func(next CoreLLM) CoreLLM {
		return &budgetedLLM{
			next:     next,
			budget:   budget,
			tokens:   &tokens,
			calls:    &calls,
			observer: observer,
		}
	}
}

func (b *budgetedLLM) usage() Usage {
	return Usage{Tokens: b.tokens.Load(), Calls: b.calls.Load()}
}

// DoRequest checks the budget, forwards the request and charges its usage.
func (b *budgetedLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	usage := b.usage()
	if b.observer != nil {
		b.observer.PreCheck(ctx, usage, b.budget)
	}

	if err := b.check(usage); err != nil {
		if b.observer != nil {
			b.observer.PostCheck(ctx, usage, b.budget, 0, err)
		}
		return Response{}, err
	}

	start := time.Now()
	resp, err := b.next.DoRequest(ctx, req)
	elapsed := time.Since(start)

	if err == nil {
		b.tokens.Add(int64(resp.TokensIn + resp.TokensOut))
		b.calls.Add(1)
	}
	if b.observer != nil {
		b.observer.PostCheck(ctx, b.usage(), b.budget, elapsed, err)
	}
	return resp, err
}

// check returns a *BudgetExceededError when usage has reached a limit.
func (b *budgetedLLM) check(usage Usage) error {
	if b.budget.MaxTokens > 0 && usage.Tokens >= b.budget.MaxTokens {
		return &BudgetExceededError{LimitType: "tokens", Limit: b.budget.MaxTokens, Used: usage.Tokens}
	}
	if b.budget.MaxCalls > 0 && usage.Calls >= b.budget.MaxCalls {
		return &BudgetExceededError{LimitType: "calls", Limit: b.budget.MaxCalls, Used: usage.Calls}
	}
	return nil
}

// GetModel returns the model name from the wrapped implementation.
func (b *budgetedLLM) GetModel() string { return b.next.GetModel() }
