// Copyright 2025 James Ross
package llm

import "context"

// FakeClient is a deterministic, network-free Client for tests. Errs, if
// set, is returned (and then cleared) on the next call of either kind,
// letting a test script a single throttle/failure and then recovery.
type FakeClient struct {
	RewriteFn func(RewriteRequest) (RewriteResponse, error)
	TitleFn   func(TitleRequest) (TitleResponse, error)
	Err       error
}

func (f *FakeClient) Rewrite(ctx context.Context, req RewriteRequest) (RewriteResponse, error) {
	if f.Err != nil {
		err := f.Err
		f.Err = nil
		return RewriteResponse{}, err
	}
	if f.RewriteFn != nil {
		return f.RewriteFn(req)
	}
	return RewriteResponse{Content: req.Content, Tokens: 100, CostUSD: 0.0002, Model: "fake"}, nil
}

func (f *FakeClient) RewriteTitle(ctx context.Context, req TitleRequest) (TitleResponse, error) {
	if f.Err != nil {
		err := f.Err
		f.Err = nil
		return TitleResponse{}, err
	}
	if f.TitleFn != nil {
		return f.TitleFn(req)
	}
	return TitleResponse{Title: req.CleanedTitle, Tokens: 20, CostUSD: 0.00004, Model: "fake"}, nil
}
