package gh

import (
	"context"
	"fmt"
)

// NewNoopFactory returns a Factory that builds noop clients.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) New(ctx context.Context, token string) (Client, error) {
	return noopClient{}, nil
}

type noopClient struct{}

func (noopClient) CreatePR(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error) {
	return PullRequest{}, fmt.Errorf("noop github client not implemented")
}

func (noopClient) FindOpenPR(ctx context.Context, owner, repo, head, base string) (*PullRequest, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}

func (noopClient) EnsureBranchExists(ctx context.Context, owner, repo, branch string) error {
	return fmt.Errorf("noop github client not implemented")
}
