package project

import "context"

type Repository interface {
	// Create stores p in front of the existing projects.
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
}
