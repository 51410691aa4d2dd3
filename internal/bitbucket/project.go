package bitbucket

import (
	"context"
	"net/url"
)

// Project is a Bitbucket Server project.
type Project struct {
	ID          int    `json:"id,omitempty"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
	Type        string `json:"type,omitempty"`
}

// ProjectClient looks up and searches projects.
type ProjectClient struct {
	client *Client
}

// NewProjectClient creates a project client.
func NewProjectClient(client *Client) *ProjectClient {
	return &ProjectClient{client: client}
}

// Get fetches a project by key.
func (p *ProjectClient) Get(ctx context.Context, key string) (*Project, error) {
	var project Project
	if err := p.client.Get(ctx, "projects/"+key, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Search returns a lazy stream of projects whose name matches the given
// fragment. An empty name lists all visible projects.
func (p *ProjectClient) Search(ctx context.Context, name string) (*Seq[Project], error) {
	var query url.Values
	if name != "" {
		query = url.Values{"name": []string{name}}
	}

	var first Page[Project]
	if err := p.client.Get(ctx, "projects", query, &first); err != nil {
		return nil, err
	}
	p.client.recorder.IncPageFetch("projects")

	return newSeq(&first, NewNextPageFetcher[Project](p.client, "projects", query, "projects")), nil
}
