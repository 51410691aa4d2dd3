package bitbucket

import (
	"context"
	"fmt"
	"net/url"
)

// Repository is a Bitbucket Server repository within a project.
type Repository struct {
	ID      int     `json:"id,omitempty"`
	Slug    string  `json:"slug"`
	Name    string  `json:"name"`
	ScmID   string  `json:"scmId,omitempty"`
	State   string  `json:"state,omitempty"`
	Public  bool    `json:"public"`
	Project Project `json:"project"`
}

// RepositoryClient looks up and searches repositories within a project.
// The project key is immutable per instance.
type RepositoryClient struct {
	client  *Client
	project string
}

// NewRepositoryClient creates a repository client scoped to a project.
func NewRepositoryClient(client *Client, projectKey string) *RepositoryClient {
	return &RepositoryClient{client: client, project: projectKey}
}

func (r *RepositoryClient) resource() string {
	return fmt.Sprintf("projects/%s/repos", r.project)
}

// Get fetches a repository by slug.
func (r *RepositoryClient) Get(ctx context.Context, slug string) (*Repository, error) {
	var repo Repository
	if err := r.client.Get(ctx, r.resource()+"/"+slug, nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// Search returns a lazy stream of the project's repositories whose name
// matches the given fragment. An empty filter lists all repositories.
func (r *RepositoryClient) Search(ctx context.Context, filter string) (*Seq[Repository], error) {
	var query url.Values
	if filter != "" {
		query = url.Values{"filter": []string{filter}}
	}

	var first Page[Repository]
	if err := r.client.Get(ctx, r.resource(), query, &first); err != nil {
		return nil, err
	}
	r.client.recorder.IncPageFetch("repos")

	return newSeq(&first, NewNextPageFetcher[Repository](r.client, r.resource(), query, "repos")), nil
}
