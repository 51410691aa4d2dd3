package bitbucket

import (
	"context"
	"net/url"
	"strconv"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
)

// Page is one server-paginated slice of a collection, with the metadata
// needed to fetch the next slice. isLastPage true implies nextPageStart is
// absent.
type Page[T any] struct {
	Size          int  `json:"size"`
	Limit         int  `json:"limit"`
	IsLastPage    bool `json:"isLastPage"`
	Start         int  `json:"start"`
	NextPageStart *int `json:"nextPageStart,omitempty"`
	Values        []T  `json:"values"`
}

// ErrNoNextPage is returned when Next is called on a last page. This is
// caller misuse: check IsLastPage before requesting the next page.
var ErrNoNextPage = errors.StateError("no next page: current page is the last page").Build()

// NextPageFetcher fetches subsequent pages of a collection from the same
// endpoint and filter context that produced the first page. It is
// forward-only: there is no way to rewind to a prior page.
//
// The fetcher trusts the server-reported nextPageStart and performs no cycle
// detection; a misbehaving server that never reports a last page causes an
// unbounded fetch chain.
type NextPageFetcher[T any] struct {
	client   *Client
	resource string
	query    url.Values
	label    string
}

// NewNextPageFetcher creates a fetcher bound to a resource path and filter
// query. label names the collection for page-fetch metrics.
func NewNextPageFetcher[T any](client *Client, resource string, query url.Values, label string) *NextPageFetcher[T] {
	return &NextPageFetcher[T]{client: client, resource: resource, query: query, label: label}
}

// Next fetches the page following current. Calling Next on a last page
// fails fast with ErrNoNextPage.
func (f *NextPageFetcher[T]) Next(ctx context.Context, current *Page[T]) (*Page[T], error) {
	if current.IsLastPage {
		return nil, ErrNoNextPage
	}
	if current.NextPageStart == nil {
		return nil, errors.ParseError("page is not last but carries no nextPageStart").
			WithContext("resource", f.resource).
			WithContext("start", current.Start).
			Build()
	}

	query := make(url.Values, len(f.query)+1)
	for k, vs := range f.query {
		query[k] = vs
	}
	query.Set("start", strconv.Itoa(*current.NextPageStart))

	var page Page[T]
	if err := f.client.Get(ctx, f.resource, query, &page); err != nil {
		return nil, err
	}
	f.client.recorder.IncPageFetch(f.label)
	return &page, nil
}

// Seq is a lazy, pull-based stream of values flattened across pages.
// It is forward-only and one-shot: once consumed it cannot be iterated
// again without re-issuing the original first-page request. Page fetches
// happen exactly at page boundaries, never mid-page, so abandoning
// iteration requires no cleanup.
type Seq[T any] struct {
	fetcher *NextPageFetcher[T]
	page    *Page[T]
	idx     int
	done    bool
}

func newSeq[T any](first *Page[T], fetcher *NextPageFetcher[T]) *Seq[T] {
	return &Seq[T]{fetcher: fetcher, page: first}
}

// Next returns the next value in the stream. ok is false when the stream is
// exhausted. A page-fetch failure ends the stream and surfaces the error.
func (s *Seq[T]) Next(ctx context.Context) (value T, ok bool, err error) {
	var zero T
	for {
		if s.done {
			return zero, false, nil
		}
		if s.idx < len(s.page.Values) {
			v := s.page.Values[s.idx]
			s.idx++
			return v, true, nil
		}
		if s.page.IsLastPage {
			s.done = true
			return zero, false, nil
		}
		next, err := s.fetcher.Next(ctx, s.page)
		if err != nil {
			s.done = true
			return zero, false, err
		}
		s.page = next
		s.idx = 0
	}
}

// Collect drains the stream into a slice. Intended for small collections
// and tests; large collections should be consumed via Next.
func (s *Seq[T]) Collect(ctx context.Context) ([]T, error) {
	var values []T
	for {
		v, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return values, nil
		}
		values = append(values, v)
	}
}
