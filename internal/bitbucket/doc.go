// Package bitbucket implements a REST client for Bitbucket Server
// (Data Center) with lazy, pull-based pagination.
//
// The package is layered: a RequestExecutor issues raw HTTP requests, the
// Client builds URLs, attaches Credentials and maps responses to classified
// errors, and resource clients (WebhookClient, ProjectClient,
// RepositoryClient) expose typed operations on top. Paginated collections
// are returned as a Seq, which fetches one page at a time as the consumer
// pulls elements.
//
// No layer retries or caches; each call performs exactly one network
// request. Retry policy belongs to callers.
package bitbucket
