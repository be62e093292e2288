// Package connectors provides the provider-specific connector
// implementations and the helpers they share: the REST client with uniform
// status handling, the concurrent last-modified fan-out, and the OAuth
// token refresher.
package connectors
