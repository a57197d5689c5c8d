// Package domain declares webhook ingestion types and ports
package domain

// Event kinds the pipeline recognizes; everything else is ignored
const (
	KindPullRequest              = "pull_request"
	KindInstallation             = "installation"
	KindInstallationRepositories = "installation_repositories"
)

// Delivery is one raw inbound webhook request: unparsed body plus the
// GitHub headers that identify and authenticate it
type Delivery struct {
	Body       []byte
	Event      string
	DeliveryID string
	Signature  string
}

// Disposition says how a delivery was handled
type Disposition string

const (
	// DispositionIgnored covers unverified, unrecognized, and unsupported
	// deliveries; always answered 202 so GitHub does not redeliver
	DispositionIgnored Disposition = "ignored"
	// DispositionForwarded means the normalized event reached the backend
	DispositionForwarded Disposition = "ok"
)

// Result is the pipeline's verdict for one delivery
type Result struct {
	Disposition  Disposition
	IngestStatus string
}

// Repo is a repository reference as webhook payloads carry it
type Repo struct {
	ID       int64
	FullName string
}
