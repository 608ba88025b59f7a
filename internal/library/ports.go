package library

import "context"

// Lister lists the folders and files directly under a library path ("" = root).
type Lister interface {
	ListDocuments(ctx context.Context, path string) ([]DocumentEntry, error)
}

// MemberSource reports what a collection already contains and how it is configured.
type MemberSource interface {
	ListCollectionMembers(ctx context.Context, collectionID string) ([]CollectionMember, error)
	CollectionConfig(ctx context.Context, collectionID string) (*CollectionConfig, error)
}

// Applier accepts change-sets and reports job progress.
type Applier interface {
	SubmitChangeSet(ctx context.Context, collectionID string, req ChangeRequest) (jobID string, err error)
	JobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

// Backend is everything the editor needs from the remote service.
type Backend interface {
	Lister
	MemberSource
	Applier
}
