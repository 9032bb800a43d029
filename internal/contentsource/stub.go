package contentsource

import (
	"context"
	"time"
)

// stubSource satisfies Source for a registered-but-unimplemented type: the
// factory slot and type enum exist so the registry stays complete, but
// every method fails with ErrSourceNotImplemented rather than silently
// doing nothing.
type stubSource struct {
	sourceType SourceType
}

func newStub(t SourceType) (Source, error) {
	return stubSource{sourceType: t}, nil
}

func (s stubSource) List(context.Context) ([]DocumentInfo, error) {
	return nil, s.err()
}

func (s stubSource) Fetch(context.Context, string) (FetchedDocument, error) {
	return FetchedDocument{}, s.err()
}

func (s stubSource) HasChanged(context.Context, string, time.Time) (bool, error) {
	return false, s.err()
}

func (s stubSource) FollowLinks(context.Context, []byte, string, int, map[string]bool) ([]LinkedDocument, error) {
	return nil, s.err()
}

func (s stubSource) err() error {
	return &unimplementedError{sourceType: s.sourceType}
}

type unimplementedError struct {
	sourceType SourceType
}

func (e *unimplementedError) Error() string {
	return "contentsource: " + string(e.sourceType) + " adapter not implemented"
}

func (e *unimplementedError) Unwrap() error {
	return ErrSourceNotImplemented
}
