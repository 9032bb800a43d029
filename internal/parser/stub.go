package parser

import "context"

// stubParser satisfies Parser for a registered-but-unimplemented content
// type: the factory slot exists so the type enum stays complete, but
// parsing always fails with ErrFormatNotImplemented.
type stubParser struct {
	contentType ContentType
}

func newStub(t ContentType) Parser {
	return stubParser{contentType: t}
}

func (p stubParser) Parse(context.Context, string, []byte) (ParsedDocument, error) {
	return ParsedDocument{}, &unimplementedError{contentType: p.contentType}
}

type unimplementedError struct {
	contentType ContentType
}

func (e *unimplementedError) Error() string {
	return "parser: " + string(e.contentType) + " parser not implemented"
}

func (e *unimplementedError) Unwrap() error {
	return ErrFormatNotImplemented
}
