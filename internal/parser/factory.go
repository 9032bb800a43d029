package parser

import "fmt"

// ContentType enumerates the parser slots the original factory dispatches
// on. Only text/markdown ships a concrete implementation; the rest are
// carried as stubs so the type enum and registry stay complete.
type ContentType string

const (
	TypeTextMarkdown ContentType = "text/markdown"
	TypeTextPlain    ContentType = "text/plain"
	TypePDF          ContentType = "application/pdf"
	TypeDocx         ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeHTML         ContentType = "text/html"
	TypeCSV          ContentType = "text/csv"
	TypeJSON         ContentType = "application/json"
)

// New dispatches on contentType and builds the matching Parser, mirroring
// ParserFactory.get_parser's type-keyed construction.
func New(contentType ContentType) (Parser, error) {
	switch contentType {
	case TypeTextMarkdown, TypeTextPlain, "":
		return NewMarkdownParser(), nil
	case TypePDF:
		return newStub(TypePDF), nil
	case TypeDocx:
		return newStub(TypeDocx), nil
	case TypeHTML:
		return newStub(TypeHTML), nil
	case TypeCSV:
		return newStub(TypeCSV), nil
	case TypeJSON:
		return newStub(TypeJSON), nil
	default:
		return nil, fmt.Errorf("parser: unsupported content type: %s", contentType)
	}
}

// Registry maps a content-type string (as content sources report it) to the
// ContentType this package understands, for callers that only have the raw
// MIME string a content source returned.
func Registry(mimeType string) ContentType {
	switch mimeType {
	case "text/markdown", "text/x-markdown":
		return TypeTextMarkdown
	case "text/plain", "":
		return TypeTextPlain
	case "application/pdf":
		return TypePDF
	case "text/html":
		return TypeHTML
	case "text/csv":
		return TypeCSV
	case "application/json":
		return TypeJSON
	default:
		return TypeTextPlain
	}
}
