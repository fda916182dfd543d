package inbound

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrMissingFields    = errors.New("supplier and document number are required")
	ErrNoItems          = errors.New("at least one item line is required")
	ErrBadItemLine      = errors.New("item lines require an article number and a positive quantity")
	ErrImageNotFound    = errors.New("image not found")
)

// ItemInput is one article line of a new shipment.
type ItemInput struct {
	ArticleNo string
	Qty       int64
}

// ImageInput is a captured photo to persist together with the document.
// Kind must be one of the models.ImageKind* values.
type ImageInput struct {
	Kind string
	Blob []byte
	MIME string
}

// DocumentInput describes a new inbound shipment.
type DocumentInput struct {
	Supplier     string
	DocNo        string
	HasDrawing   bool
	TempLocation string
	Items        []ItemInput
	Images       []ImageInput
}
