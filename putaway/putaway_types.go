package putaway

import "errors"

// GoodsReceiving is the from-location recorded when a document has no
// temporary location of its own.
const GoodsReceiving = "(goods receiving)"

var (
	ErrInvalidInput        = errors.New("document, article number, quantity and target location are required")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentBooked      = errors.New("document is booked and closed for allocation")
	ErrNoOpenItem          = errors.New("no open item for article in document")
	ErrQuantityExceedsOpen = errors.New("quantity exceeds open quantity")
	ErrLocationNotFound    = errors.New("target location not found")
)

// MoveInput requests moving a quantity of one shipment item from its
// temporary receiving location into a named storage bin.
type MoveInput struct {
	DocumentID   string
	ArticleNo    string
	Qty          int64
	ToLocationID string
}

// OpenItem is one entry of the "available to place" set.
type OpenItem struct {
	DocumentID   string
	Supplier     string
	DocNo        string
	TempLocation string
	ArticleNo    string
	LeftQty      int64
}
