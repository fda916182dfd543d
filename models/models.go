package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Setting is a process-wide configuration value keyed by name.
//
// Known keys: relay_url (address of the optional update relay) and
// admin_pin_digest (argon2id digest of the admin PIN).
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:st"`

	Name  string `bun:"name,pk"`
	Value string `bun:"value,notnull"`
}

// Item is one article line within a Document. Qty is fixed at creation;
// LeftQty starts equal to Qty and only ever decreases through put-away
// movements, never below zero.
type Item struct {
	ID        string `json:"id"`
	ArticleNo string `json:"articleNo"`
	Qty       int64  `json:"qty"`
	LeftQty   int64  `json:"leftQty"`
}

// ItemList stores a document's item lines inline as a single JSON column.
// The slice order is the authoring order and is display-significant.
type ItemList []Item

var _ driver.Valuer = ItemList(nil)

func (l ItemList) Value() (driver.Value, error) {
	if l == nil {
		l = ItemList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ItemList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = ItemList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into ItemList", src)
	}
}

// Document represents one inbound shipment with its item lines.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID                string    `bun:"id,pk"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	Supplier          string    `bun:"supplier,notnull"`
	DocNo             string    `bun:"doc_no,notnull"`
	HasDrawing        bool      `bun:"has_drawing,notnull"`
	Booked            bool      `bun:"booked,notnull"`
	TempLocation      string    `bun:"temp_location"`
	TempLocationPhoto string    `bun:"temp_location_photo"`
	Items             ItemList  `bun:"items,notnull"`
}

// Image kinds stored in document_images.
const (
	ImageKindTempLocation = "temp-location"
	ImageKindShipmentPage = "shipment-page"
)

// DocumentImage is a captured photo owned by exactly one Document. The key
// is "<docID>:<seq>" for shipment pages and "<docID>:temp" for the single
// temporary-location photo.
type DocumentImage struct {
	bun.BaseModel `bun:"table:document_images,alias:di"`

	Key        string `bun:"key,pk"`
	DocumentID string `bun:"document_id,notnull"`
	Seq        int64  `bun:"seq,notnull"`
	Kind       string `bun:"kind,notnull"`
	Blob       []byte `bun:"blob,notnull"`
	MIME       string `bun:"mime,notnull"`
}

// ImageKey builds the composite key for a shipment page photo.
func ImageKey(documentID string, seq int64) string {
	return fmt.Sprintf("%s:%d", documentID, seq)
}

// TempImageKey builds the composite key for the temp-location photo.
func TempImageKey(documentID string) string {
	return documentID + ":temp"
}

// Location is a named physical storage bin. Its lifecycle is independent of
// the movements that reference its name.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,unique,notnull"`
}

// Movement is one append-only ledger entry. Rows are never updated or
// deleted individually; the only permitted mutation is an elevated bulk
// clear of the whole ledger.
type Movement struct {
	bun.BaseModel `bun:"table:movements,alias:m"`

	ID           string    `bun:"id,pk"`
	TS           time.Time `bun:"ts,notnull"`
	ArticleNo    string    `bun:"article_no,notnull"`
	Qty          int64     `bun:"qty,notnull"`
	FromLocation string    `bun:"from_location,notnull"`
	ToLocation   string    `bun:"to_location,notnull"`
	Actor        string    `bun:"actor,notnull"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Actor      string    `bun:"actor,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
