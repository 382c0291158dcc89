package domain

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// Attachment is a file carried by a message. Content is kept in memory only;
// once persisted elsewhere PersistenceKey points at the stored copy.
type Attachment struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContentType    string `json:"content_type,omitempty"`
	Content        []byte `json:"-"`
	PersistenceKey string `json:"persistence_key,omitempty"`
}

// NewAttachment creates an in-memory attachment with a random id.
func NewAttachment(name, contentType string, content []byte) Attachment {
	return Attachment{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Content:     content,
	}
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

func (a Attachment) HasPersistenceKey() bool {
	return a.PersistenceKey != ""
}

// DataURL encodes the content as a data: URL.
func (a Attachment) DataURL() string {
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(a.Content)
}
