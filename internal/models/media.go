// Package models defines the domain types for mediafold.
package models

import "strings"

// Kind classifies a media payload. The kind decides the expanded shape.
type Kind string

const (
	KindImage    Kind = "image"
	KindDrawing  Kind = "drawing"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindPDF      Kind = "pdf"
	KindHTML     Kind = "html"
	KindText     Kind = "text"
	KindDownload Kind = "download"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindDrawing, KindAudio, KindVideo, KindPDF, KindHTML, KindText, KindDownload:
		return true
	}
	return false
}

// MediaPayload is the full, self-contained media value held by a blob store.
type MediaPayload struct {
	Kind        Kind   `json:"type" cbor:"1,keyasint"`
	DisplayName string `json:"name" cbor:"2,keyasint"`
	MimeType    string `json:"mimeType,omitempty" cbor:"3,keyasint,omitempty"`
	Data        string `json:"data" cbor:"4,keyasint"`
}

// DisplayHint returns the last five characters of the encoded data, taken
// from the part after the data-URL comma when there is one.
func (p MediaPayload) DisplayHint() string {
	return DisplayHint(p.Data)
}

// DisplayHint computes the cosmetic hint for an encoded payload.
func DisplayHint(data string) string {
	part := data
	if i := strings.IndexByte(data, ','); i >= 0 {
		rest := data[i+1:]
		if j := strings.IndexByte(rest, ','); j >= 0 {
			rest = rest[:j]
		}
		if rest != "" {
			part = rest
		}
	}
	r := []rune(part)
	if len(r) > 5 {
		r = r[len(r)-5:]
	}
	return string(r)
}

// TagKind is the element name family of a collapsed reference.
type TagKind string

const (
	TagImage TagKind = "image"
	TagDraw  TagKind = "draw"
	TagFile  TagKind = "file"
)

// TagKindFor maps a payload kind to the tag family that references it.
func TagKindFor(k Kind) TagKind {
	switch k {
	case KindImage:
		return TagImage
	case KindDrawing:
		return TagDraw
	default:
		return TagFile
	}
}

// Reference is a collapsed in-text reference to a stored payload.
// Inline is set for legacy shapes that carry their payload in the tag itself.
type Reference struct {
	Kind        TagKind
	Key         string
	DisplayHint string
	Label       string
	Inline      string
}

// Span is a half-open byte range [Start, End) in a document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset p touches the span. Both boundaries count,
// so a cursor placed right after a tag still selects it.
func (s Span) Contains(p int) bool { return p >= s.Start && p <= s.End }
