// Package resources manages the shared library of links, documents and
// media contributed by members.
package resources

import "time"

// Type classifies a resource.
type Type string

const (
	TypeLink     Type = "link"
	TypeFile     Type = "file"
	TypeArticle  Type = "article"
	TypeDocument Type = "document"
	TypeAudio    Type = "audio"
	TypeVideo    Type = "video"
	TypeImage    Type = "image"
)

// Resource is a library entry.
type Resource struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Type          Type      `json:"type"`
	URL           string    `json:"url,omitempty"`
	FileURL       string    `json:"file_url,omitempty"`
	Language      string    `json:"language"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags"`
	ViewCount     int       `json:"view_count"`
	DownloadCount int       `json:"download_count"`
	IsApproved    bool      `json:"is_approved"`
	ApprovedBy    *string   `json:"approved_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Link returns where the resource can be fetched.
func (r Resource) Link() string {
	if r.FileURL != "" {
		return r.FileURL
	}
	return r.URL
}

// ListFilter narrows listings. Unapproved entries are only included for
// IncludeUnapproved, or when authored by ViewerID.
type ListFilter struct {
	Type              Type
	Language          string
	Category          string
	Search            string
	ViewerID          string
	IncludeUnapproved bool
	PendingOnly       bool
	Limit             int
	Offset            int
}

// Input creates a resource.
type Input struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Type        Type     `json:"type" validate:"required,oneof=link file article document audio video image"`
	URL         string   `json:"url" validate:"omitempty,url,max=1000"`
	FileURL     string   `json:"file_url" validate:"omitempty,url,max=1000"`
	Language    string   `json:"language" validate:"omitempty,max=35"`
	Category    string   `json:"category" validate:"max=100"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}

// Update carries a partial edit.
type Update struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	URL         *string  `json:"url" validate:"omitempty,url,max=1000"`
	FileURL     *string  `json:"file_url" validate:"omitempty,url,max=1000"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,required,max=40"`
}
