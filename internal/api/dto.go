package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scratch/internal/untitledservice"
)

const maxPathLen = 1024

var typeIDRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// CreateUntitledRequest is the request body for creating an untitled copy.
type CreateUntitledRequest struct {
	AssociatedPath string `json:"associated_path,omitempty" example:"notes/plan.md"`
	Content        string `json:"content,omitempty" example:"# Plan"`
	TypeID         string `json:"type_id,omitempty" example:"text"`
}

// Validate validates the request.
func (r CreateUntitledRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AssociatedPath, validation.Length(0, maxPathLen)),
		validation.Field(&r.TypeID, validation.Match(typeIDRe)),
	)
}

// UpdateContentRequest is the request body for editing a copy.
type UpdateContentRequest struct {
	Content string `json:"content" example:"# Updated"`
	Mode    string `json:"mode,omitempty" example:"replace"`
}

// Validate validates the request.
func (r UpdateContentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.In(untitledservice.EditReplace, untitledservice.EditAppend)),
	)
}

// SaveRequest is the request body for saving a copy into the vault.
type SaveRequest struct {
	Path      string `json:"path,omitempty" example:"notes/plan.md"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// Validate validates the request.
func (r SaveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Length(0, maxPathLen)),
	)
}

// UntitledDetail is the full copy response type (aliased from the domain layer).
type UntitledDetail = untitledservice.Detail

// UntitledListItem is a lightweight item in a list response.
type UntitledListItem = untitledservice.ListItem

// UntitledListResponse wraps copy listings.
type UntitledListResponse struct {
	Untitled []UntitledListItem `json:"untitled" validate:"required"`
	Total    int                `json:"total" example:"2" validate:"required"`
}

// BackupResponse carries the backup payload of a copy.
type BackupResponse struct {
	Key      string `json:"key" example:"Untitled-1" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Checksum string `json:"checksum" validate:"required"`
}

// SaveResponse is returned after a successful save.
type SaveResponse struct {
	Path     string `json:"path" example:"notes/plan.md" validate:"required"`
	Checksum string `json:"checksum" validate:"required"`
	Bytes    int    `json:"bytes" example:"42" validate:"required"`
}
