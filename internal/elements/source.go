// Package elements provides the element catalog: the geometric elements of a
// model and their models, categories and classes.
package elements

import (
	"context"
	"errors"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// ErrNotFound is returned when an element id is unknown.
var ErrNotFound = errors.New("element not found")

// Source is the interface for reading the element catalog. Only elements
// carrying geometry are reported.
type Source interface {
	QueryElements(ctx context.Context) ([]types.ElementRecord, error)
	QueryModels(ctx context.Context) ([]types.GroupRecord, error)
	QueryCategories(ctx context.Context) ([]types.GroupRecord, error)
	QueryClasses(ctx context.Context) ([]types.GroupRecord, error)

	// Attributes returns the full attribute row of one element.
	Attributes(ctx context.Context, id string) (Attributes, error)

	// Search runs a prebuilt query whose first column is the element id.
	Search(ctx context.Context, query string, args []any) ([]string, error)
}

// Attributes is the attribute probe of one element.
type Attributes struct {
	ElementID   string `json:"element_id" yaml:"element_id"`
	ModelID     string `json:"model_id" yaml:"model_id"`
	CategoryID  string `json:"category_id" yaml:"category_id"`
	ClassID     string `json:"class_id" yaml:"class_id"`
	ClassName   string `json:"class_name" yaml:"class_name"`
	UserLabel   string `json:"user_label,omitempty" yaml:"user_label,omitempty"`
	CodeValue   string `json:"code_value,omitempty" yaml:"code_value,omitempty"`
	ParentID    string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	AspectClass string `json:"aspect_class,omitempty" yaml:"aspect_class,omitempty"`

	CategoryUserLabel   string `json:"category_user_label,omitempty" yaml:"category_user_label,omitempty"`
	CategoryCodeValue   string `json:"category_code_value,omitempty" yaml:"category_code_value,omitempty"`
	CategoryDescription string `json:"category_description,omitempty" yaml:"category_description,omitempty"`

	Geometry     []byte        `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	GeometrySize int64         `json:"geometry_size" yaml:"geometry_size"`
	Low          types.Point3d `json:"low" yaml:"low"`
	High         types.Point3d `json:"high" yaml:"high"`
}

// Height is the bounding box extent along z.
func (a Attributes) Height() float64 {
	return a.High.Z - a.Low.Z
}

// Volume is the bounding box volume.
func (a Attributes) Volume() float64 {
	return (a.High.X - a.Low.X) * (a.High.Y - a.Low.Y) * (a.High.Z - a.Low.Z)
}

// CategoryDisplay joins the category user label and code value.
func CategoryDisplay(userLabel, codeValue string) string {
	switch {
	case userLabel != "" && codeValue != "":
		return userLabel + " | " + codeValue
	case userLabel != "":
		return userLabel
	default:
		return codeValue
	}
}
