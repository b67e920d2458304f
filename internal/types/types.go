// Package types provides the value types shared between the labeling engine,
// its data sources and its HTTP/WebSocket surfaces.
package types

import "github.com/goccy/go-json"

// Label names a node of the label taxonomy.
type Label = string

// LabelDefinition is one entry of the taxonomy as supplied by a label source.
// A ParentLabel equal to Label marks a root.
type LabelDefinition struct {
	Label                Label     `json:"label"`
	ParentLabel          Label     `json:"parent_label,omitempty"`
	DefaultColor         *ColorDef `json:"default_color,omitempty"`
	UserLabelShown       *bool     `json:"user_label_shown,omitempty"`
	ModelPredictionShown *bool     `json:"model_prediction_shown,omitempty"`
	LegacyName           string    `json:"legacy_name,omitempty"`
}

// LabelDefinitions is the full taxonomy returned by a label source.
type LabelDefinitions struct {
	UnlabeledValue Label             `json:"unlabeled_value"`
	Definitions    []LabelDefinition `json:"definitions"`
}

// LabelActivation is one entry of a model's per-label probability output.
type LabelActivation struct {
	Label      Label   `json:"label"`
	Activation float64 `json:"activation"`
}

// ModelPrediction is the predicted label of one element.
type ModelPrediction struct {
	Label       Label             `json:"label"`
	AuxData     json.RawMessage   `json:"aux_data,omitempty"`
	Activations []LabelActivation `json:"activations,omitempty"`
}

// ElementRecord is an element row as produced by an element source.
type ElementRecord struct {
	ElementID  string `json:"element_id"`
	ModelID    string `json:"model_id"`
	CategoryID string `json:"category_id"`
	ClassID    string `json:"class_id"`
	ClassName  string `json:"class_name"`
}

// GroupRecord is a model, category or class row as produced by an element source.
type GroupRecord struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// ElementState is the labeling state of a single element. Only TrueLabel and
// PredLabel change after the initial load.
type ElementState struct {
	ElementID  string          `json:"element_id"`
	ModelID    string          `json:"model_id"`
	CategoryID string          `json:"category_id"`
	ClassID    string          `json:"class_id"`
	ClassName  string          `json:"class_name"`
	TrueLabel  Label           `json:"true_label"`
	PredLabel  Label           `json:"pred_label"`
	AuxData    json.RawMessage `json:"aux_data,omitempty"`
}

// GroupState is the display state of one facet entry (a model, category,
// class, true label or predicted label).
type GroupState struct {
	DisplayLabel  string `json:"display_label,omitempty"`
	IsDisplayed   bool   `json:"is_displayed"`
	IsTransparent bool   `json:"is_transparent"`
}

// DefaultGroupState is used when a facet lookup misses.
var DefaultGroupState = GroupState{IsDisplayed: true}

// ElementOverride is the per-element render tuple handed to the viewer.
type ElementOverride struct {
	ElementID     string    `json:"element_id"`
	Color         *ColorDef `json:"color,omitempty"`
	IsVisible     bool      `json:"is_visible"`
	IsTransparent bool      `json:"is_transparent"`
	IsEmphasized  bool      `json:"is_emphasized"`
}

// TableItem is one row of the model, category or class table.
type TableItem struct {
	GroupID       string `json:"group_id"`
	DisplayLabel  string `json:"display_label"`
	IsDisplayed   bool   `json:"is_displayed"`
	IsTransparent bool   `json:"is_transparent"`
	TotalCount    int    `json:"total_count"`
	VisibleCount  int    `json:"visible_count"`
	SelectedCount int    `json:"selected_count"`
}

// MLTableItem is one row of the label table. Counts of collapsed
// descendants are rolled up into the row.
type MLTableItem struct {
	Name    Label    `json:"name"`
	Color   ColorDef `json:"color"`
	HasData bool     `json:"has_data"`

	TrueLabelIsDisplayed   bool `json:"true_label_is_displayed"`
	TrueLabelIsTransparent bool `json:"true_label_is_transparent"`
	TrueLabelTotalCount    int  `json:"true_label_total_count"`
	TrueLabelVisibleCount  int  `json:"true_label_visible_count"`
	TrueLabelSelectedCount int  `json:"true_label_selected_count"`

	PredLabelIsDisplayed   bool `json:"pred_label_is_displayed"`
	PredLabelIsTransparent bool `json:"pred_label_is_transparent"`
	PredLabelTotalCount    int  `json:"pred_label_total_count"`
	PredLabelVisibleCount  int  `json:"pred_label_visible_count"`
	PredLabelSelectedCount int  `json:"pred_label_selected_count"`
}

// TreeEntry is a node of the label tree view.
type TreeEntry struct {
	Name       Label       `json:"name"`
	IsExpanded bool        `json:"is_expanded"`
	Level      int         `json:"level"`
	Children   []TreeEntry `json:"children"`
}

// Point3d is a point in world coordinates.
type Point3d struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Frustum is a saved viewport camera volume, stored opaquely by the engine.
type Frustum struct {
	Points [8]Point3d `json:"points"`
}
