package similar

import (
	"strconv"

	"github.com/matthewbaird/mllabeler/internal/elements"
)

// ContentMap records, per rule, the reference data found on an element.
// A rule absent from the map has nothing to match against.
type ContentMap map[RuleType][]string

// Has reports whether rule has reference data.
func (c ContentMap) Has(rule RuleType) bool {
	_, ok := c[rule]
	return ok
}

// Probe inspects an element's attributes.
func Probe(a elements.Attributes) ContentMap {
	m := ContentMap{}

	var category []string
	for _, s := range []string{a.CategoryUserLabel, a.CategoryCodeValue, a.CategoryDescription} {
		if s != "" {
			category = append(category, s)
		}
	}
	if len(category) > 0 {
		m[SameCategory] = category
	}
	if a.ModelID != "" {
		m[SameModel] = []string{a.ModelID}
	}
	if a.ParentID != "" {
		m[SameParent] = []string{a.ParentID}
	}
	if a.AspectClass != "" {
		m[SameElementAspect] = []string{a.AspectClass}
	}
	if a.UserLabel != "" {
		m[SameUserLabel] = []string{a.UserLabel}
	}
	if a.ClassName != "" {
		m[SameClass] = []string{a.ClassName}
	}
	if a.CodeValue != "" {
		m[SameCodeValue] = []string{a.CodeValue}
	}
	if a.GeometrySize != 0 {
		m[SameGeometrySize] = []string{strconv.FormatInt(a.GeometrySize, 10)}
		m[SameGeometry] = []string{""}
	}
	if h := a.Height(); h != 0 {
		m[SameBBoxHeight] = []string{strconv.FormatFloat(h, 'g', 6, 64)}
	}
	if v := a.Volume(); v != 0 {
		m[SameBBoxVolume] = []string{strconv.FormatFloat(v, 'g', 6, 64)}
	}
	return m
}
