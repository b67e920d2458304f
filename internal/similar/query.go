package similar

import (
	"log"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/mllabeler/internal/elements"
)

// Tolerance is the relative band used by the bounding box rules.
const Tolerance = 1e-3

const (
	heightExpr = "(max_z - min_z)"
	volumeExpr = "((max_x - min_x) * (max_y - min_y) * (max_z - min_z))"
)

func band(expr string, ref float64) *entsql.Predicate {
	return entsql.And(
		entsql.ExprP(expr+" >= ?", ref*(1.0-Tolerance)),
		entsql.ExprP(expr+" <= ?", ref*(1.0+Tolerance)),
	)
}

func rulePredicate(rule RuleType, ref elements.Attributes) *entsql.Predicate {
	switch rule {
	case SameClass:
		return entsql.EQ("class_id", ref.ClassID)
	case SameCategory:
		return entsql.EQ("category_id", ref.CategoryID)
	case SameUserLabel:
		return entsql.EQ("user_label", ref.UserLabel)
	case SameElementAspect:
		return entsql.EQ("aspect_class", ref.AspectClass)
	case SameModel:
		return entsql.EQ("model_id", ref.ModelID)
	case SameParent:
		return entsql.EQ("parent_id", ref.ParentID)
	case SameGeometry:
		return entsql.EQ("geometry", ref.Geometry)
	case SameGeometrySize:
		return entsql.EQ("geometry_size", ref.GeometrySize)
	case SameBBoxHeight:
		return band(heightExpr, ref.Height())
	case SameBBoxVolume:
		return band(volumeExpr, ref.Volume())
	default:
		return nil
	}
}

// BuildQuery builds the search for elements similar to ref. The result
// selects element ids only. Rules without reference data in content are
// skipped, and so is any rule that has no column predicate.
func BuildQuery(ref elements.Attributes, content ContentMap, cfg Config) (string, []any) {
	var preds []*entsql.Predicate
	for _, r := range cfg.Rule.ChildRules {
		if !r.Wanted || !content.Has(r.Type) {
			continue
		}
		p := rulePredicate(r.Type, ref)
		if p == nil {
			log.Printf("similar: rule %s has no query form, skipped", r.Type)
			continue
		}
		preds = append(preds, p)
	}

	where := []*entsql.Predicate{entsql.GT("geometry_size", 0)}
	if cfg.MaxDistEnabled {
		d := cfg.MaxDistValue
		where = append(where,
			entsql.LTE("min_x", ref.High.X+d), entsql.LTE("min_y", ref.High.Y+d), entsql.LTE("min_z", ref.High.Z+d),
			entsql.GTE("max_x", ref.Low.X-d), entsql.GTE("max_y", ref.Low.Y-d), entsql.GTE("max_z", ref.Low.Z-d),
		)
	}
	switch {
	case len(preds) == 1:
		where = append(where, preds[0])
	case len(preds) > 1 && Operator(strings.ToUpper(string(cfg.Rule.Operator))) == Or:
		where = append(where, entsql.Or(preds...))
	case len(preds) > 1:
		where = append(where, entsql.And(preds...))
	}

	sel := entsql.Dialect(dialect.SQLite).
		Select("id").
		From(entsql.Table(elements.ElementsTable)).
		Where(entsql.And(where...))
	if cfg.MaxCountEnabled {
		sel = sel.OrderBy("RANDOM()").Limit(cfg.MaxCountValue)
	}
	return sel.Query()
}
