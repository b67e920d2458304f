package taxonomy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/mllabeler/internal/types"
)

//go:embed labels.cue
var builtinSource []byte

// Prefix is prepended to short label names found in label files.
const Prefix = "MachineLearning:label."

// Unlabeled is the sentinel label of the builtin taxonomy.
const Unlabeled = Prefix + "unlabeled"

type cueLabel struct {
	Label                string `json:"label"`
	LegacyName           string `json:"legacy_name"`
	Parent               string `json:"parent"`
	Color                string `json:"color"`
	UserLabelShown       *bool  `json:"user_label_shown"`
	ModelPredictionShown *bool  `json:"model_prediction_shown"`
}

// Builtin returns the label definitions compiled into the binary.
func Builtin() (types.LabelDefinitions, error) {
	return Parse("labels.cue", builtinSource)
}

// LoadFile reads label definitions from a CUE file on disk.
func LoadFile(path string) (types.LabelDefinitions, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return types.LabelDefinitions{}, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	return Parse(path, src)
}

// Parse compiles CUE source holding an `unlabeled` string and a `labels` list.
func Parse(filename string, src []byte) (types.LabelDefinitions, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(src, cue.Filename(filename))
	if val.Err() != nil {
		return types.LabelDefinitions{}, fmt.Errorf("compiling taxonomy: %w", val.Err())
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return types.LabelDefinitions{}, fmt.Errorf("validating taxonomy: %w", err)
	}

	var defs types.LabelDefinitions
	defs.UnlabeledValue, _ = val.LookupPath(cue.ParsePath("unlabeled")).String()

	var raw []cueLabel
	if err := val.LookupPath(cue.ParsePath("labels")).Decode(&raw); err != nil {
		return types.LabelDefinitions{}, fmt.Errorf("decoding labels: %w", err)
	}
	for _, l := range raw {
		def := types.LabelDefinition{
			Label:                l.Label,
			ParentLabel:          l.Parent,
			LegacyName:           l.LegacyName,
			UserLabelShown:       l.UserLabelShown,
			ModelPredictionShown: l.ModelPredictionShown,
		}
		if l.Color != "" {
			c, err := types.ParseColor(l.Color)
			if err != nil {
				return types.LabelDefinitions{}, fmt.Errorf("label %s: %w", l.Label, err)
			}
			def.DefaultColor = &c
		}
		defs.Definitions = append(defs.Definitions, def)
	}
	if defs.UnlabeledValue == "" {
		return types.LabelDefinitions{}, fmt.Errorf("taxonomy %s: missing unlabeled value", filename)
	}
	return defs, nil
}
