package labelsource

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/blob"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

var testCfg = BlobConfig{ProjectID: "p", IModelID: "i", RevisionID: "r"}

func testDefs() types.LabelDefinitions {
	return types.LabelDefinitions{
		UnlabeledValue: taxonomy.Unlabeled,
		Definitions: []types.LabelDefinition{
			{Label: taxonomy.Unlabeled, LegacyName: "Unlabeled"},
			{Label: taxonomy.Prefix + "wall", LegacyName: "Wall"},
			{Label: taxonomy.Prefix + "door", LegacyName: "Door"},
		},
	}
}

func TestBlobNames(t *testing.T) {
	assert.Equal(t, "p_i_r_misclassification-labels-jkd.csv", testCfg.LabelsBlob())
	assert.Equal(t, "p_i_r_labels.csv", testCfg.LegacyLabelsBlob())
	assert.Equal(t, "p_i_r_instance-predictions.json", testCfg.PredictionsBlob())

	withSuffix := testCfg
	withSuffix.PredictionSuffix = "v2"
	assert.Equal(t, "p_i_r_instance-predictions-v2.json", withSuffix.PredictionsBlob())
}

func TestUserLabelsPrimary(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Upload(ctx, labelsContainer, testCfg.LabelsBlob(),
		[]byte(",bentley_class_name,method,probability\n26,Wall,x,1.00\n255,MachineLearning:label.door,x,1.00\n")))

	src := NewBlobSource(store, testCfg, testDefs())
	got, err := src.UserLabels(ctx, []string{"0x1a", "0xff", "0x1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Label{
		"0x1a": taxonomy.Prefix + "wall",
		"0xff": taxonomy.Prefix + "door",
		"0x1":  taxonomy.Unlabeled,
	}, got)
}

func TestUserLabelsFallback(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Upload(ctx, legacyContainer, testCfg.LegacyLabelsBlob(),
		[]byte("id,label\r\n16,Door\r\n")))

	src := NewBlobSource(store, testCfg, testDefs())
	got, err := src.UserLabels(ctx, []string{"0x10"})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Prefix+"door", got["0x10"])
}

func TestUserLabelsMissingEverywhere(t *testing.T) {
	src := NewBlobSource(blob.NewMemoryStore(), testCfg, testDefs())
	got, err := src.UserLabels(context.Background(), []string{"0x10"})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Unlabeled, got["0x10"])
}

func TestModelPredictions(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	body := `{"instancePredictions":[
		{"DgnElementIdHex":"0x1A","ElementName":"Wall","AuxData":{"score":3},
		 "Probabilities":[{"ElementName":"Wall","Probability":0.75},{"ElementName":"Door","Probability":0.25}]},
		{"DgnElementIdHex":"0x2","ElementName":"Door","AuxData":null,"Probabilities":[]}
	]}`
	require.NoError(t, store.Upload(ctx, predictionsContainer, testCfg.PredictionsBlob(), []byte(body)))

	src := NewBlobSource(store, testCfg, testDefs())
	got, err := src.ModelPredictions(ctx, []string{"0x1a", "0x2", "0x3"})
	require.NoError(t, err)

	wall := got["0x1a"]
	assert.Equal(t, taxonomy.Prefix+"wall", wall.Label)
	assert.JSONEq(t, `{"score":3}`, string(wall.AuxData))
	require.Len(t, wall.Activations, 2)
	assert.Equal(t, taxonomy.Prefix+"door", wall.Activations[1].Label)
	assert.InDelta(t, 0.25, wall.Activations[1].Activation, 1e-9)

	assert.Nil(t, got["0x2"].AuxData)
	assert.Equal(t, noPrediction(taxonomy.Unlabeled), got["0x3"])
}

func TestModelPredictionsBadJSON(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	require.NoError(t, store.Upload(ctx, predictionsContainer, testCfg.PredictionsBlob(), []byte("{")))

	got, err := NewBlobSource(store, testCfg, testDefs()).ModelPredictions(ctx, []string{"0x1"})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Unlabeled, got["0x1"].Label)
}

func TestSetUserLabelsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	src := NewBlobSource(store, testCfg, testDefs())

	err := src.SetUserLabels(ctx, map[string]types.Label{
		"0xff": taxonomy.Prefix + "door",
		"0x1a": taxonomy.Prefix + "wall",
		"0x2":  taxonomy.Prefix + "nothing",
	})
	require.NoError(t, err)

	data, err := store.Download(ctx, labelsContainer, testCfg.LabelsBlob())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		",bentley_class_name,method,probability",
		"2,Unlabeled,imodeljs_labeler,1.00",
		"26,Wall,imodeljs_labeler,1.00",
		"255,Door,imodeljs_labeler,1.00",
	}, lines)

	got, err := src.UserLabels(ctx, []string{"0x1a", "0xff"})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Prefix+"wall", got["0x1a"])
	assert.Equal(t, taxonomy.Prefix+"door", got["0xff"])
}

type failingStore struct{ blob.Store }

func (failingStore) Upload(context.Context, string, string, []byte) error {
	return errors.New("offline")
}

func TestSetUserLabelsUploadError(t *testing.T) {
	src := NewBlobSource(failingStore{blob.NewMemoryStore()}, testCfg, testDefs())
	err := src.SetUserLabels(context.Background(), map[string]types.Label{"0x1": taxonomy.Unlabeled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestDecToHex(t *testing.T) {
	h, err := DecToHex("4096")
	require.NoError(t, err)
	assert.Equal(t, "0x1000", h)

	_, err = DecToHex("x12")
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource(testDefs())

	got, err := src.UserLabels(ctx, []string{"0x1"})
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Unlabeled, got["0x1"])

	require.NoError(t, src.SetUserLabels(ctx, map[string]types.Label{"0x1": taxonomy.Prefix + "wall"}))
	got, _ = src.UserLabels(ctx, []string{"0x1"})
	assert.Equal(t, taxonomy.Prefix+"wall", got["0x1"])
	assert.Equal(t, 1, src.Uploads())

	src.FailUploads(errors.New("down"))
	assert.Error(t, src.SetUserLabels(ctx, nil))
	assert.Equal(t, 1, src.Uploads())
}
