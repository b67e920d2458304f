package labelsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/blob"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

const (
	predictionsContainer = "abce-predictions"
	labelsContainer      = "abce-misclassification-labels"
	legacyContainer      = "abce-labels"

	uploadHeaderClass = "bentley_class_name"
	uploadMethod      = "imodeljs_labeler"
)

// BlobConfig identifies the project revision whose blobs are read.
type BlobConfig struct {
	ProjectID        string `yaml:"project_id"`
	IModelID         string `yaml:"imodel_id"`
	RevisionID       string `yaml:"revision_id"`
	PredictionSuffix string `yaml:"prediction_suffix"`
}

func (c BlobConfig) prefix() string {
	return fmt.Sprintf("%s_%s_%s", c.ProjectID, c.IModelID, c.RevisionID)
}

// PredictionsBlob is the name of the predictions JSON file.
func (c BlobConfig) PredictionsBlob() string {
	suffix := ""
	if c.PredictionSuffix != "" {
		suffix = "-" + c.PredictionSuffix
	}
	return c.prefix() + "_instance-predictions" + suffix + ".json"
}

// LabelsBlob is the name of the user label CSV file.
func (c BlobConfig) LabelsBlob() string {
	return c.prefix() + "_misclassification-labels-jkd.csv"
}

// LegacyLabelsBlob is the name of the geometry label CSV read as fallback.
func (c BlobConfig) LegacyLabelsBlob() string {
	return c.prefix() + "_labels.csv"
}

// BlobSource reads predictions as JSON and user labels as CSV from a blob
// store. Download failures are logged and yield empty data.
type BlobSource struct {
	store  blob.Store
	cfg    BlobConfig
	defs   types.LabelDefinitions
	legacy map[types.Label]string
}

// NewBlobSource creates a source serving defs as its taxonomy.
func NewBlobSource(store blob.Store, cfg BlobConfig, defs types.LabelDefinitions) *BlobSource {
	legacy := make(map[types.Label]string, len(defs.Definitions))
	for _, d := range defs.Definitions {
		if d.LegacyName != "" {
			legacy[d.Label] = d.LegacyName
		}
	}
	return &BlobSource{store: store, cfg: cfg, defs: defs, legacy: legacy}
}

func (s *BlobSource) LabelDefinitions(_ context.Context) (types.LabelDefinitions, error) {
	return s.defs, nil
}

func (s *BlobSource) UserLabels(ctx context.Context, ids []string) (map[string]types.Label, error) {
	downloaded := s.downloadUserLabels(ctx)
	out := make(map[string]types.Label, len(ids))
	for _, id := range ids {
		if l, ok := downloaded[id]; ok {
			out[id] = l
		} else {
			out[id] = s.defs.UnlabeledValue
		}
	}
	return out, nil
}

func (s *BlobSource) ModelPredictions(ctx context.Context, ids []string) (map[string]types.ModelPrediction, error) {
	downloaded := s.downloadPredictions(ctx)
	out := make(map[string]types.ModelPrediction, len(ids))
	for _, id := range ids {
		if p, ok := downloaded[id]; ok {
			out[id] = p
		} else {
			out[id] = noPrediction(s.defs.UnlabeledValue)
		}
	}
	return out, nil
}

// SetUserLabels uploads the complete label map as CSV.
func (s *BlobSource) SetUserLabels(ctx context.Context, labels map[string]types.Label) error {
	data, err := s.encodeLabels(labels)
	if err != nil {
		return err
	}
	if err := s.store.Upload(ctx, labelsContainer, s.cfg.LabelsBlob(), data); err != nil {
		log.Printf("labelsource: upload %s/%s failed: %v", labelsContainer, s.cfg.LabelsBlob(), err)
		return fmt.Errorf("uploading labels: %w", err)
	}
	return nil
}

func (s *BlobSource) downloadUserLabels(ctx context.Context) map[string]types.Label {
	labels, err := s.readLabelCSV(ctx, labelsContainer, s.cfg.LabelsBlob())
	if err == nil {
		return labels
	}
	log.Printf("labelsource: primary labels unavailable (%v), trying %s", err, legacyContainer)
	labels, err = s.readLabelCSV(ctx, legacyContainer, s.cfg.LegacyLabelsBlob())
	if err != nil {
		log.Printf("labelsource: failed to download the alternate labels %s/%s: %v", legacyContainer, s.cfg.LegacyLabelsBlob(), err)
		return map[string]types.Label{}
	}
	return labels
}

func (s *BlobSource) readLabelCSV(ctx context.Context, container, name string) (map[string]types.Label, error) {
	data, err := s.store.Download(ctx, container, name)
	if err != nil {
		return nil, err
	}
	return parseLabelCSV(data)
}

// parseLabelCSV reads "decimalId,label[,...]" rows after a header line.
func parseLabelCSV(data []byte) (map[string]types.Label, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	out := make(map[string]types.Label)
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing label csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 2 {
			continue
		}
		id, err := DecToHex(strings.TrimSpace(rec[0]))
		if err != nil {
			log.Printf("labelsource: skipping row with bad id %q", rec[0])
			continue
		}
		out[id] = NormalizeLabel(strings.TrimSpace(rec[1]))
	}
	return out, nil
}

type predictionFile struct {
	InstancePredictions []struct {
		DgnElementIDHex string          `json:"DgnElementIdHex"`
		ElementName     string          `json:"ElementName"`
		AuxData         json.RawMessage `json:"AuxData"`
		Probabilities   []struct {
			ElementName string  `json:"ElementName"`
			Probability float64 `json:"Probability"`
		} `json:"Probabilities"`
	} `json:"instancePredictions"`
}

func (s *BlobSource) downloadPredictions(ctx context.Context) map[string]types.ModelPrediction {
	name := s.cfg.PredictionsBlob()
	data, err := s.store.Download(ctx, predictionsContainer, name)
	if err != nil {
		log.Printf("labelsource: failed to download predictions %s/%s: %v", predictionsContainer, name, err)
		return map[string]types.ModelPrediction{}
	}
	preds, err := parsePredictions(data)
	if err != nil {
		log.Printf("labelsource: failed to parse predictions %s/%s: %v", predictionsContainer, name, err)
		return map[string]types.ModelPrediction{}
	}
	return preds
}

func parsePredictions(data []byte) (map[string]types.ModelPrediction, error) {
	var file predictionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding predictions: %w", err)
	}
	out := make(map[string]types.ModelPrediction, len(file.InstancePredictions))
	for _, p := range file.InstancePredictions {
		pred := types.ModelPrediction{Label: taxonomy.Prefix + strings.ToLower(p.ElementName)}
		if len(p.AuxData) > 0 && string(p.AuxData) != "null" {
			pred.AuxData = []byte(p.AuxData)
		}
		for _, prob := range p.Probabilities {
			pred.Activations = append(pred.Activations, types.LabelActivation{
				Label:      taxonomy.Prefix + strings.ToLower(prob.ElementName),
				Activation: prob.Probability,
			})
		}
		out[strings.ToLower(p.DgnElementIDHex)] = pred
	}
	return out, nil
}

func (s *BlobSource) encodeLabels(labels map[string]types.Label) ([]byte, error) {
	type row struct {
		dec   uint64
		label types.Label
	}
	rows := make([]row, 0, len(labels))
	for id, label := range labels {
		dec, err := hexToDec(id)
		if err != nil {
			log.Printf("labelsource: skipping label for bad id %q", id)
			continue
		}
		rows = append(rows, row{dec: dec, label: label})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].dec < rows[j].dec })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"", uploadHeaderClass, "method", "probability"})
	for _, r := range rows {
		name, ok := s.legacy[r.label]
		if !ok {
			name = "Unlabeled"
		}
		w.Write([]string{strconv.FormatUint(r.dec, 10), name, uploadMethod, "1.00"})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding labels: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeLabel expands a short label name to a full taxonomy label.
func NormalizeLabel(raw string) types.Label {
	if strings.HasPrefix(raw, "MachineLearning:label") {
		return raw
	}
	return taxonomy.Prefix + strings.ToLower(raw)
}

// DecToHex converts a decimal element id to its lower-case 0x form.
func DecToHex(dec string) (string, error) {
	v, err := strconv.ParseUint(dec, 10, 64)
	if err != nil {
		return "", err
	}
	return "0x" + strconv.FormatUint(v, 16), nil
}

func hexToDec(id string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(strings.ToLower(id), "0x"), 16, 64)
}
