// Package publish pushes changesets to the remote feature service. The
// remote layer mirrors the operational store: features are keyed by the
// stable asset ID and the remote copy is never treated as authoritative.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/bcgov/bcparks-asset-sync/pkg/assets"
	"github.com/bcgov/bcparks-asset-sync/pkg/differ"
	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// Poster executes authenticated form POSTs. *transport.Client satisfies
// it; tests substitute a fake.
type Poster interface {
	PostForm(ctx context.Context, endpoint string, form url.Values, target any) error
}

// Config configures the publisher.
type Config struct {
	// LayerURL is the feature layer endpoint, e.g.
	// https://host/.../FeatureServer/0.
	LayerURL string

	// IDLabel is the attribute label holding the stable asset ID on
	// remote features (default: "Asset ID").
	IDLabel string

	// PageSize bounds one remote query page (default: 1000).
	PageSize int
}

// Publisher applies changesets to the remote layer one operation at a
// time, in the changeset's deterministic order.
type Publisher struct {
	client Poster
	cfg    Config
}

// NewPublisher creates a publisher over an authenticated client.
func NewPublisher(client Poster, cfg Config) *Publisher {
	if cfg.IDLabel == "" {
		cfg.IDLabel = "Asset ID"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	return &Publisher{client: client, cfg: cfg}
}

// remoteGeometry is the service's point geometry encoding.
type remoteGeometry struct {
	X                float64        `json:"x"`
	Y                float64        `json:"y"`
	SpatialReference map[string]int `json:"spatialReference,omitempty"`
}

// remoteFeature is the wire form of one feature.
type remoteFeature struct {
	Attributes map[string]any  `json:"attributes"`
	Geometry   *remoteGeometry `json:"geometry,omitempty"`
}

// queryResponse is the layer query envelope.
type queryResponse struct {
	Features              []remoteFeature `json:"features"`
	ExceededTransferLimit bool            `json:"exceededTransferLimit"`
}

// editResult is one entry of an addResults/updateResults array.
type editResult struct {
	ObjectID int64 `json:"objectId"`
	Success  bool  `json:"success"`
	Error    *struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// editResponse is the addFeatures/updateFeatures envelope.
type editResponse struct {
	AddResults    []editResult `json:"addResults"`
	UpdateResults []editResult `json:"updateResults"`
}

// FetchRemote reads the full remote feature set into an ephemeral cache
// keyed by stable asset ID. Features without the ID attribute are
// ignored; the differ will treat their records as missing and recreate
// them.
func (p *Publisher) FetchRemote(ctx context.Context) (map[string]assets.RemoteFeature, error) {
	remote := make(map[string]assets.RemoteFeature)

	for offset := 0; ; offset += p.cfg.PageSize {
		form := url.Values{
			"where":             {"1=1"},
			"outFields":         {"*"},
			"returnGeometry":    {"true"},
			"outSR":             {strconv.Itoa(assets.WGS84SRID)},
			"resultOffset":      {strconv.Itoa(offset)},
			"resultRecordCount": {strconv.Itoa(p.cfg.PageSize)},
		}

		var page queryResponse
		if err := p.client.PostForm(ctx, p.cfg.LayerURL+"/query", form, &page); err != nil {
			return nil, err
		}

		for _, f := range page.Features {
			id := featureID(f.Attributes, p.cfg.IDLabel)
			if id == "" {
				continue
			}
			rf := assets.RemoteFeature{
				ID:         id,
				Attributes: f.Attributes,
			}
			if f.Geometry != nil {
				rf.Point = orb.Point{f.Geometry.X, f.Geometry.Y}
			}
			rf.LastModified = featureEditDate(f.Attributes)
			remote[id] = rf
		}

		if !page.ExceededTransferLimit {
			break
		}
	}

	logging.Ctx(ctx).Info().Int("features", len(remote)).Msg("Fetched remote feature set")
	return remote, nil
}

// Failure records one operation the service rejected.
type Failure struct {
	RecordID string
	Kind     assets.OperationKind
	Err      error
}

// Result summarizes one Apply pass.
type Result struct {
	Created  int
	Updated  int
	Skipped  int
	Failures []Failure
}

// Failed reports whether any operation was rejected.
func (r *Result) Failed() bool { return len(r.Failures) > 0 }

// Summary returns a human-readable result line.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d created, %d updated, %d skipped, %d failed",
		r.Created, r.Updated, r.Skipped, len(r.Failures))
}

// Apply pushes the changeset's pending operations one at a time, in
// order. Per-operation service rejections and exhausted transient
// failures are recorded and do not stop the pass; authentication
// failures and context cancellation abort immediately with the partial
// result.
func (p *Publisher) Apply(ctx context.Context, cs *differ.Changeset) (*Result, error) {
	result := &Result{Skipped: cs.Skips}
	log := logging.Ctx(ctx)

	for _, op := range cs.Pending() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := p.applyOne(ctx, op)
		if err == nil {
			switch op.Kind {
			case assets.OperationCreate:
				result.Created++
			case assets.OperationUpdate:
				result.Updated++
			}
			continue
		}

		if fatal(err) {
			log.Error().Err(err).Str("record", op.RecordID).Msg("Publish aborted")
			return result, err
		}

		log.Warn().Err(err).
			Str("record", op.RecordID).
			Str("operation", op.Kind.String()).
			Msg("Operation rejected, continuing")
		result.Failures = append(result.Failures, Failure{
			RecordID: op.RecordID,
			Kind:     op.Kind,
			Err:      err,
		})
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failures)).
		Msg("Changeset applied")
	return result, nil
}

// fatal reports whether an error must abort the whole pass rather than
// fail a single operation.
func fatal(err error) bool {
	return errors.IsAuthRejected(err) || errors.IsAuthExpired(err) ||
		errors.IsConnection(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// applyOne submits a single create or update.
func (p *Publisher) applyOne(ctx context.Context, op assets.SyncOperation) error {
	wire := remoteFeature{
		Attributes: op.Payload.Attributes,
		Geometry: &remoteGeometry{
			X:                op.Payload.Point[0],
			Y:                op.Payload.Point[1],
			SpatialReference: map[string]int{"wkid": assets.WGS84SRID},
		},
	}
	payload, err := json.Marshal([]remoteFeature{wire})
	if err != nil {
		return &errors.RemoteValidationError{RecordID: op.RecordID, Message: err.Error()}
	}

	endpoint := p.cfg.LayerURL + "/addFeatures"
	if op.Kind == assets.OperationUpdate {
		endpoint = p.cfg.LayerURL + "/updateFeatures"
	}

	var resp editResponse
	if err := p.client.PostForm(ctx, endpoint, url.Values{"features": {string(payload)}}, &resp); err != nil {
		return err
	}

	results := resp.AddResults
	if op.Kind == assets.OperationUpdate {
		results = resp.UpdateResults
	}
	for _, r := range results {
		if !r.Success {
			msg := "edit rejected"
			code := 0
			if r.Error != nil {
				msg = r.Error.Description
				code = r.Error.Code
			}
			return &errors.RemoteValidationError{RecordID: op.RecordID, Code: code, Message: msg}
		}
	}
	return nil
}

// featureID extracts the stable asset ID from remote attributes.
func featureID(attrs map[string]any, label string) string {
	v, ok := attrs[label]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return fmt.Sprint(v)
	}
}

// featureEditDate extracts the service edit marker when present. The
// service reports it as epoch milliseconds.
func featureEditDate(attrs map[string]any) time.Time {
	for _, key := range []string{"last_edited_date", "EditDate"} {
		if ms, ok := attrs[key].(float64); ok && ms > 0 {
			return time.UnixMilli(int64(ms))
		}
	}
	return time.Time{}
}
