package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	scrubhttp "github.com/eoln/scrub/internal/http"
)

// EndpointsPath is where the API publishes its endpoint catalog.
const EndpointsPath = "/v2/metrics/endpoints"

// FileName is the name the filtered catalog is stored under.
const FileName = "endpoints.json"

// ErrMalformed is returned when a catalog entry lacks required fields.
var ErrMalformed = errors.New("malformed endpoint")

// Asset is one asset an endpoint can be queried for.
type Asset struct {
	Symbol string `json:"symbol"`

	// Extra holds the fields the scraper does not interpret. They are
	// written back unchanged when the catalog is saved.
	Extra map[string]json.RawMessage `json:"-"`
}

// Endpoint describes one dataset published by the API.
//
// Assets and Resolutions are nil only when the field was absent (or null)
// in the source JSON; an empty list decodes to an empty, non-nil slice.
type Endpoint struct {
	Path        string   `json:"path"`
	Tier        int      `json:"tier"`
	Assets      []Asset  `json:"assets"`
	Resolutions []string `json:"resolutions"`

	// Extra holds the fields the scraper does not interpret, such as
	// formats or domain. They are written back unchanged when the catalog
	// is saved.
	Extra map[string]json.RawMessage `json:"-"`
}

type (
	assetFields    Asset
	endpointFields Endpoint
)

func (a *Asset) UnmarshalJSON(data []byte) error {
	var known assetFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, "symbol")
	if err != nil {
		return err
	}
	*a = Asset(known)
	a.Extra = extra
	return nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(assetFields(a), a.Extra)
}

func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var known endpointFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, "path", "tier", "assets", "resolutions")
	if err != nil {
		return err
	}
	*e = Endpoint(known)
	e.Extra = extra
	return nil
}

func (e Endpoint) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(endpointFields(e), e.Extra)
}

// extraFields returns the members of the JSON object data not named in
// known, or nil if there are none.
func extraFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes v and adds the members of extra that v does
// not set itself.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+4)
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

// Fetch retrieves the full endpoint catalog.
func Fetch(ctx context.Context, client *scrubhttp.Client) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := client.GetJSON(ctx, EndpointsPath, &endpoints); err != nil {
		return nil, fmt.Errorf("fetch endpoints: %w", err)
	}
	return endpoints, nil
}

// Decode parses an endpoints.json document and checks that every entry
// carries the fields the job expander needs.
func Decode(data []byte) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := json.Unmarshal(data, &endpoints); err != nil {
		return nil, fmt.Errorf("decode endpoints: %w", err)
	}
	for i, e := range endpoints {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
	}
	return endpoints, nil
}

// Encode renders endpoints as an indented JSON array.
func Encode(endpoints []Endpoint) ([]byte, error) {
	if endpoints == nil {
		endpoints = []Endpoint{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(endpoints); err != nil {
		return nil, fmt.Errorf("encode endpoints: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate reports whether e has a path, an asset list and a resolution list.
func (e Endpoint) Validate() error {
	switch {
	case e.Path == "":
		return fmt.Errorf("%w: missing path", ErrMalformed)
	case e.Assets == nil:
		return fmt.Errorf("%w: %s: missing assets", ErrMalformed, e.Path)
	case e.Resolutions == nil:
		return fmt.Errorf("%w: %s: missing resolutions", ErrMalformed, e.Path)
	}
	return nil
}

// FilterByAssets keeps endpoints offering at least one of symbols and
// narrows their asset lists to those symbols. The input is not modified.
func FilterByAssets(endpoints []Endpoint, symbols []string) []Endpoint {
	var out []Endpoint
	for _, e := range endpoints {
		var assets []Asset
		for _, a := range e.Assets {
			if slices.Contains(symbols, a.Symbol) {
				assets = append(assets, a)
			}
		}
		if len(assets) == 0 {
			continue
		}
		e.Assets = assets
		out = append(out, e)
	}
	return out
}

// FilterByTiers keeps endpoints whose tier is in tiers.
func FilterByTiers(endpoints []Endpoint, tiers []int) []Endpoint {
	var out []Endpoint
	for _, e := range endpoints {
		if slices.Contains(tiers, e.Tier) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByPath keeps endpoints whose path matches pattern at its start.
func FilterByPath(endpoints []Endpoint, pattern string) ([]Endpoint, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile path pattern: %w", err)
	}
	var out []Endpoint
	for _, e := range endpoints {
		if loc := re.FindStringIndex(e.Path); loc != nil && loc[0] == 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

// Filter describes which endpoints to keep. The zero value keeps all.
type Filter struct {
	Assets []string // "*" or empty means any asset
	Tiers  []int    // 0 or empty means any tier
	Path   string   // "*" or empty means any path
}

// Apply runs the asset, tier and path filters in that order.
func (f Filter) Apply(endpoints []Endpoint) ([]Endpoint, error) {
	if len(f.Assets) > 0 && !slices.Contains(f.Assets, "*") {
		endpoints = FilterByAssets(endpoints, f.Assets)
	}
	if len(f.Tiers) > 0 && !slices.Contains(f.Tiers, 0) {
		endpoints = FilterByTiers(endpoints, f.Tiers)
	}
	if f.Path != "" && f.Path != "*" {
		return FilterByPath(endpoints, f.Path)
	}
	return endpoints, nil
}

// Reader reads named objects from the output location.
type Reader interface {
	ReadAll(ctx context.Context, name string) ([]byte, error)
}

// Writer writes named objects to the output location.
type Writer interface {
	StoreBytes(ctx context.Context, name string, data []byte) error
}

// Load reads and decodes the stored endpoints.json.
func Load(ctx context.Context, r Reader) ([]Endpoint, error) {
	data, err := r.ReadAll(ctx, FileName)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Save encodes endpoints and stores them as endpoints.json.
func Save(ctx context.Context, w Writer, endpoints []Endpoint) error {
	data, err := Encode(endpoints)
	if err != nil {
		return err
	}
	return w.StoreBytes(ctx, FileName, data)
}
