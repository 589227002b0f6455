package httpapi

import (
	"net/url"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/pkg/types"
)

// LayerResponse is one layer as rendered to clients
type LayerResponse struct {
	Name       string           `json:"name"`
	Confidence float64          `json:"confidence"`
	Provenance types.Provenance `json:"provenance"`
	URL        string           `json:"url"`
}

// ProcessResponse is the body of a successful POST /process-image
type ProcessResponse struct {
	Layers         []LayerResponse        `json:"layers"`
	RiggedModel    types.RiggedModel      `json:"riggedModel"`
	ProcessingInfo autorig.ProcessingInfo `json:"processingInfo"`
}

func newProcessResponse(res *autorig.Result) ProcessResponse {
	layers := make([]LayerResponse, len(res.Layers))
	for i, l := range res.Layers {
		layers[i] = LayerResponse{
			Name:       l.Name,
			Confidence: l.Confidence,
			Provenance: l.Provenance,
			URL:        layerURL(l.Name),
		}
	}
	return ProcessResponse{
		Layers:         layers,
		RiggedModel:    res.RiggedModel,
		ProcessingInfo: res.ProcessingInfo,
	}
}

// layerURL escapes the name; detector-supplied types may contain '/', '?' or '#'
func layerURL(name string) string {
	return "/processed/" + url.PathEscape(name) + ".png"
}
