package sanity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blacktop/blogrelay/internal/relay"
)

const DefaultCDNBaseURL = "https://cdn.sanity.io"

var dimensionsRe = regexp.MustCompile(`^\d+x\d+$`)

// Assets builds CDN URLs for image asset references.
type Assets struct {
	ProjectID string
	Dataset   string
	CDNBase   string
}

// NewAssets validates the project coordinates used in asset URLs.
func NewAssets(projectID, dataset, cdnBase string) (*Assets, error) {
	var missing []string
	if strings.TrimSpace(projectID) == "" {
		missing = append(missing, "SANITY_PROJECT_ID")
	}
	if strings.TrimSpace(dataset) == "" {
		missing = append(missing, "SANITY_DATASET")
	}
	if len(missing) > 0 {
		return nil, relay.MissingEnvError{Provider: providerName, Variables: missing}
	}
	if cdnBase == "" {
		cdnBase = DefaultCDNBaseURL
	}
	return &Assets{ProjectID: projectID, Dataset: dataset, CDNBase: strings.TrimRight(cdnBase, "/")}, nil
}

// AssetURL turns "image-<id>-<w>x<h>-<ext>" (or "...-<w>x<h>.<ext>") into a fetchable CDN URL.
func (a *Assets) AssetURL(ref string) (string, error) {
	filename, err := assetFilename(ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/images/%s/%s/%s", a.CDNBase, a.ProjectID, a.Dataset, filename), nil
}

func assetFilename(ref string) (string, error) {
	parts := strings.Split(strings.TrimSpace(ref), "-")

	var id, dims, ext string
	switch len(parts) {
	case 4:
		id, dims, ext = parts[1], parts[2], parts[3]
	case 3:
		var ok bool
		id = parts[1]
		dims, ext, ok = strings.Cut(parts[2], ".")
		if !ok {
			return "", invalidRef(ref)
		}
	default:
		return "", invalidRef(ref)
	}

	if parts[0] != "image" || id == "" || ext == "" || !dimensionsRe.MatchString(dims) {
		return "", invalidRef(ref)
	}
	return id + "-" + dims + "." + ext, nil
}

func invalidRef(ref string) error {
	return relay.ValidationError{Provider: providerName, Reason: fmt.Sprintf("malformed image asset reference %q", ref)}
}
