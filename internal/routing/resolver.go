// Package routing resolves which regional API deployment and authentication
// variant a submission targets, based on the locale codes present in the
// originating page path.
package routing

import "strings"

// Region is a geographic deployment of the remote event API.
type Region string

const (
	// RegionUS is the North American deployment (default)
	RegionUS Region = "us"
	// RegionEU is the European deployment
	RegionEU Region = "eu"
	// RegionCA is the Canadian deployment
	RegionCA Region = "ca"
)

// ApiVariant selects one of the two authentication/request shapes supported
// by the remote system.
type ApiVariant string

const (
	// VariantLegacy is the older token flow used by the Canadian data
	// extensions (form-param clientId/clientSecret, accessToken response)
	VariantLegacy ApiVariant = "legacy"
	// VariantEnhanced is the OAuth2 client-credentials flow used everywhere
	// else (grant_type form body, access_token response)
	VariantEnhanced ApiVariant = "enhanced"
)

// euLocaleCodes are the locale path segments that map a page to the EU
// deployment.
var euLocaleCodes = []string{
	"de-at", "en-gb", "en-dk", "nl-nl", "en-fi", "fr-fr", "de-de",
	"it-it", "en-no", "en-se", "fr-ch", "it-ch", "de-ch",
}

// caLocaleCodes are the locale path segments that map a page to the CA
// deployment.
var caLocaleCodes = []string{"en-ca", "fr-ca"}

// Resolve inspects a request context (page path or URL) and selects the
// target region and API variant. Matching is case-insensitive substring
// membership.
//
// Precedence: the CA check runs after the EU check and overrides it, so a
// context containing both an EU code and a CA code resolves to CA. Contexts
// matching neither set default to US.
func Resolve(requestContext string) (Region, ApiVariant) {
	ctx := strings.ToLower(requestContext)

	region := RegionUS
	for _, code := range euLocaleCodes {
		if strings.Contains(ctx, code) {
			region = RegionEU
			break
		}
	}
	// CA wins over EU when both match
	for _, code := range caLocaleCodes {
		if strings.Contains(ctx, code) {
			region = RegionCA
			break
		}
	}

	return region, VariantFor(region)
}

// VariantFor derives the API variant from a region. The Canadian data
// extensions predate the enhanced API and still require the legacy flow.
func VariantFor(region Region) ApiVariant {
	if region == RegionCA {
		return VariantLegacy
	}
	return VariantEnhanced
}
