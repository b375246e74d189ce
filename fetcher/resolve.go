package fetcher

import (
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/mileusna/useragent"
	"github.com/pkg/errors"

	"github.com/udiddirector/udiddirector/log"
	"github.com/udiddirector/udiddirector/types"
)

// Resolve correlates a device-reported payload with the firmware catalog
// and derives the human-meaningful OS version, signing status and beta
// classification.
//
// A catalog transport failure or non-success response is an error and
// short-circuits resolution. A build id the catalog doesn't know is not an
// error: the version and signing status simply stay null.
func (f *Fetcher) Resolve(payload types.DevicePayload, userAgent string) (types.DeviceIdentity, error) {
	identity := types.DeviceIdentity{
		Model: payload.Product,
		UDID:  payload.UDID,
	}

	results, err := f.config.Catalog.GetDevice(payload.Product)
	if err != nil {
		return identity, errors.Wrap(err, "firmware catalog lookup")
	}

	identity.Name = results.Name
	identity.BoardConfig = results.BoardConfig
	identity.Platform = results.Platform
	identity.CPID = results.CPID
	identity.BDID = results.BDID
	identity.IOS.Build = payload.Version

	if payload.Version != "" {
		if fw := results.FirmwareForBuild(payload.Version); fw != nil {
			identity.IOS.Version = &fw.Version
			identity.IOS.Signed = &fw.Signed
		}
		log.Debugf("Resolved %v build %v for device %v", payload.Product, payload.Version, payload.UDID)
		return identity, nil
	}

	// No build id reported. Fall back to the version the user agent
	// implies and classify it against the catalog's version strings.
	derived := osVersionFromUserAgent(userAgent)
	if derived == "" {
		return identity, nil
	}

	normalized, fixed := normalizeVersion(derived)
	identity.IOS.Version = &normalized
	identity.IOS.FixVersion = fixed

	if _, err := version.NewVersion(normalized); err != nil {
		// Not a parseable version; nothing in the catalog can match it
		identity.IOS.Beta = true
		return identity, nil
	}

	// First catalog entry matching the version string wins
	if fw := results.FirmwareForVersion(normalized); fw != nil {
		identity.IOS.Signed = &fw.Signed
	} else {
		identity.IOS.Beta = true
	}

	return identity, nil
}

// normalizeVersion strips a trailing zero patch component: "16.0.0"
// becomes "16.0". The second return reports whether that happened.
func normalizeVersion(v string) (string, bool) {
	parts := strings.Split(v, ".")
	if len(parts) == 3 && parts[2] == "0" {
		return strings.Join(parts[:2], "."), true
	}
	return v, false
}

// osVersionFromUserAgent pulls the OS version token out of a client user
// agent string, e.g. "16.0.1" from an iPhone Safari user agent.
func osVersionFromUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	return useragent.Parse(ua).OSVersion
}
