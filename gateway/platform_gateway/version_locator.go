package platform_gateway

import (
	"fmt"
	"regexp"
	"strings"

	"pkgdeploy-cli/domain"
)

// locatorRegexp compiles the pattern that finds the version in a manifest.
// For Field locators a targeted expression is built that keeps the
// manifest's formatting intact instead of re-marshalling the whole file.
func locatorRegexp(locator domain.VersionLocator) (*regexp.Regexp, error) {
	if locator.Pattern != "" {
		re, err := regexp.Compile(locator.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid version_locator pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("version_locator pattern needs a capture group around the version")
		}
		return re, nil
	}
	if locator.Field == "" {
		return nil, fmt.Errorf("version_locator needs a field or a pattern")
	}
	// JSON-style "field": "value"
	return regexp.Compile(`"` + regexp.QuoteMeta(locator.Field) + `"\s*:\s*"([^"]+)"`)
}

// ReadVersion extracts the current version from manifest content
func ReadVersion(locator domain.VersionLocator, content []byte) (string, error) {
	re, err := locatorRegexp(locator)
	if err != nil {
		return "", err
	}
	match := re.FindSubmatch(content)
	if match == nil {
		return "", fmt.Errorf("no version found in %s", locator.File)
	}
	version := strings.TrimSpace(string(match[1]))
	if version == "" {
		return "", fmt.Errorf("empty version in %s", locator.File)
	}
	return version, nil
}

// WriteVersion replaces the version in manifest content in place,
// preserving surrounding formatting
func WriteVersion(locator domain.VersionLocator, content []byte, version string) ([]byte, error) {
	re, err := locatorRegexp(locator)
	if err != nil {
		return nil, err
	}
	loc := re.FindSubmatchIndex(content)
	if loc == nil {
		return nil, fmt.Errorf("no version found in %s", locator.File)
	}
	// loc[2]:loc[3] is the capture group holding the version
	var out []byte
	out = append(out, content[:loc[2]]...)
	out = append(out, version...)
	out = append(out, content[loc[3]:]...)
	return out, nil
}
