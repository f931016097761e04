package registry_gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/port/logger_port"
	"pkgdeploy-cli/port/registry_port"
)

// RegistryGateway talks to registry public metadata APIs over HTTP.
// It performs reads only; publishing goes through the platform tools.
type RegistryGateway struct {
	client *http.Client
	logger logger_port.LoggerPort
}

// Ensure RegistryGateway implements RegistryPort interface
var _ registry_port.RegistryPort = (*RegistryGateway)(nil)

// NewRegistryGateway creates a new registry gateway
func NewRegistryGateway(logger logger_port.LoggerPort) *RegistryGateway {
	return &RegistryGateway{
		client: &http.Client{},
		logger: logger,
	}
}

// FetchMetadata queries the metadata endpoint for one package version.
// 404 means the version is not (yet) visible and is not an error.
func (g *RegistryGateway) FetchMetadata(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) (*domain.VerifyResult, error) {
	url := desc.MetadataURL(pkg, version)

	body, status, err := g.get(ctx, url, desc.MetadataTimeout)
	checked := time.Now().UTC()
	if err != nil {
		return nil, domain.NewAdapterError(desc.Name, "verify", domain.CodeTransient,
			fmt.Sprintf("metadata request failed: %v", err), err)
	}

	switch {
	case status == http.StatusNotFound:
		return &domain.VerifyResult{Present: false, CheckedAt: checked}, nil
	case status >= 500:
		return nil, domain.NewAdapterError(desc.Name, "verify", domain.CodeTransient,
			fmt.Sprintf("metadata endpoint returned %d", status), nil)
	case status >= 400:
		return nil, domain.NewAdapterError(desc.Name, "verify", domain.CodeNotFound,
			fmt.Sprintf("metadata endpoint returned %d", status), nil)
	}

	metadata := make(map[string]interface{})
	if err := json.Unmarshal(body, &metadata); err != nil {
		// Some registries answer with non-JSON bodies (e.g. HEAD-style
		// checks); presence is still established by the 200.
		metadata = nil
	}

	return &domain.VerifyResult{
		Present:   true,
		Yanked:    yankedFromMetadata(metadata),
		Metadata:  metadata,
		CheckedAt: checked,
	}, nil
}

// yankedFromMetadata detects yank markers across registry dialects
func yankedFromMetadata(metadata map[string]interface{}) bool {
	if metadata == nil {
		return false
	}
	for _, key := range []string{"yanked", "unlisted", "deprecated"} {
		if value, ok := metadata[key].(bool); ok && value {
			return true
		}
	}
	if version, ok := metadata["version"].(map[string]interface{}); ok {
		if value, ok := version["yanked"].(bool); ok && value {
			return true
		}
	}
	return false
}

// ListVersions returns the package's published versions. The parser is
// tolerant across registry dialects: a "versions" object keyed by version
// (npm, pypi), a "versions" array of objects (crates.io), or a plain array.
func (g *RegistryGateway) ListVersions(ctx context.Context, desc *domain.PlatformDescriptor, pkg string) ([]string, error) {
	url := desc.VersionsAPIURL
	if url == "" {
		url = desc.MetadataAPIURL
	}
	url = domain.ExpandURL(url, pkg, "")

	body, status, err := g.get(ctx, url, desc.MetadataTimeout)
	if err != nil {
		return nil, fmt.Errorf("version list request failed for %s: %w", desc.Name, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("version list for %s returned %d", desc.Name, status)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("version list for %s is not valid JSON: %w", desc.Name, err)
	}

	versions := parseVersions(doc)
	if len(versions) == 0 {
		return nil, fmt.Errorf("no versions found for %s on %s", pkg, desc.Name)
	}
	return versions, nil
}

func parseVersions(doc map[string]interface{}) []string {
	var versions []string

	switch raw := doc["versions"].(type) {
	case map[string]interface{}:
		for version := range raw {
			versions = append(versions, version)
		}
		sort.Strings(versions)
	case []interface{}:
		for _, entry := range raw {
			switch v := entry.(type) {
			case string:
				versions = append(versions, v)
			case map[string]interface{}:
				for _, key := range []string{"num", "version", "name"} {
					if s, ok := v[key].(string); ok {
						versions = append(versions, s)
						break
					}
				}
			}
		}
	}

	// crates.io lists newest first; normalize to oldest first
	if len(versions) > 1 {
		if _, isArray := doc["versions"].([]interface{}); isArray {
			for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
				versions[i], versions[j] = versions[j], versions[i]
			}
		}
	}
	return versions
}

// HealthCheck probes the registry health endpoint. It is advisory: a down
// registry is warned about but deploys still proceed unless strict health
// checking was requested.
func (g *RegistryGateway) HealthCheck(ctx context.Context, desc *domain.PlatformDescriptor) *domain.HealthStatus {
	status := &domain.HealthStatus{
		Platform:  desc.Name,
		CheckedAt: time.Now().UTC(),
	}

	_, code, err := g.get(ctx, desc.HealthURL, desc.MetadataTimeout)
	switch {
	case err != nil:
		status.State = domain.HealthDown
		status.Detail = err.Error()
	case code >= 500:
		status.State = domain.HealthDown
		status.Detail = fmt.Sprintf("status %d", code)
	case code == http.StatusTooManyRequests:
		status.State = domain.HealthDegraded
		status.Detail = "rate limited"
	case code >= 400:
		status.State = domain.HealthDegraded
		status.Detail = fmt.Sprintf("status %d", code)
	default:
		status.State = domain.HealthOK
	}

	g.logger.DebugWithContext("registry health check", map[string]interface{}{
		"platform": desc.Name,
		"state":    string(status.State),
		"detail":   status.Detail,
	})
	return status
}

// Snapshot captures the registry's current view of a package for auditing
func (g *RegistryGateway) Snapshot(ctx context.Context, desc *domain.PlatformDescriptor, pkg, version string) domain.PlatformSnapshot {
	snapshot := domain.PlatformSnapshot{
		Platform:   desc.Name,
		CapturedAt: time.Now().UTC(),
	}

	versions, err := g.ListVersions(ctx, desc, pkg)
	if err != nil {
		snapshot.Error = err.Error()
	} else {
		snapshot.Versions = versions
		snapshot.LatestVersion = versions[len(versions)-1]
		for _, v := range versions {
			if v == version {
				snapshot.TargetPresent = true
				break
			}
		}
	}
	return snapshot
}

// get issues one bounded GET and returns body and status
func (g *RegistryGateway) get(ctx context.Context, url string, timeout time.Duration) ([]byte, int, error) {
	if timeout == 0 {
		timeout = domain.DefaultMetadataTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := readBounded(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
