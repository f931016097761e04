package platform_gateway

import (
	"time"

	"pkgdeploy-cli/domain"
)

// BuiltinDescriptors returns the registry descriptors shipped with the tool.
// They are written out to the descriptor directory on first run so operators
// can inspect and override them.
func BuiltinDescriptors() []*domain.PlatformDescriptor {
	return []*domain.PlatformDescriptor{
		npmDescriptor(),
		pypiDescriptor(),
		cargoDescriptor(),
		dockerhubDescriptor(),
		mavenDescriptor(),
		nugetDescriptor(),
		packagistDescriptor(),
		homebrewDescriptor(),
	}
}

func npmDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "npm",
		Ecosystem:       "javascript",
		RegistryBaseURL: "https://registry.npmjs.org",
		MetadataAPIURL:  "https://registry.npmjs.org/{package}/{version}",
		VersionsAPIURL:  "https://registry.npmjs.org/{package}",
		PackageURL:      "https://www.npmjs.com/package/{package}/v/{version}",
		Tool:            "npm",
		RequiredFiles:   []string{"package.json"},
		OptionalFiles:   []string{"README.md", ".npmignore"},
		VersionLocator: domain.VersionLocator{
			File:  "package.json",
			Field: "version",
		},
		BuildCommand:      "npm pack",
		DeployCommand:     "npm publish --access public",
		DependencyCommand: "npm install --dry-run",
		ArtifactGlobs:     []string{"*.tgz"},
		TokenEnv:          "NPM_TOKEN",
		ConflictPatterns:  []string{"cannot publish over", "previously published", "403 Forbidden"},
		TransientPatterns: []string{"ETIMEDOUT", "ECONNRESET", "socket hang up", "503"},
		AuthScheme:         domain.AuthBearerToken,
		RollbackCapability: domain.RollbackUnpublish,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:    "unpublish",
				Command: "npm unpublish {package}@{version}",
				Timeout: 60 * time.Second,
			},
			{
				Name:                 "deprecate",
				Command:              "npm deprecate {package}@{version} rolled-back",
				Timeout:              60 * time.Second,
				RequiresConfirmation: true,
			},
		},
		RecoveryActions: []domain.RecoveryActionSpec{
			{
				Name:    "restore-latest-tag",
				Command: "npm dist-tag add {package}@{previous_version} latest",
				Timeout: 60 * time.Second,
			},
		},
	}
}

func pypiDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "pypi",
		Ecosystem:       "python",
		RegistryBaseURL: "https://pypi.org",
		MetadataAPIURL:  "https://pypi.org/pypi/{package}/{version}/json",
		VersionsAPIURL:  "https://pypi.org/pypi/{package}/json",
		PackageURL:      "https://pypi.org/project/{package}/{version}/",
		Tool:            "twine",
		RequiredFiles:   []string{"pyproject.toml"},
		OptionalFiles:   []string{"README.md", "setup.cfg"},
		VersionLocator: domain.VersionLocator{
			File:    "pyproject.toml",
			Pattern: `(?m)^version\s*=\s*"([^"]+)"`,
		},
		BuildCommand:  "python -m build",
		DeployCommand: "twine upload dist/*",
		ArtifactGlobs: []string{"dist/*.whl", "dist/*.tar.gz"},
		UsernameEnv:   "TWINE_USERNAME",
		PasswordEnv:   "TWINE_PASSWORD",
		ConflictPatterns:  []string{"File already exists", "400 Bad Request"},
		TransientPatterns: []string{"Connection reset", "timed out", "503 Service Unavailable"},
		AuthScheme:         domain.AuthUserPass,
		RollbackCapability: domain.RollbackYank,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:                 "yank",
				Command:              "pypi-yank {package} {version}",
				Timeout:              60 * time.Second,
				RequiresConfirmation: true,
			},
		},
	}
}

func cargoDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "cargo",
		Ecosystem:       "rust",
		RegistryBaseURL: "https://crates.io",
		MetadataAPIURL:  "https://crates.io/api/v1/crates/{package}/{version}",
		VersionsAPIURL:  "https://crates.io/api/v1/crates/{package}/versions",
		PackageURL:      "https://crates.io/crates/{package}/{version}",
		Tool:            "cargo",
		RequiredFiles:   []string{"Cargo.toml"},
		OptionalFiles:   []string{"Cargo.lock", "README.md"},
		VersionLocator: domain.VersionLocator{
			File:    "Cargo.toml",
			Pattern: `(?m)^version\s*=\s*"([^"]+)"`,
		},
		BuildCommand:      "cargo package --allow-dirty",
		DeployCommand:     "cargo publish --allow-dirty",
		DependencyCommand: "cargo tree",
		ArtifactGlobs:     []string{"target/package/*.crate"},
		TokenEnv:          "CARGO_REGISTRY_TOKEN",
		ConflictPatterns:  []string{"already exists", "crate version"},
		TransientPatterns: []string{"connection reset", "timed out", "spurious network error"},
		AuthScheme:         domain.AuthBearerToken,
		RollbackCapability: domain.RollbackYank,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:    "yank",
				Command: "cargo yank --version {version} {package}",
				Timeout: 60 * time.Second,
			},
		},
	}
}

func dockerhubDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "dockerhub",
		Ecosystem:       "container",
		RegistryBaseURL: "https://hub.docker.com",
		MetadataAPIURL:  "https://hub.docker.com/v2/repositories/{package}/tags/{version}",
		VersionsAPIURL:  "https://hub.docker.com/v2/repositories/{package}/tags",
		PackageURL:      "https://hub.docker.com/r/{package}/tags",
		Tool:            "docker",
		RequiredFiles:   []string{"Dockerfile"},
		VersionLocator: domain.VersionLocator{
			File:    "Dockerfile",
			Pattern: `(?m)LABEL\s+version="([^"]+)"`,
		},
		BuildCommand:  "docker build -t {package}:{version} .",
		DeployCommand: "docker push {package}:{version}",
		UsernameEnv:   "DOCKER_USERNAME",
		PasswordEnv:   "DOCKER_PASSWORD",
		ConflictPatterns:  []string{"tag is immutable"},
		TransientPatterns: []string{"i/o timeout", "connection refused", "received unexpected HTTP status: 5"},
		AuthScheme:         domain.AuthUserPass,
		RollbackCapability: domain.RollbackRetagImage,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:    "retag-previous",
				Command: "docker tag {package}:{previous_version} {package}:latest",
				Timeout: 60 * time.Second,
			},
		},
		RecoveryActions: []domain.RecoveryActionSpec{
			{
				Name:    "push-restored-latest",
				Command: "docker push {package}:latest",
				Timeout: 300 * time.Second,
			},
		},
	}
}

func mavenDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "maven",
		Ecosystem:       "java",
		RegistryBaseURL: "https://repo1.maven.org/maven2",
		MetadataAPIURL:  "https://search.maven.org/solrsearch/select?q={package}&rows=1&wt=json",
		Tool:            "mvn",
		RequiredFiles:   []string{"pom.xml"},
		VersionLocator: domain.VersionLocator{
			File:    "pom.xml",
			Pattern: `<version>([^<]+)</version>`,
		},
		BuildCommand:  "mvn package -DskipTests=false",
		DeployCommand: "mvn deploy",
		ArtifactGlobs: []string{"target/*.jar"},
		UsernameEnv:   "MAVEN_USERNAME",
		PasswordEnv:   "MAVEN_PASSWORD",
		TransientPatterns:  []string{"Connection timed out", "Transfer failed", "502"},
		AuthScheme:         domain.AuthUserPass,
		RollbackCapability: domain.RollbackNone,
	}
}

func nugetDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "nuget",
		Ecosystem:       "dotnet",
		RegistryBaseURL: "https://api.nuget.org",
		MetadataAPIURL:  "https://api.nuget.org/v3/registration5-semver1/{package}/{version}.json",
		VersionsAPIURL:  "https://api.nuget.org/v3-flatcontainer/{package}/index.json",
		PackageURL:      "https://www.nuget.org/packages/{package}/{version}",
		Tool:            "dotnet",
		RequiredFiles:   []string{"*.csproj"},
		VersionLocator: domain.VersionLocator{
			File:    "Directory.Build.props",
			Pattern: `<Version>([^<]+)</Version>`,
		},
		BuildCommand:  "dotnet pack -c Release",
		DeployCommand: "dotnet nuget push bin/Release/*.nupkg --source https://api.nuget.org/v3/index.json",
		ArtifactGlobs: []string{"bin/Release/*.nupkg"},
		TokenEnv:      "NUGET_API_KEY",
		ConflictPatterns:  []string{"409", "already exists"},
		TransientPatterns: []string{"timed out", "503"},
		AuthScheme:         domain.AuthBearerToken,
		RollbackCapability: domain.RollbackYank,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:    "delist",
				Command: "dotnet nuget delete {package} {version} --source https://api.nuget.org/v3/index.json --non-interactive",
				Timeout: 60 * time.Second,
			},
		},
	}
}

func packagistDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "packagist",
		Ecosystem:       "php",
		RegistryBaseURL: "https://packagist.org",
		MetadataAPIURL:  "https://repo.packagist.org/p2/{package}.json",
		PackageURL:      "https://packagist.org/packages/{package}#{version}",
		Tool:            "composer",
		RequiredFiles:   []string{"composer.json"},
		VersionLocator: domain.VersionLocator{
			File:  "composer.json",
			Field: "version",
		},
		DeployCommand:     "composer-publish {package} {version}",
		DependencyCommand: "composer validate --strict",
		TokenEnv:          "PACKAGIST_TOKEN",
		TransientPatterns:  []string{"timed out", "502", "503"},
		AuthScheme:         domain.AuthBearerToken,
		RollbackCapability: domain.RollbackNone,
	}
}

func homebrewDescriptor() *domain.PlatformDescriptor {
	return &domain.PlatformDescriptor{
		Name:            "homebrew",
		Ecosystem:       "macos",
		RegistryBaseURL: "https://formulae.brew.sh",
		MetadataAPIURL:  "https://formulae.brew.sh/api/formula/{package}.json",
		Tool:            "brew",
		RequiredFiles:   []string{"Formula/*.rb"},
		VersionLocator: domain.VersionLocator{
			File:    "Formula/formula.rb",
			Pattern: `version\s+"([^"]+)"`,
		},
		BuildCommand:  "brew audit --strict",
		DeployCommand: "brew-tap-push {package} {version}",
		AuthScheme:         domain.AuthConfigFile,
		RollbackCapability: domain.RollbackTagRewrite,
		RollbackMethods: []domain.RollbackMethod{
			{
				Name:    "revert-formula",
				Command: "brew-tap-revert {package} {previous_version}",
				Timeout: 60 * time.Second,
			},
		},
	}
}
