package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/marmos91/regsweep/internal/logger"
)

// PackageVersion is one container package version as the ledger records it.
// Name carries the content digest; tags live under the container metadata.
type PackageVersion struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	URL            string          `json:"url,omitempty"`
	PackageHTMLURL string          `json:"package_html_url,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
	Metadata       VersionMetadata `json:"metadata"`
}

// VersionMetadata wraps the package-type specific metadata of a version.
type VersionMetadata struct {
	PackageType string            `json:"package_type"`
	Container   ContainerMetadata `json:"container"`
}

// ContainerMetadata holds the tags attached to a container version.
type ContainerMetadata struct {
	Tags []string `json:"tags"`
}

// Digest returns the version's content digest.
func (v *PackageVersion) Digest() digest.Digest {
	return digest.Digest(v.Name)
}

// Tags returns the tags attached to the version.
func (v *PackageVersion) Tags() []string {
	return v.Metadata.Container.Tags
}

// Package is the container package the versions belong to.
type Package struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PackageType  string    `json:"package_type"`
	VersionCount int       `json:"version_count"`
	Visibility   string    `json:"visibility,omitempty"`
	HTMLURL      string    `json:"html_url,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// packagePath returns the API path of a container package. Package names
// may contain slashes, which the API expects percent-encoded.
func (c *Client) packagePath(owner, pkg string) string {
	root := "users"
	if c.ownerKind == OwnerOrg {
		root = "orgs"
	}
	return fmt.Sprintf("/%s/%s/packages/container/%s", root, url.PathEscape(owner), url.PathEscape(pkg))
}

// GetPackage returns the container package itself, with its version count.
func (c *Client) GetPackage(ctx context.Context, owner, pkg string) (*Package, error) {
	var p Package
	if err := c.get(ctx, c.packagePath(owner, pkg), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListVersionsPage returns one page of versions, most recent first. Pages
// are numbered from 1; a short or empty page is the last one.
func (c *Client) ListVersionsPage(ctx context.Context, owner, pkg string, page int) ([]PackageVersion, error) {
	query := url.Values{
		"per_page": []string{strconv.Itoa(c.pageSize)},
		"page":     []string{strconv.Itoa(page)},
	}
	var versions []PackageVersion
	if err := c.get(ctx, c.packagePath(owner, pkg)+"/versions", query, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// EachVersion enumerates every version of owner/pkg, page by page, calling
// fn for each record in enumeration order. The walk is one pass: an error
// from fn or from a page fetch stops it and is returned as-is.
func (c *Client) EachVersion(ctx context.Context, owner, pkg string, fn func(PackageVersion) error) error {
	for page := 1; ; page++ {
		versions, err := c.ListVersionsPage(ctx, owner, pkg, page)
		if err != nil {
			return fmt.Errorf("list versions page %d: %w", page, err)
		}
		logger.Debug("fetched version page",
			logger.KeyPage, page,
			logger.KeyVersions, len(versions))

		for _, v := range versions {
			if err := fn(v); err != nil {
				return err
			}
		}
		if len(versions) < c.pageSize {
			return nil
		}
	}
}

// DeleteVersion deletes one package version by its ledger id.
func (c *Client) DeleteVersion(ctx context.Context, owner, pkg string, id int64) error {
	return c.delete(ctx, fmt.Sprintf("%s/versions/%d", c.packagePath(owner, pkg), id))
}
