package release

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TagPlaceholder is substituted with the tag in download URL templates.
const TagPlaceholder = "{tag}"

var (
	errEmptyTag        = errors.New("tag is empty")
	errTagPrefix       = errors.New("tag does not start with the tool prefix")
	errNoPlaceholder   = errors.New("download template has no " + TagPlaceholder + " placeholder")
	errInvalidArtifact = errors.New("download URL is invalid")
)

// Tag identifies a published version, e.g. GE-Proton9-22.
type Tag string

// NewTag validates name against the tool family prefix.
func NewTag(name, prefix string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %w", ErrResolution, errEmptyTag)
	}

	if !strings.HasPrefix(name, prefix) {
		return "", fmt.Errorf("%w: %w: %q (prefix %q)", ErrResolution, errTagPrefix, name, prefix)
	}

	return Tag(name), nil
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	return string(t)
}

// Artifact pairs a tag with the URL of its archive.
type Artifact struct {
	// Tag is the release the archive belongs to.
	Tag Tag
	// URL is where the archive is downloaded from. It is never probed up front.
	URL string
}

// FileName returns the last path segment of the artifact URL.
func (a *Artifact) FileName() string {
	parsed, err := url.Parse(a.URL)
	if err != nil || parsed.Path == "" {
		return a.Tag.String()
	}

	name := parsed.Path[strings.LastIndex(parsed.Path, "/")+1:]
	if name == "" {
		return a.Tag.String()
	}

	return name
}

// NewArtifact builds the artifact reference by substituting the tag into template.
func NewArtifact(tag Tag, template string) (*Artifact, error) {
	if !strings.Contains(template, TagPlaceholder) {
		return nil, errNoPlaceholder
	}

	raw := strings.ReplaceAll(template, TagPlaceholder, url.PathEscape(tag.String()))
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidArtifact, err)
	}

	return &Artifact{
		Tag: tag,
		URL: raw,
	}, nil
}

// ValidateTemplate reports whether template can produce download URLs.
func ValidateTemplate(template string) error {
	_, err := NewArtifact("probe", template)

	return err
}
