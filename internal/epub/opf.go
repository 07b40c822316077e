package epub

import (
	"fmt"
	"strings"
)

// Package is the parsed OPF package document: the metadata this tool needs
// plus the manifest in document order.
type Package struct {
	Title string
	Items []Item
}

// Item is a manifest <item> element. Href is kept exactly as written in the
// document; resolving it against the package location is the caller's job.
type Item struct {
	ID        string
	Href      string
	MediaType string
}

// opfPackage models the OPF XML structure.
type opfPackage struct {
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
}

// opfMetadata holds the Dublin Core elements read from the metadata section.
type opfMetadata struct {
	Title []string `xml:"http://purl.org/dc/elements/1.1/ title"`
}

// opfManifest represents the manifest section.
type opfManifest struct {
	Items []opfItem `xml:"item"`
}

// opfItem is an item in the manifest. Href uses a pointer so a missing
// attribute is distinguishable from an empty one.
type opfItem struct {
	ID        string  `xml:"id,attr"`
	Href      *string `xml:"href,attr"`
	MediaType string  `xml:"media-type,attr"`
}

// ParsePackage parses an OPF package document, preserving manifest order.
// A manifest item without an href attribute yields ErrNoHref. A package
// without a dc:title is allowed here and only rejected by callers that need
// the title (see Package.RequireTitle).
func ParsePackage(content []byte) (*Package, error) {
	var pkg opfPackage
	if err := decodeXML(content, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}

	p := &Package{}

	// Title (use first one)
	if len(pkg.Metadata.Title) > 0 {
		p.Title = strings.TrimSpace(pkg.Metadata.Title[0])
	}

	for i, item := range pkg.Manifest.Items {
		if item.Href == nil {
			return nil, fmt.Errorf("manifest item %d (id=%q): %w", i, item.ID, ErrNoHref)
		}
		p.Items = append(p.Items, Item{
			ID:        item.ID,
			Href:      *item.Href,
			MediaType: item.MediaType,
		})
	}

	return p, nil
}

// RequireTitle returns the package title or ErrNoTitle when absent.
func (p *Package) RequireTitle() (string, error) {
	if p.Title == "" {
		return "", ErrNoTitle
	}
	return p.Title, nil
}
