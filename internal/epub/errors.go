package epub

import "errors"

// Sentinel errors for structural problems in the EPUB descriptors.
var (
	// ErrNoRootfile indicates container.xml has no usable rootfile entry.
	ErrNoRootfile = errors.New("no rootfile found in container.xml")

	// ErrNoTitle indicates the package document has no dc:title element.
	ErrNoTitle = errors.New("no dc:title found in package document")

	// ErrNoHref indicates a manifest item is missing its href attribute.
	ErrNoHref = errors.New("manifest item has no href attribute")

	// ErrUnsafePath indicates a descriptor path would escape the EPUB root
	// (absolute or containing "..") and cannot be used as an archive entry.
	ErrUnsafePath = errors.New("path escapes the EPUB root")
)
