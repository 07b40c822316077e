// Package download reconstructs an EPUB archive from an EPUB published
// unzipped on a web server, one HTTP resource per archive member.
//
// The pipeline walks the standard EPUB discovery chain: mimetype,
// META-INF/container.xml, each rootfile package document, then every file in
// each package's manifest. The fetched bytes are reassembled into a
// compliant container by internal/archive.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/carobo/unzipped-epub-downloader/internal/archive"
	"github.com/carobo/unzipped-epub-downloader/internal/epub"
	"github.com/carobo/unzipped-epub-downloader/internal/fetch"
)

// optionalMetaFiles are OCF descriptors that may or may not exist alongside
// container.xml. They are fetched best-effort: an HTTP error means the file
// is simply left out of the archive.
var optionalMetaFiles = []string{
	"META-INF/encryption.xml",
	"META-INF/manifest.xml",
	"META-INF/metadata.xml",
	"META-INF/rights.xml",
	"META-INF/signatures.xml",
}

// ProgressFunc receives completion estimates in the range 0-100,
// monotonically non-decreasing. The manifest loop covers the bulk of the
// range since that is where nearly all the transfer time goes.
type ProgressFunc func(percent int)

// Options configures a Pipeline.
type Options struct {
	// BaseURL is the root of the unzipped EPUB's file tree. Internal paths
	// are resolved against it by URL joining, so it normally ends in "/".
	BaseURL string

	// OutputPath is where the archive is written. Empty means derive
	// "{title}.epub" from the first rootfile's dc:title.
	OutputPath string

	// Concurrency bounds parallel manifest fetches. Values below 2 fetch
	// sequentially. Archive entry order is by manifest position either way.
	Concurrency int

	// SkipOptional disables the best-effort META-INF descriptor fetches.
	SkipOptional bool

	// Progress, when non-nil, is invoked before each network fetch and once
	// at completion.
	Progress ProgressFunc

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Pipeline orchestrates one download run.
type Pipeline struct {
	opts     Options
	client   *fetch.Client
	logger   *slog.Logger
	lastPct  int
	progress ProgressFunc
}

// NewPipeline creates a download pipeline using client for all fetches.
func NewPipeline(client *fetch.Client, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(int) {}
	}
	return &Pipeline{opts: opts, client: client, logger: logger, progress: progress}
}

// Run executes the full fetch-and-assemble sequence and returns the path of
// the archive it created. Any failure on a required resource aborts the run
// and leaves no output file behind.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	base, err := url.Parse(p.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", p.opts.BaseURL, err)
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("base URL %q is not absolute", p.opts.BaseURL)
	}

	p.lastPct = 0
	p.report(0)
	mimetype, err := p.fetchRelative(ctx, base, "mimetype")
	if err != nil {
		return "", err
	}

	p.report(1)
	containerData, err := p.fetchRelative(ctx, base, epub.ContainerPath)
	if err != nil {
		return "", err
	}
	container, err := epub.ParseContainer(containerData)
	if err != nil {
		return "", err
	}

	entries := []archive.Entry{{Path: epub.ContainerPath, Data: containerData}}

	if !p.opts.SkipOptional {
		optional, err := p.fetchOptional(ctx, base)
		if err != nil {
			return "", err
		}
		entries = append(entries, optional...)
	}

	outPath := p.opts.OutputPath
	for i, rf := range container.Rootfiles {
		p.report(2)

		rootPath, err := epub.ResolveHref("", rf.FullPath)
		if err != nil {
			return "", fmt.Errorf("rootfile full-path: %w", err)
		}
		rootURL, err := epub.ResolveURL(base, rf.FullPath)
		if err != nil {
			return "", err
		}
		rootData, err := p.fetchURL(ctx, rootURL.String())
		if err != nil {
			return "", err
		}
		pkg, err := epub.ParsePackage(rootData)
		if err != nil {
			return "", fmt.Errorf("%s: %w", rootPath, err)
		}
		entries = append(entries, archive.Entry{Path: rootPath, Data: rootData})

		// The first rootfile names the book.
		if i == 0 && outPath == "" {
			title, err := pkg.RequireTitle()
			if err != nil {
				return "", fmt.Errorf("%s: %w", rootPath, err)
			}
			outPath = title + ".epub"
		}

		span := manifestSpan(i, len(container.Rootfiles))
		items, err := p.fetchManifest(ctx, rootPath, rootURL, pkg.Items, span)
		if err != nil {
			return "", err
		}
		entries = append(entries, items...)
	}

	if err := writeArchive(outPath, mimetype, entries); err != nil {
		return "", err
	}

	p.report(100)
	p.logger.Info("created archive", "file", outPath, "entries", len(entries)+1)
	return outPath, nil
}

// fetchManifest downloads every manifest item of one package document.
//
// Two different joins per item, deliberately distinct: the fetch URL resolves
// href against the rootfile's URL, the archive path resolves it against the
// rootfile's path inside the EPUB. Results keep manifest order regardless of
// fetch completion order.
func (p *Pipeline) fetchManifest(ctx context.Context, rootPath string, rootURL *url.URL, items []epub.Item, span progressSpan) ([]archive.Entry, error) {
	entries := make([]archive.Entry, len(items))
	urls := make([]string, len(items))
	for i, item := range items {
		archivePath, err := epub.ResolveHref(rootPath, item.Href)
		if err != nil {
			return nil, fmt.Errorf("manifest item %q: %w", item.ID, err)
		}
		fileURL, err := epub.ResolveURL(rootURL, item.Href)
		if err != nil {
			return nil, fmt.Errorf("manifest item %q: %w", item.ID, err)
		}
		entries[i] = archive.Entry{Path: archivePath}
		urls[i] = fileURL.String()
	}

	if p.opts.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Concurrency)
		for i := range urls {
			i := i
			p.report(span.at(i, len(urls)))
			g.Go(func() error {
				data, err := p.fetchURL(gctx, urls[i])
				if err != nil {
					return err
				}
				entries[i].Data = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return entries, nil
	}

	for i := range urls {
		p.report(span.at(i, len(urls)))
		data, err := p.fetchURL(ctx, urls[i])
		if err != nil {
			return nil, err
		}
		entries[i].Data = data
	}
	return entries, nil
}

// fetchOptional tries the well-known optional OCF descriptors. An HTTP
// status error just means the server does not publish that file; anything
// else (DNS, TLS, timeouts) is still fatal.
func (p *Pipeline) fetchOptional(ctx context.Context, base *url.URL) ([]archive.Entry, error) {
	var entries []archive.Entry
	for _, name := range optionalMetaFiles {
		data, err := p.fetchRelative(ctx, base, name)
		if err != nil {
			var statusErr *fetch.StatusError
			if errors.As(err, &statusErr) {
				p.logger.Debug("optional descriptor not published", "path", name, "status", statusErr.StatusCode)
				continue
			}
			return nil, err
		}
		entries = append(entries, archive.Entry{Path: name, Data: data})
	}
	return entries, nil
}

func (p *Pipeline) fetchRelative(ctx context.Context, base *url.URL, ref string) ([]byte, error) {
	u, err := epub.ResolveURL(base, ref)
	if err != nil {
		return nil, err
	}
	return p.fetchURL(ctx, u.String())
}

func (p *Pipeline) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	p.logger.Debug("fetching", "url", rawURL)
	return p.client.Get(ctx, rawURL)
}

// report forwards pct to the progress callback, clamped so the reported
// sequence never decreases even when rootfile spans overlap.
func (p *Pipeline) report(pct int) {
	if pct < p.lastPct {
		pct = p.lastPct
	}
	p.lastPct = pct
	p.progress(pct)
}

// progressSpan maps one rootfile's manifest loop onto its slice of the 3-93
// progress range.
type progressSpan struct {
	start, width int
}

func manifestSpan(rootfileIndex, rootfileCount int) progressSpan {
	const lo, hi = 3, 93
	width := (hi - lo) / rootfileCount
	return progressSpan{start: lo + rootfileIndex*width, width: width}
}

func (s progressSpan) at(i, n int) int {
	if n == 0 {
		return s.start
	}
	return s.start + i*s.width/n
}

// writeArchive assembles the EPUB on disk atomically: everything goes to a
// temp file in the destination directory, renamed into place only once the
// whole archive is written.
func writeArchive(outPath string, mimetype []byte, entries []archive.Entry) (err error) {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".epub-download-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := archive.NewWriter(tmp)
	if err = w.WriteMimetype(mimetype); err != nil {
		return err
	}
	for _, e := range entries {
		if err = w.WriteEntry(e); err != nil {
			return err
		}
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, outPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
