package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	rawHTMLFile    = "raw_html.json"
	outLinksFile   = "out_links.json"
	inLinksFile    = "in_links.json"
	crawledFile    = "crawled_links.txt"
	discoveredFile = "all_links.txt"
	docsDir        = "docs"
)

// FileSink writes the crawl into a directory:
//
//	docs/document_<n>.txt   one AP-style document per page
//	raw_html.json           {"url": "html"} per line
//	out_links.json          {"url": [links]} per line
//	in_links.json           {"url": [links]} per line, written at the end
//	crawled_links.txt       one URL per line, written at the end
//	all_links.txt           one URL per line, written at the end
type FileSink struct {
	mu       sync.Mutex
	dir      string
	rawHTML  *os.File
	outLinks *os.File
}

// OpenFiles prepares dir, truncating output from a previous run. Documents
// left in docs/ are removed.
func OpenFiles(dir string) (*FileSink, error) {
	if err := os.RemoveAll(filepath.Join(dir, docsDir)); err != nil {
		return nil, fmt.Errorf("reset %s: %w", docsDir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, docsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	for _, name := range []string{inLinksFile, crawledFile, discoveredFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reset %s: %w", name, err)
		}
	}

	s := &FileSink{dir: dir}
	var err error
	if s.rawHTML, err = os.Create(filepath.Join(dir, rawHTMLFile)); err != nil {
		return nil, fmt.Errorf("open %s: %w", rawHTMLFile, err)
	}
	if s.outLinks, err = os.Create(filepath.Join(dir, outLinksFile)); err != nil {
		s.rawHTML.Close()
		return nil, fmt.Errorf("open %s: %w", outLinksFile, err)
	}
	return s, nil
}

func (s *FileSink) WriteDocument(_ context.Context, doc Document) error {
	header, err := json.Marshal(doc.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	var b strings.Builder
	b.WriteString("<DOC>\n")
	fmt.Fprintf(&b, "<DOCNO>%s</DOCNO>\n", doc.URL)
	if doc.Title != "" {
		fmt.Fprintf(&b, "<HEAD>%s</HEAD>\n", doc.Title)
	}
	fmt.Fprintf(&b, "<HEADER>%s</HEADER>\n", header)
	b.WriteString("<TEXT>\n")
	b.WriteString(doc.Text)
	b.WriteString("\n</TEXT>\n")
	b.WriteString("</DOC>\n")

	path := filepath.Join(s.dir, docsDir, fmt.Sprintf("document_%d.txt", doc.ID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write document %d: %w", doc.ID, err)
	}
	return nil
}

func (s *FileSink) WriteRawHTML(_ context.Context, page RawPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONLine(s.rawHTML, map[string]string{page.URL: page.HTML})
}

func (s *FileSink) WriteOutLinks(_ context.Context, links LinkSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONLine(s.outLinks, linkMap(links))
}

func (s *FileSink) WriteInLinks(_ context.Context, sets []LinkSet) error {
	return s.appendFile(inLinksFile, func(w *bufio.Writer) error {
		for _, set := range sets {
			if err := writeJSONLine(w, linkMap(set)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *FileSink) WriteCrawled(_ context.Context, urls []string) error {
	return s.appendFile(crawledFile, writeLines(urls))
}

func (s *FileSink) WriteDiscovered(_ context.Context, urls []string) error {
	return s.appendFile(discoveredFile, writeLines(urls))
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.rawHTML.Close(), s.outLinks.Close())
}

// --- helpers -------------------------------------------------------------

func (s *FileSink) appendFile(name string, fn func(*bufio.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return f.Close()
}

func writeLines(lines []string) func(*bufio.Writer) error {
	return func(w *bufio.Writer) error {
		for _, l := range lines {
			if _, err := w.WriteString(l + "\n"); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func linkMap(set LinkSet) map[string][]string {
	links := set.Links
	if links == nil {
		links = []string{}
	}
	return map[string][]string{set.URL: links}
}
