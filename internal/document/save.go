package document

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strconv"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/storage"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

// MimeType is the first, uncompressed entry of a .fla archive.
const MimeType = "application/vnd.adobe.xfl"

// sections the document encoder writes itself.
var modeled = map[string]bool{
	"folders":   true,
	"media":     true,
	"symbols":   true,
	"timelines": true,
}

type packageFile struct {
	path string
	data []byte
}

// Encode renders DOMDocument.xml.
func (d *Document) Encode() ([]byte, error) {
	out := xmltree.New()
	root := out.NewElement("DOMDocument")
	if d.src != nil {
		out.CopyAttrs(root, d.src, d.node)
	} else {
		out.SetAttr(root, "xmlns:xsi", library.NamespaceXSI)
		out.SetAttr(root, "xmlns", library.NamespaceXFL)
	}
	out.SetAttr(root, "frameRate", strconv.FormatFloat(d.FrameRate, 'f', -1, 64))
	out.SetAttr(root, "width", strconv.Itoa(d.Width))
	out.SetAttr(root, "height", strconv.Itoa(d.Height))
	out.SetAttr(root, "currentTimeline", strconv.Itoa(d.current+1))

	d.Library.Encode(out, root)
	holder := out.AddChild(root, "timelines")
	for _, tl := range d.Timelines {
		out.Append(holder, tl.Encode(out))
	}
	for _, c := range d.src.Children(d.node) {
		if !modeled[d.src.Name(c)] {
			out.Append(root, out.CopySubtree(d.src, c))
		}
	}
	b, err := out.Bytes()
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return b, nil
}

// descriptors renders DOMDocument.xml and every symbol descriptor.
func (d *Document) descriptors() ([]packageFile, error) {
	doc, err := d.Encode()
	if err != nil {
		return nil, err
	}
	files := []packageFile{{path: DocumentFile, data: doc}}
	for s := range d.Library.Symbols() {
		b, err := library.EncodeSymbol(s).Bytes()
		if err != nil {
			return nil, fmt.Errorf("document: encode %q: %w", s.Name(), err)
		}
		files = append(files, packageFile{path: library.FilePath(s), data: b})
	}
	return files, nil
}

// mediaBytes returns the content of a bitmap or sound item from the library
// store or the package the document was read from.
func (d *Document) mediaBytes(it library.Item) ([]byte, error) {
	p := library.FilePath(it)
	if st := d.Library.Store(); st != nil && st.Exists(p) {
		return st.Read(p)
	}
	if d.pkg != nil {
		return fs.ReadFile(d.pkg, p)
	}
	return nil, fmt.Errorf("document: media %q: %w", it.Name(), fs.ErrNotExist)
}

func (d *Document) media(yield func(library.Item, []byte) error) error {
	for it := range d.Library.All() {
		k := it.Kind()
		if k != library.KindBitmap && k != library.KindSound {
			continue
		}
		data, err := d.mediaBytes(it)
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("document: media file missing", slog.String("item", it.Name()))
			continue
		}
		if err != nil {
			return fmt.Errorf("document: media %q: %w: %w", it.Name(), apperr.ErrIO, err)
		}
		if err := yield(it, data); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the document as an XFL folder through store. Media already in
// store is left alone; media only present in the source package is copied.
func (d *Document) Save(store storage.Provider) error {
	files, err := d.descriptors()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := store.Write(f.path, f.data); err != nil {
			return fmt.Errorf("document: save: %w", err)
		}
	}
	return d.media(func(it library.Item, data []byte) error {
		p := library.FilePath(it)
		if store.Exists(p) {
			return nil
		}
		if err := store.Write(p, data); err != nil {
			return fmt.Errorf("document: save: %w", err)
		}
		return nil
	})
}

// SaveFLA writes the document as a .fla archive.
func (d *Document) SaveFLA(w io.Writer) error {
	files, err := d.descriptors()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("document: fla: %w", err)
	}
	if _, err := io.WriteString(mt, MimeType); err != nil {
		return fmt.Errorf("document: fla: %w", err)
	}
	write := func(name string, data []byte) error {
		fw, err := zw.Create(path.Clean(name))
		if err != nil {
			return fmt.Errorf("document: fla %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("document: fla %s: %w", name, err)
		}
		return nil
	}
	for _, f := range files {
		if err := write(f.path, f.data); err != nil {
			return err
		}
	}
	err = d.media(func(it library.Item, data []byte) error {
		return write(library.FilePath(it), data)
	})
	if err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("document: fla: %w", err)
	}
	return nil
}

// Walk visits every keyframe element of the document timelines and of every
// symbol timeline.
func (d *Document) Walk(fn func(tl *timeline.Timeline, f *timeline.Frame, e timeline.Element) bool) {
	visit := func(tl *timeline.Timeline) bool {
		cont := true
		tl.Walk(func(f *timeline.Frame, e timeline.Element) bool {
			cont = fn(tl, f, e)
			return cont
		})
		return cont
	}
	for _, tl := range d.Timelines {
		if !visit(tl) {
			return
		}
	}
	for s := range d.Library.Symbols() {
		if !visit(s.Timeline) {
			return
		}
	}
}
