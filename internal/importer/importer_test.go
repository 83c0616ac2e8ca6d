package importer_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/importer"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/testutil"
	"github.com/starford/xflkit/internal/timeline"
)

const sourceDoc = `<DOMDocument xmlns="http://ns.adobe.com/xfl/2008/">
  <folders>
    <DOMFolderItem name="Props"/>
    <DOMFolderItem name="Cycle"/>
  </folders>
  <media>
    <DOMBitmapItem name="Props/face.png" href="face.png"/>
    <DOMSoundItem name="hit.wav" href="hit.wav"/>
  </media>
  <symbols>
    <Include href="Props/Ball.xml"/>
    <Include href="Props/Box.xml"/>
    <Include href="Cycle/A.xml"/>
    <Include href="Cycle/B.xml"/>
    <Include href="Orphan.xml"/>
    <Include href="Gone.xml"/>
    <Include href="Broken.xml"/>
  </symbols>
</DOMDocument>`

// symbolXML returns a descriptor whose single frame holds the given
// elements and sound.
func symbolXML(name, sound, elements string) string {
	return `<DOMSymbolItem name="` + name + `"><timeline><DOMTimeline name="t"><layers><DOMLayer name="L"><frames>` +
		`<DOMFrame index="0" soundName="` + sound + `"><elements>` + elements + `</elements></DOMFrame>` +
		`</frames></DOMLayer></layers></DOMTimeline></timeline></DOMSymbolItem>`
}

func bitmap(name string) string { return `<DOMBitmapInstance libraryItemName="` + name + `"/>` }
func symbol(name string) string { return `<DOMSymbolInstance libraryItemName="` + name + `"/>` }

func sourcePackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"DOMDocument.xml":        sourceDoc,
		"LIBRARY/face.png":       "png",
		"LIBRARY/hit.wav":        "wav",
		"LIBRARY/Props/Ball.xml": symbolXML("Props/Ball", "", bitmap("Props/face.png")+symbol("Props/Box")),
		"LIBRARY/Props/Box.xml":  symbolXML("Props/Box", "hit.wav", ""),
		"LIBRARY/Cycle/A.xml":    symbolXML("Cycle/A", "", symbol("Cycle/B")),
		"LIBRARY/Cycle/B.xml":    symbolXML("Cycle/B", "", symbol("Cycle/A")),
		"LIBRARY/Orphan.xml":     symbolXML("Orphan", "", bitmap("Props/face.png")+bitmap("ghost.png")),
		"LIBRARY/Broken.xml": `<DOMSymbolItem name="Broken"><timeline><DOMTimeline name="t"><layers><DOMLayer name="L"><frames>` +
			`<DOMFrame index="x"><elements>` + bitmap("Props/face.png") + `</elements></DOMFrame>` +
			`</frames></DOMLayer></layers></DOMTimeline></timeline></DOMSymbolItem>`,
	}
	for rel, content := range files {
		testutil.WriteFile(t, dir, rel, content)
	}
	return dir
}

func TestImport_Closure(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	plan, err := importer.New().Import(src, "Props/Ball", dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := []string{"Props/face.png", "hit.wav", "Props/Box", "Props/Ball"}
	if got := plan.Names(); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for _, name := range append(want, "Props") {
		if !dst.ItemExists(name) {
			t.Errorf("%s not imported", name)
		}
	}

	// Imported references are bound in the destination.
	if err := dst.RenameItem("Props/Box", "Props/Crate"); err != nil {
		t.Fatal(err)
	}
	ball, _ := dst.Item("Props/Ball")
	f, _ := ball.(*library.SymbolItem).Timeline.Layers()[0].GetFrame(0)
	if got := f.Elements[1].(*timeline.SymbolInstance).LibraryItemName; got != "Props/Crate" {
		t.Errorf("reference = %q", got)
	}
}

func TestImport_SkipsExisting(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	wav := testutil.WriteFile(t, t.TempDir(), "hit.wav", "mine")
	if _, err := dst.ImportItem(wav); err != nil {
		t.Fatal(err)
	}
	plan, err := importer.New().Import(src, "Props/Box", dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !slices.Equal(plan.Names(), []string{"Props/Box"}) || !slices.Equal(plan.Skipped, []string{"hit.wav"}) {
		t.Errorf("plan = %v, skipped %v", plan.Names(), plan.Skipped)
	}
}

func TestImport_Cycle(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	plan, err := importer.New().Import(src, "Cycle/A", dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !slices.Equal(plan.Names(), []string{"Cycle/B", "Cycle/A"}) {
		t.Errorf("order = %v", plan.Names())
	}
	if err := dst.RenameItem("Cycle/A", "Cycle/First"); err != nil {
		t.Fatal(err)
	}
	b, _ := dst.Item("Cycle/B")
	f, _ := b.(*library.SymbolItem).Timeline.Layers()[0].GetFrame(0)
	if got := f.Elements[0].(*timeline.SymbolInstance).LibraryItemName; got != "Cycle/First" {
		t.Errorf("back reference = %q", got)
	}
}

func TestImport_MissingDependency(t *testing.T) {
	src := sourcePackage(t)
	for _, name := range []string{"Orphan", "Gone"} {
		dst := library.New()
		_, err := importer.New().Import(src, name, dst)
		if !errors.Is(err, apperr.ErrMissingDependency) {
			t.Errorf("Import(%s) err = %v", name, err)
		}
		if dst.Len() != 0 {
			t.Errorf("Import(%s) left %v", name, dst.Names())
		}
	}
}

func TestImport_RollsBack(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	_, err := importer.New().Import(src, "Broken", dst)
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Fatalf("err = %v", err)
	}
	if dst.Len() != 0 {
		t.Errorf("left behind %v", dst.Names())
	}
}

func TestImport_Errors(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	r := importer.New()
	if _, err := r.Import(src, "nope", dst); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown item err = %v", err)
	}
	if _, err := r.Import(src, "Props", dst); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("folder err = %v", err)
	}
	if _, err := dst.AddNewItem("movie clip", "Props/Box"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Import(src, "Props/Box", dst); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("existing target err = %v", err)
	}
}

func TestResolve_LeavesDestination(t *testing.T) {
	src := sourcePackage(t)
	dst := library.New()
	plan, err := importer.New().Resolve(src, "Props/Ball", dst)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan.Items) != 4 || dst.Len() != 0 {
		t.Errorf("plan = %v, dst = %v", plan.Names(), dst.Names())
	}
}

func TestImport_FLA(t *testing.T) {
	src := sourcePackage(t)
	fla := filepath.Join(t.TempDir(), "source.fla")
	zipDir(t, src, fla)

	scratch := t.TempDir()
	dst := library.New()
	if _, err := importer.New(importer.WithScratchDir(scratch)).Import(fla, "Props/Box", dst); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !dst.ItemExists("hit.wav") {
		t.Errorf("items = %v", dst.Names())
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch not cleaned: %v", entries)
	}

	// Cleanup also runs when the import fails.
	if _, err := importer.New(importer.WithScratchDir(scratch)).Import(fla, "Gone", dst); err == nil {
		t.Fatal("expected error")
	}
	if entries, _ := os.ReadDir(scratch); len(entries) != 0 {
		t.Errorf("scratch not cleaned after failure: %v", entries)
	}
}

func zipDir(t *testing.T, dir, dst string) {
	t.Helper()
	out, err := os.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}
