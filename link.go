package wikipack

import (
	"io"
	"strings"

	"github.com/hupe1980/wikipack/internal/linkpath"
)

// Linker maps article names to the sharded links stored in document entries
// and content stores ("Conejo" -> "C/o/n/Conejo"). A name with a known
// namespace prefix ("Categoría:Animales") is sharded by the part after the
// colon.
type Linker struct {
	ns linkpath.Namespaces
}

// NewLinker returns a Linker that knows the given namespace prefixes.
func NewLinker(namespaces ...string) Linker {
	return Linker{ns: linkpath.NewNamespaces(namespaces...)}
}

// LoadLinker reads one namespace prefix per line.
func LoadLinker(r io.Reader) (Linker, error) {
	ns, err := linkpath.LoadNamespaces(r)
	if err != nil {
		return Linker{}, err
	}
	return Linker{ns: ns}, nil
}

// Link returns the sharded link of name.
func (l Linker) Link(name string) (string, error) {
	return linkpath.Link(name, l.ns)
}

// FileName returns the content store key of name: the quoted file name
// without the directory triple.
func (l Linker) FileName(name string) (string, error) {
	_, file, err := linkpath.PathFile(name, l.ns)
	return file, err
}

// Name returns the article name of a link produced by Link.
func (Linker) Name(link string) string {
	return linkpath.FromPath(link)
}

// itemKey reduces a link or a bare file name to its content store key.
func itemKey(link string) string {
	return link[strings.LastIndexByte(link, '/')+1:]
}
