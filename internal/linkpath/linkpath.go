// Package linkpath converts article names to the sharded links stored in
// document entries ("c/o/n/Conejo") and back.
//
// Only '.', '/' and '%' are quoted (as %2E, %2F, %25), so a quoted name is a
// valid file name and unquoting restores the original.
package linkpath

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Null pads the directory triple of names shorter than three runes.
const Null = "_"

// ErrEmptyName is returned for an empty article name.
var ErrEmptyName = errors.New("linkpath: empty name")

var quoter = strings.NewReplacer(".", "%2E", "/", "%2F", "%", "%25")

// Quote escapes the file system sensitive runes of name.
func Quote(name string) string {
	return quoter.Replace(name)
}

// Unquote decodes every %XX escape. Malformed escapes are kept verbatim.
func Unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				sb.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Namespaces is the set of wiki namespace prefixes ("Anexo", "Categoría")
// that are skipped when choosing the directory triple.
type Namespaces map[string]struct{}

// NewNamespaces returns a set holding names.
func NewNamespaces(names ...string) Namespaces {
	ns := make(Namespaces, len(names))
	for _, n := range names {
		ns[n] = struct{}{}
	}
	return ns
}

// LoadNamespaces reads one prefix per line.
func LoadNamespaces(r io.Reader) (Namespaces, error) {
	ns := Namespaces{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			ns[line] = struct{}{}
		}
	}
	return ns, sc.Err()
}

// Contains reports whether prefix is a known namespace. A nil set is empty.
func (ns Namespaces) Contains(prefix string) bool {
	_, ok := ns[prefix]
	return ok
}

// PathFile returns the three-level directory and the quoted file name for
// page.
func PathFile(page string, ns Namespaces) (dir, file string, err error) {
	if page == "" {
		return "", "", ErrEmptyName
	}
	file = Quote(page)

	key := file
	if prefix, rest, ok := strings.Cut(file, ":"); ok && ns.Contains(prefix) {
		key = rest
	}

	runes := []rune(key)
	var dirs [3]string
	for i := range dirs {
		if i < len(runes) {
			dirs[i] = string(runes[i])
		} else {
			dirs[i] = Null
		}
	}
	return strings.Join(dirs[:], "/"), file, nil
}

// Link returns dir + "/" + file for page.
func Link(page string, ns Namespaces) (string, error) {
	dir, file, err := PathFile(page, ns)
	if err != nil {
		return "", err
	}
	return dir + "/" + file, nil
}

// FromPath returns the article name of a link produced by Link.
func FromPath(link string) string {
	runes := []rune(Unquote(link))
	if len(runes) <= 6 {
		return ""
	}
	return string(runes[6:])
}
