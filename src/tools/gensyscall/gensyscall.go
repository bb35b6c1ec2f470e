// Package gensyscall builds the system call table of a package from
// annotated handlers.  A handler is a function or method with the signature
// of trap.Handler whose doc comment carries
//
//	//syscall:handler num=N args=M
//
// Numbers must start at zero and have no gaps; the generated table is an
// index.
package gensyscall

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"awakening/src/boot/trap"
)

const directive = "//syscall:handler"

// GeneratedSuffix marks files the generator writes.  They are never read as
// input.
const GeneratedSuffix = ".gen.go"

// Handler is one annotated function.
type Handler struct {
	Num  uint8
	Argc uint32
	Func string
	// Recv is the receiver type name without the star, empty for plain
	// functions.
	Recv string
	Pos  token.Position
}

// Name is how the call shows up in logs and statistics.
func (h Handler) Name() string {
	return strings.ToLower(h.Func)
}

// Expr is the handler as written in the generated table.
func (h Handler) Expr() string {
	if h.Recv != "" {
		return "k." + h.Func
	}
	return h.Func
}

// Sources lists the Go files of dir the generator reads.
func Sources(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if strings.HasSuffix(m, "_test.go") || strings.HasSuffix(m, GeneratedSuffix) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Parse reads the given files, which must all be one package, and returns
// the package name and its handlers in number order.
func Parse(files []string) (string, []Handler, error) {
	fset := token.NewFileSet()
	pkg := ""
	var handlers []Handler
	for _, name := range files {
		file, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			return "", nil, err
		}
		if pkg == "" {
			pkg = file.Name.Name
		} else if pkg != file.Name.Name {
			return "", nil, fmt.Errorf("%s: package %s, expected %s", name, file.Name.Name, pkg)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Doc == nil {
				continue
			}
			h, found, err := annotation(fset, fn)
			if err != nil {
				return "", nil, err
			}
			if found {
				handlers = append(handlers, h)
			}
		}
	}
	if err := Check(handlers); err != nil {
		return "", nil, err
	}
	return pkg, handlers, nil
}

func annotation(fset *token.FileSet, fn *ast.FuncDecl) (Handler, bool, error) {
	for _, c := range fn.Doc.List {
		if !strings.HasPrefix(c.Text, directive) {
			continue
		}
		h := Handler{Func: fn.Name.Name, Pos: fset.Position(c.Pos())}
		if fn.Recv != nil && len(fn.Recv.List) == 1 {
			h.Recv = receiverName(fn.Recv.List[0].Type)
		}
		seen := map[string]bool{}
		for _, field := range strings.Fields(strings.TrimPrefix(c.Text, directive)) {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				return h, false, fmt.Errorf("%s: expected key=value, found %q", h.Pos, field)
			}
			switch key {
			case "num":
				n, err := strconv.ParseUint(value, 0, 8)
				if err != nil {
					return h, false, fmt.Errorf("%s: bad num: %w", h.Pos, err)
				}
				h.Num = uint8(n)
			case "args":
				n, err := strconv.ParseUint(value, 0, 32)
				if err != nil || n > 4 {
					return h, false, fmt.Errorf("%s: args must be 0 to 4, found %q", h.Pos, value)
				}
				h.Argc = uint32(n)
			default:
				return h, false, fmt.Errorf("%s: unknown key %q", h.Pos, key)
			}
			seen[key] = true
		}
		if !seen["num"] {
			return h, false, fmt.Errorf("%s: %s has no num", h.Pos, h.Func)
		}
		return h, true, nil
	}
	return Handler{}, false, nil
}

func receiverName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// Check sorts the handlers by number and rejects duplicates, gaps and
// methods on different receivers.
func Check(handlers []Handler) error {
	sort.SliceStable(handlers, func(i, j int) bool { return handlers[i].Num < handlers[j].Num })
	recv := ""
	for i, h := range handlers {
		if i > 0 && handlers[i-1].Num == h.Num {
			return fmt.Errorf("%s: %w: %d used by %s and %s", h.Pos, trap.ErrDuplicate, h.Num, handlers[i-1].Func, h.Func)
		}
		if int(h.Num) != i {
			return fmt.Errorf("%s: %w: %s has %d, expected %d", h.Pos, trap.ErrGap, h.Func, h.Num, i)
		}
		if h.Recv != "" {
			if recv != "" && recv != h.Recv {
				return fmt.Errorf("%s: %s is a method of %s, others are methods of %s", h.Pos, h.Func, h.Recv, recv)
			}
			recv = h.Recv
		}
	}
	return nil
}

type tableData struct {
	Package  string
	Recv     string
	Handlers []Handler
}

var tableTemplate = template.Must(template.New("table").Parse(`// Code generated by gensyscall. DO NOT EDIT.

package {{.Package}}

import "awakening/src/boot/trap"

{{if .Recv}}func (k *{{.Recv}}) syscallTable() *trap.Table {{else}}func syscallTable() *trap.Table {{end}}{
	return trap.MustTable(
{{- range .Handlers}}
		trap.Entry{Num: {{.Num}}, Name: "{{.Name}}", Argc: {{.Argc}}, Handler: {{.Expr}}},
{{- end}}
	)
}
`))

// Write emits the table source for pkg, gofmt'ed.
func Write(w io.Writer, pkg string, handlers []Handler) error {
	data := tableData{Package: pkg, Handlers: handlers}
	for _, h := range handlers {
		if h.Recv != "" {
			data.Recv = h.Recv
		}
	}
	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, data); err != nil {
		return err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("gensyscall: generated code does not format: %w", err)
	}
	_, err = w.Write(src)
	return err
}

// Stale reports whether out is missing or older than any source.
func Stale(out string, sources []string) (bool, error) {
	var lastGen time.Time
	st, err := os.Stat(out)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, err
		}
		return true, nil
	}
	lastGen = st.ModTime()
	for _, s := range sources {
		st, err := os.Stat(s)
		if err != nil {
			return false, err
		}
		if st.ModTime().After(lastGen) {
			return true, nil
		}
	}
	return false, nil
}
