// ABOUTME: Static lookup from file extension to Code::Stats language name.
// ABOUTME: Derives the extension from a document URI or path.
package languages

import (
	"net/url"
	"strings"
)

// byExtension maps a file extension (without the dot) to its display language.
var byExtension = map[string]string{
	"asciidoc": "AsciiDoc",
	"adoc":     "AsciiDoc",
	"asm":      "Assembly",
	"c":        "C",
	"h":        "C",
	"clj":      "Clojure",
	"coq":      "Coq",
	"cpp":      "C++",
	"cr":       "Crystal",
	"cs":       "C#",
	"css":      "CSS",
	"csv":      "CSV",
	"d":        "D",
	"dart":     "Dart",
	"diff":     "Diff",
	"patch":    "Diff",
	"el":       "Emacs Lisp",
	"elm":      "Elm",
	"erl":      "Erlang",
	"ex":       "Elixir",
	"fish":     "Fish",
	"fs":       "F#",
	"fsi":      "F#",
	"fsx":      "F#",
	"gd":       "GDScript",
	"gleam":    "Gleam",
	"glsl":     "GLSL",
	"go":       "Go",
	"graphql":  "GraphQL",
	"gql":      "GraphQL",
	"hbs":      "Handlebars",
	"heex":     "HTML (EEx)",
	"hs":       "Haskell",
	"html":     "HTML",
	"htm":      "HTML",
	"hx":       "Haxe",
	"hy":       "Hy",
	"idr":      "Idris",
	"java":     "Java",
	"jl":       "Julia",
	"js":       "JavaScript",
	"mjs":      "JavaScript",
	"cjs":      "JavaScript",
	"json":     "JSON",
	"jsx":      "JavaScript (React)",
	"kdl":      "KDL",
	"kt":       "Kotlin",
	"ktm":      "Kotlin",
	"kts":      "Kotlin",
	"less":     "Less",
	"lfe":      "LFE",
	"lisp":     "Common Lisp",
	"lua":      "Lua",
	"md":       "Markdown",
	"markdown": "Markdown",
	"ml":       "OCaml",
	"mli":      "OCaml",
	"ncl":      "Nickel",
	"nim":      "Nim",
	"nix":      "Nix",
	"php":      "PHP",
	"ps1":      "PowerShell",
	"purs":     "PureScript",
	"py":       "Python",
	"rb":       "Ruby",
	"rkt":      "Racket",
	"roc":      "Roc",
	"rs":       "Rust",
	"rst":      "reStructuredText",
	"scala":    "Scala",
	"scm":      "Scheme",
	"scss":     "SCSS",
	"sh":       "Shell",
	"sql":      "SQL",
	"svg":      "SVG",
	"swift":    "Swift",
	"tex":      "LaTeX",
	"toml":     "TOML",
	"ts":       "TypeScript",
	"mts":      "TypeScript",
	"cts":      "TypeScript",
	"tsx":      "TypeScript (React)",
	"twig":     "Twig",
	"txt":      "Plaintext",
	"vala":     "Vala",
	"vb":       "Visual Basic",
	"vue":      "Vue",
	"wit":      "WIT",
	"xml":      "XML",
	"yaml":     "YAML",
	"yml":      "YAML",
	"zig":      "Zig",
}

// ForExtension returns the language for the given extension.
func ForExtension(extension string) (string, bool) {
	language, ok := byExtension[extension]
	return language, ok
}

// Extension returns the text after the last '.' in the final path segment.
// A segment without a dot is returned whole, so "Makefile" yields "Makefile".
func Extension(path string) string {
	filename := path[strings.LastIndex(path, "/")+1:]
	return filename[strings.LastIndex(filename, ".")+1:]
}

// DocumentPath returns the path component of a document URI, or the input unchanged if it is not a URI.
func DocumentPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return uri
	}
	return u.Path
}

// ForDocument returns the language of the document at uri.
func ForDocument(uri string) (string, bool) {
	return ForExtension(Extension(DocumentPath(uri)))
}
