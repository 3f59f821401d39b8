package pipeline

import (
	"encoding/json"
	"path"
	"strings"
)

// ExtractFileNames finds the files a planning output asks for. A JSON
// document with a "files" array (of names or {"name": ...} objects) is
// used when present. Otherwise every "label: name.ext" line contributes
// the text after its last colon. Names are returned in order, without
// duplicates; absolute paths and paths escaping the output directory are
// dropped.
func ExtractFileNames(output string) []string {
	if names, ok := fileNamesFromJSON(output); ok {
		return cleanNames(names)
	}
	return cleanNames(fileNamesFromText(output))
}

func fileNamesFromJSON(output string) ([]string, bool) {
	body := []byte(stripCodeFence(output))
	if !json.Valid(body) {
		return nil, false
	}

	var doc struct {
		Files []json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Files == nil {
		return nil, false
	}

	var names []string
	for _, raw := range doc.Files {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Name     string `json:"name"`
			FileName string `json:"file_name"`
			Path     string `json:"path"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			for _, n := range []string{obj.Name, obj.FileName, obj.Path} {
				if n != "" {
					names = append(names, n)
					break
				}
			}
		}
	}
	return names, true
}

func fileNamesFromText(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		label := strings.ToLower(line[:idx])
		name := strings.Trim(line[idx+1:], "`*\"' \t")
		if !strings.Contains(label, "file") && !strings.Contains(name, ".") {
			continue
		}
		if !hasExtension(name) || strings.ContainsAny(name, " \t") {
			continue
		}
		names = append(names, name)
	}
	return names
}

func hasExtension(name string) bool {
	ext := path.Ext(name)
	if len(ext) < 2 {
		return false
	}
	c := ext[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || strings.HasPrefix(n, "/") || strings.Contains(n, "\\") {
			continue
		}
		n = path.Clean(n)
		if n == "." || n == ".." || strings.HasPrefix(n, "../") {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// stripCodeFence removes a surrounding ``` fence, with or without a
// language tag, so fenced JSON can be parsed.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if nl := strings.Index(t, "\n"); nl >= 0 {
		first := strings.TrimSpace(t[:nl])
		if first == "" || !strings.ContainsAny(first, "{[") {
			t = t[nl+1:]
		}
	}
	return strings.TrimSpace(t)
}

// joinFiles renders fan-out results as one document, a "### name" section per file.
func joinFiles(files []File, pick func(File) string) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("### ")
		b.WriteString(f.Name)
		b.WriteString("\n\n")
		b.WriteString(pick(f))
	}
	return b.String()
}
