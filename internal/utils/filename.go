// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strings"

// SafeFilename sanitizes a caller-supplied filename hint for use in a
// Content-Disposition header. Alphanumerics, '.', '-' and '_' are kept; every
// other character becomes '_'. Dots that form a ".." traversal pair are
// treated as disallowed, and runs of replacements are collapsed pairwise so
// stripped path prefixes stay compact. When the result has no extension,
// ".bin" is appended.
//
// Example:
//
//	SafeFilename("report.pdf")      // "report.pdf"
//	SafeFilename("../../evil?.sh")  // "___evil_.sh"
//	SafeFilename("archive")         // "archive.bin"
func SafeFilename(hint string) string {
	runes := []rune(hint)
	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == '.':
			// Traversal dots (part of a ".." pair) are not kept.
			prevDot := i > 0 && runes[i-1] == '.'
			nextDot := i+1 < len(runes) && runes[i+1] == '.'
			if prevDot || nextDot {
				b.WriteByte('_')
			} else {
				b.WriteByte('.')
			}
		default:
			b.WriteByte('_')
		}
	}

	out := strings.ReplaceAll(b.String(), "__", "_")
	if out == "" {
		return "downloaded_file"
	}
	if !strings.Contains(out, ".") {
		out += ".bin"
	}
	return out
}

// MediaTypeFor infers a response media type from the filename extension.
// Unknown extensions fall back to application/octet-stream.
func MediaTypeFor(filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}
	switch ext {
	case "pdf":
		return "application/pdf"
	case "xlsx", "xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "docx", "doc":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "csv":
		return "text/csv"
	case "png":
		return "image/png"
	case "zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// FilenameHint resolves the download filename from the request parameters.
// Keys are consulted in order: the caller-designated hint key (the value of
// "filename_hint_key" names the parameter holding the filename), then
// "filename", the legacy "nombre_archivo", and "item_id_or_path"; the final
// fallback is "downloaded_file".
func FilenameHint(params map[string]any) string {
	if params != nil {
		if hintKey, ok := params["filename_hint_key"].(string); ok && hintKey != "" {
			if v, ok := params[hintKey].(string); ok && v != "" {
				return v
			}
		}
		for _, k := range []string{"filename", "nombre_archivo", "item_id_or_path"} {
			if v, ok := params[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return "downloaded_file"
}
