package utils

import "testing"

func TestSafeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../evil?.sh", "___evil_.sh"}, // traversal stripped, '?' replaced
		{"archive", "archive.bin"},        // no extension -> .bin
		{"", "downloaded_file"},
		{"factura enero.xlsx", "factura_enero.xlsx"},
		{"a/b\\c.txt", "a_b_c.txt"},
		{"..", "_.bin"},
		{"safe-name_01.csv", "safe-name_01.csv"},
	}
	for _, tc := range cases {
		if got := SafeFilename(tc.in); got != tc.want {
			t.Fatalf("SafeFilename(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMediaTypeFor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a.pdf", "application/pdf"},
		{"a.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"a.XLS", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"a.csv", "text/csv"},
		{"a.png", "image/png"},
		{"a.zip", "application/zip"},
		{"a.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MediaTypeFor(tc.in); got != tc.want {
			t.Fatalf("MediaTypeFor(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilenameHint_Order(t *testing.T) {
	// Caller-designated hint key wins.
	params := map[string]any{
		"filename_hint_key": "target_filename",
		"target_filename":   "ventas.xlsx",
		"filename":          "ignored.pdf",
	}
	if got := FilenameHint(params); got != "ventas.xlsx" {
		t.Fatalf("hint key resolution failed: %q", got)
	}

	// Then the well-known keys, in order.
	if got := FilenameHint(map[string]any{"filename": "f.pdf", "nombre_archivo": "n.pdf"}); got != "f.pdf" {
		t.Fatalf("filename should win over nombre_archivo: %q", got)
	}
	if got := FilenameHint(map[string]any{"nombre_archivo": "n.pdf"}); got != "n.pdf" {
		t.Fatalf("nombre_archivo fallback failed: %q", got)
	}
	if got := FilenameHint(map[string]any{"item_id_or_path": "docs/x.docx"}); got != "docs/x.docx" {
		t.Fatalf("item_id_or_path fallback failed: %q", got)
	}

	// Dangling hint key falls through to the well-known keys.
	if got := FilenameHint(map[string]any{"filename_hint_key": "missing", "filename": "f.pdf"}); got != "f.pdf" {
		t.Fatalf("dangling hint key should fall through: %q", got)
	}

	// Nothing usable -> fallback.
	if got := FilenameHint(nil); got != "downloaded_file" {
		t.Fatalf("nil params fallback failed: %q", got)
	}
	if got := FilenameHint(map[string]any{"filename": 42}); got != "downloaded_file" {
		t.Fatalf("non-string values must be ignored: %q", got)
	}
}
