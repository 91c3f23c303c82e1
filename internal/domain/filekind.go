package domain

import (
	"path/filepath"
	"strings"
)

// FileKind is the closed set of ingestable file types, keyed by extension.
type FileKind int

// File kinds. KindUnknown always fails extraction with ErrUnsupportedFormat.
const (
	KindUnknown FileKind = iota
	KindPDF
	KindWord
	KindSpreadsheet
	KindText
	KindImage
)

var kindByExt = map[string]FileKind{
	".pdf":  KindPDF,
	".docx": KindWord,
	".doc":  KindWord,
	".xlsx": KindSpreadsheet,
	".xls":  KindSpreadsheet,
	".txt":  KindText,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,
}

// KindOfPath maps a file path to its FileKind by case-insensitive extension.
func KindOfPath(path string) FileKind {
	return kindByExt[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns the enumerated supported extension set in a
// stable order, for error messages and directory scans.
func SupportedExtensions() []string {
	return []string{
		".pdf", ".docx", ".doc", ".xlsx", ".xls", ".txt",
		".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp",
	}
}

func (k FileKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindWord:
		return "word"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}
