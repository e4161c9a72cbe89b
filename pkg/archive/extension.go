package archive

import (
	"path/filepath"
	"slices"
	"strings"
)

var validExtensions = []string{
	"UF", "DOC", "XLS", "PPT", "MPP", "RTF", "TIF", "PDF", "TXT", "HTM",
	"JPG", "MSG", "DWF", "ZIP", "DWG", "ODT", "ODS", "ODG", "XML", "DOCX",
	"EML", "MHT", "XLSX", "PPTX", "GIF", "ONE", "DOCM", "SOI", "MPEG-2", "MP3",
	"XLSB", "PPTM", "VSD", "VSDX", "XLSM", "SOS", "HTML", "PNG", "MOV", "PPSX",
	"WMV", "XPS", "JPEG", "TIFF", "MP4", "WAV", "PUB", "BMP", "IFC", "KOF",
	"VGT", "GSI", "GML", "cfb", "26", "2", "hiec", "md",
}

var convertExtensions = []string{
	"PDF", "JPG", "EML", "JPEG", "XLSX", "XLS", "RTF", "MSG", "PPT", "PPTX",
	"DOCX", "DOC", "HTML", "HTM", "TIFF",
}

// Version formats for archived files.
const (
	VersionProduction = "P"
	VersionArchive    = "A"
)

// FileExtension returns the archive format and version format for a file name.
// Unknown extensions become "UF". Formats the archive converts get "P".
func FileExtension(name string) (format, versionFormat string) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "UF", VersionArchive
	}

	if !containsFold(validExtensions, ext) {
		ext = "UF"
	}
	if containsFold(convertExtensions, ext) {
		return ext, VersionProduction
	}
	return ext, VersionArchive
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool {
		return strings.EqualFold(v, s)
	})
}
