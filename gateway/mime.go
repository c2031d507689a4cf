// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"path"
	"sort"
	"strings"
)

// extensionMIME maps lowercase filename extensions to MIME types for
// the formats the downstream service can ingest.
var extensionMIME = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json": "application/json",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".html": "text/html",
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".go":   "text/x-go",
}

// mimeExtension is the reverse lookup, preferring the canonical
// extension for types with several.
var mimeExtension = map[string]string{
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
	"application/json": ".json",
	"text/csv":         ".csv",
	"text/markdown":    ".md",
	"text/html":        ".html",
	"text/css":         ".css",
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
	"image/gif":        ".gif",
	"text/x-python":    ".py",
	"text/javascript":  ".js",
	"text/x-go":        ".go",
}

// ResolveMIME determines the effective MIME type and filename for an
// incoming attachment. Candidates are tried in order: the
// protocol-level mimetype, the event metadata mimetype, then a lookup
// by filename extension. The first non-empty match wins.
//
// The returned filename gains the type's canonical extension when the
// original had none. ok is false when no candidate resolves to a
// supported type; such files must be rejected, not cached.
func ResolveMIME(fileName, protocolMIME, metadataMIME string) (mimeType, resolvedName string, ok bool) {
	resolvedName = fileName

	for _, candidate := range []string{protocolMIME, metadataMIME} {
		if candidate == "" {
			continue
		}
		// Strip any charset or boundary parameters.
		if base, _, found := strings.Cut(candidate, ";"); found {
			candidate = strings.TrimSpace(base)
		}
		if _, supported := mimeExtension[candidate]; supported {
			mimeType = candidate
			break
		}
	}

	extension := strings.ToLower(path.Ext(fileName))
	if mimeType == "" {
		byExtension, supported := extensionMIME[extension]
		if !supported {
			return "", fileName, false
		}
		mimeType = byExtension
	}

	if extension == "" {
		resolvedName = fileName + mimeExtension[mimeType]
	}
	return mimeType, resolvedName, true
}

// SupportedExtensions returns the accepted filename extensions, for
// user-facing error messages.
func SupportedExtensions() []string {
	extensions := make([]string, 0, len(extensionMIME))
	for extension := range extensionMIME {
		extensions = append(extensions, extension)
	}
	sort.Strings(extensions)
	return extensions
}
