package domain

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxFilenameRunes = 100
	fallbackFilename = "video"
)

// illegalFilenameChars are stripped outright; they are invalid on at least one common filesystem.
const illegalFilenameChars = `/\:*?"<>|`

// SuggestedFilename derives a filesystem-safe download name from a title.
// Illegal characters are removed, whitespace runs collapse to a single
// underscore, the base is capped and ext is appended.
func SuggestedFilename(title, ext string) string {
	base := sanitizeBase(title)
	if base == "" {
		base = fallbackFilename
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func sanitizeBase(title string) string {
	title = norm.NFC.String(title)

	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range title {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(illegalFilenameChars, r):
			continue
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._-")
	if utf8.RuneCountInString(out) > maxFilenameRunes {
		runes := []rune(out)
		out = strings.TrimRight(string(runes[:maxFilenameRunes]), "._-")
	}
	return out
}

// DownloadFilename is the name offered for the combined artifact. The
// resolver's own filename wins over the title; its extension is replaced by ext.
func (r *Resolution) DownloadFilename(ext string) string {
	if r == nil {
		return SuggestedFilename("", ext)
	}
	if name := strings.TrimSpace(r.SuggestedFilename); name != "" {
		return SuggestedFilename(strings.TrimSuffix(name, filepath.Ext(name)), ext)
	}
	return SuggestedFilename(r.Title, ext)
}

// ContainerFor picks the output container for a video/audio pair. MP4 can
// only hold the pair losslessly when both sides are ISO-BMFF streams.
func ContainerFor(video, audio *StreamDescriptor) (ext, contentType string) {
	if video != nil && audio != nil && isMP4Family(video.Ext) && isMP4Family(audio.Ext) {
		return "mp4", "video/mp4"
	}
	return "mkv", "video/x-matroska"
}

func isMP4Family(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4", "m4a", "m4v", "mov":
		return true
	default:
		return false
	}
}
