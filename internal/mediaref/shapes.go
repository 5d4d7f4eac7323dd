package mediaref

import (
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/starford/mediafold/internal/models"
)

const (
	videoStyle    = "max-width: 100%; height: auto;"
	iframeHTMLCSS = "width: 100%; height: 400px; border: 1px solid #ccc;"
	iframeTextCSS = "width: 100%; height: 300px; border: 1px solid #ccc;"
	downloadStyle = "display: inline-block; padding: 8px 16px; background: #3b82f6; color: white; text-decoration: none; border-radius: 4px;"
)

// Render returns the expanded form of p. label is used by the image and
// download shapes; drawings always carry the fixed drawing label. An empty
// image label stays empty.
func (l Labels) Render(p models.MediaPayload, label string) string {
	data := html.EscapeString(p.Data)
	switch p.Kind {
	case models.KindDrawing:
		return "![" + markdownLabel(l.Drawing) + "](" + p.Data + ")"
	case models.KindAudio:
		return fmt.Sprintf(`<audio controls><source src="%s" type="%s">%s</audio>`,
			data, html.EscapeString(p.MimeType), html.EscapeString(l.AudioFallback))
	case models.KindVideo:
		return fmt.Sprintf(`<video controls style="%s"><source src="%s" type="%s">%s</video>`,
			videoStyle, data, html.EscapeString(p.MimeType), html.EscapeString(l.VideoFallback))
	case models.KindPDF:
		return fmt.Sprintf(`<embed src="%s" type="application/pdf" width="100%%" height="600px" />`, data)
	case models.KindHTML:
		return fmt.Sprintf(`<iframe src="%s" style="%s"></iframe>`, data, iframeHTMLCSS)
	case models.KindText:
		return fmt.Sprintf(`<iframe src="%s" style="%s"></iframe>`, data, iframeTextCSS)
	case models.KindDownload:
		name := html.EscapeString(label)
		return fmt.Sprintf(`<a href="%s" download="%s" style="%s">%s %s</a>`,
			data, name, downloadStyle, html.EscapeString(l.Download), name)
	default:
		return "![" + markdownLabel(label) + "](" + p.Data + ")"
	}
}

// markdownLabel strips what would end the image label early. '[' is left
// alone: the label only ends at ']'.
func markdownLabel(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ']', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

var (
	audioExt = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac"}
	videoExt = []string{".mp4", ".webm", ".ogg", ".avi", ".mov", ".wmv", ".flv", ".mkv"}
	imageExt = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp"}
	textExt  = []string{".txt", ".md", ".json", ".xml", ".csv", ".log"}
	htmlExt  = []string{".html", ".htm"}
)

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// KindForFile classifies an attachment by MIME type or file name. The checks
// run in a fixed order and the first hit wins, so text/html lands on text.
func KindForFile(name, mimeType string) models.Kind {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "audio/") || hasExt(name, audioExt):
		return models.KindAudio
	case strings.HasPrefix(mt, "video/") || hasExt(name, videoExt):
		return models.KindVideo
	case mt == "application/pdf" || hasExt(name, []string{".pdf"}):
		return models.KindPDF
	case strings.HasPrefix(mt, "image/") || hasExt(name, imageExt):
		return models.KindImage
	case strings.HasPrefix(mt, "text/") || hasExt(name, textExt):
		return models.KindText
	case mt == "text/html" || hasExt(name, htmlExt):
		return models.KindHTML
	}
	return models.KindDownload
}

// DefaultName returns the label a file of kind k gets when it has no name.
func (l Labels) DefaultName(k models.Kind) string {
	switch k {
	case models.KindDrawing:
		return l.Drawing
	case models.KindAudio:
		return l.Audio
	case models.KindVideo:
		return l.Video
	case models.KindPDF:
		return l.PDF
	case models.KindHTML, models.KindText, models.KindDownload:
		return l.Document
	}
	return l.Image
}
