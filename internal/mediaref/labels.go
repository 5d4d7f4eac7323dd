package mediaref

import "strings"

// Labels holds every fixed, localized string the codec writes into documents.
// Empty fields fall back to the defaults of the source locale.
type Labels struct {
	Drawing       string `yaml:"drawing"`
	Canvas        string `yaml:"canvas"`
	Image         string `yaml:"image"`
	Audio         string `yaml:"audio"`
	Video         string `yaml:"video"`
	PDF           string `yaml:"pdf"`
	Document      string `yaml:"document"`
	AudioFallback string `yaml:"audio_fallback"`
	VideoFallback string `yaml:"video_fallback"`
	Download      string `yaml:"download"`
}

// DefaultLabels returns the labels documents were originally written with.
func DefaultLabels() Labels {
	return Labels{
		Drawing:       "绘图",
		Canvas:        "画板",
		Image:         "图片",
		Audio:         "音频文件",
		Video:         "视频文件",
		PDF:           "PDF文件",
		Document:      "文档文件",
		AudioFallback: "您的浏览器不支持音频播放。",
		VideoFallback: "您的浏览器不支持视频播放。",
		Download:      "📎 下载",
	}
}

// WithDefaults fills empty fields from DefaultLabels.
func (l Labels) WithDefaults() Labels {
	d := DefaultLabels()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&l.Drawing, d.Drawing)
	fill(&l.Canvas, d.Canvas)
	fill(&l.Image, d.Image)
	fill(&l.Audio, d.Audio)
	fill(&l.Video, d.Video)
	fill(&l.PDF, d.PDF)
	fill(&l.Document, d.Document)
	fill(&l.AudioFallback, d.AudioFallback)
	fill(&l.VideoFallback, d.VideoFallback)
	fill(&l.Download, d.Download)
	return l
}

// IsDrawing is the naming heuristic that separates drawings from images:
// the name is the drawing label, or mentions the canvas or drawing label.
// It never looks at the payload.
func (l Labels) IsDrawing(name string) bool {
	return name == l.Drawing || strings.Contains(name, l.Canvas) || strings.Contains(name, l.Drawing)
}
