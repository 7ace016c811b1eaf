package image

import (
	"context"

	"github.com/dmorgan81/promptgrid/internal/seed"
)

const (
	AspectRatio = "1:1"
	NumImages   = 1
)

// Task is the input of a single provider call.
type Task struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	NumImages   int    `json:"num_images"`
	Seed        int64  `json:"seed"`
}

func NewTask(prompt string, seeder seed.Seeder) Task {
	return Task{
		Prompt:      prompt,
		AspectRatio: AspectRatio,
		NumImages:   NumImages,
		Seed:        seeder.Seed(),
	}
}

type Image struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

type Output struct {
	Images          []Image            `json:"images"`
	Timings         map[string]float64 `json:"timings,omitempty"`
	Seed            int64              `json:"seed"`
	HasNSFWConcepts []bool             `json:"has_nsfw_concepts,omitempty"`
	Prompt          string             `json:"prompt"`
}

// Result mirrors what a completed queue request resolves to.
type Result struct {
	Data      Output `json:"data"`
	RequestID string `json:"requestId"`
}

// Generator produces exactly one image per task.
type Generator interface {
	Generate(context.Context, Task) (Image, error)
}
