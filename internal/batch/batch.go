package batch

import (
	"context"
	"net/http"
	"time"

	"github.com/dmorgan81/promptgrid/internal/config"
	"github.com/dmorgan81/promptgrid/internal/image"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/dmorgan81/promptgrid/internal/metrics"
	"github.com/dmorgan81/promptgrid/internal/seed"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Size is the number of tasks issued per request.
const Size = 2

const (
	StatusPartial  = "partial"
	SuccessMessage = "First batch of images generated. More coming..."
	FailureMessage = "Failed to generate images. Please try again."
)

type Request struct {
	Prompt string `json:"prompt"`
}

type Response struct {
	ImageURLs []string `json:"imageUrls"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Observer interface {
	ObserveBatch(error)
}

type Orchestrator struct {
	Generator image.Generator
	Seeder    seed.Seeder
	Observer  Observer
	// Timeout bounds a whole batch when positive.
	Timeout time.Duration
}

func NewOrchestrator(i *do.Injector) (*Orchestrator, error) {
	return &Orchestrator{
		Generator: do.MustInvoke[image.Generator](i),
		Seeder:    do.MustInvoke[seed.Seeder](i),
		Observer:  do.MustInvoke[*metrics.Metrics](i),
		Timeout:   do.MustInvoke[*config.Config](i).Timeout,
	}, nil
}

// Run issues Size tasks for the prompt concurrently. URLs come back in task
// order. Any failure fails the whole batch with the first error seen.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]string, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	tasks := lo.Times(Size, func(_ int) image.Task {
		return image.NewTask(req.Prompt, o.Seeder)
	})
	log.FromContextOrDiscard(ctx).WithGroup("batch").Info("dispatching tasks",
		"seeds", lo.Map(tasks, func(t image.Task, _ int) int64 { return t.Seed }))

	urls := make([]string, len(tasks))
	group, ctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			img, err := o.Generator.Generate(ctx, task)
			if err != nil {
				return err
			}
			urls[i] = img.URL
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// Generate runs one batch and converts the outcome to an HTTP status and
// envelope.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (int, any) {
	urls, err := o.Run(ctx, req)
	if o.Observer != nil {
		o.Observer.ObserveBatch(err)
	}
	if err != nil {
		log.FromContextOrDiscard(ctx).WithGroup("batch").Error("FAL.ai API error", "error", err)
		return http.StatusInternalServerError, ErrorResponse{
			Error:   err.Error(),
			Message: FailureMessage,
		}
	}
	return http.StatusOK, Response{
		ImageURLs: urls,
		Status:    StatusPartial,
		Message:   SuccessMessage,
	}
}
