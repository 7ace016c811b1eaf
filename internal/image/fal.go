package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/promptgrid/internal/config"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	statusInQueue    = "IN_QUEUE"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
)

// FalGenerator talks to the fal.ai queue API: submit, poll until done, fetch.
type FalGenerator struct {
	Client       *http.Client
	Key          string
	Model        string
	QueueURL     string
	PollInterval time.Duration
}

func NewFalGenerator(i *do.Injector) (*FalGenerator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key, err := do.InvokeNamed[string](i, "fal_key")
	if err != nil {
		return nil, err
	}
	return &FalGenerator{
		Client:       do.MustInvoke[*http.Client](i),
		Key:          key,
		Model:        cfg.Model,
		QueueURL:     cfg.QueueURL,
		PollInterval: cfg.PollInterval,
	}, nil
}

type queueStatus struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

func (g *FalGenerator) Generate(ctx context.Context, task Task) (Image, error) {
	res, err := g.Subscribe(ctx, task)
	if err != nil {
		return Image{}, err
	}
	if len(res.Data.Images) == 0 || res.Data.Images[0].URL == "" {
		return Image{}, ErrInvalidResponse
	}

	img := res.Data.Images[0]
	log.FromContextOrDiscard(ctx).WithGroup("fal").Info("received image",
		"request_id", res.RequestID, "url", img.URL, "returned", len(res.Data.Images))
	return img, nil
}

// Subscribe submits the task to the queue and blocks until the request
// completes or ctx ends.
func (g *FalGenerator) Subscribe(ctx context.Context, task Task) (Result, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("fal").With("model", g.Model, "seed", task.Seed)
	logger.Info("submitting generation request")

	var submitted queueStatus
	if err := g.call(ctx, http.MethodPost, g.modelURL(), task, &submitted); err != nil {
		return Result{}, err
	}
	if submitted.RequestID == "" {
		return Result{}, ErrInvalidResponse
	}
	logger = logger.With("request_id", submitted.RequestID)
	logger.Debug("request queued")

	base := g.modelURL() + "/requests/" + submitted.RequestID
	statusURL := lo.Ternary(submitted.StatusURL != "", submitted.StatusURL, base+"/status")
	responseURL := lo.Ternary(submitted.ResponseURL != "", submitted.ResponseURL, base)

	if err := g.wait(ctx, statusURL); err != nil {
		return Result{}, err
	}
	logger.Debug("request completed")

	var out Output
	if err := g.call(ctx, http.MethodGet, responseURL, nil, &out); err != nil {
		return Result{}, err
	}
	return Result{Data: out, RequestID: submitted.RequestID}, nil
}

func (g *FalGenerator) wait(ctx context.Context, statusURL string) error {
	ticker := time.NewTicker(lo.Ternary(g.PollInterval > 0, g.PollInterval, config.DefaultPollInterval))
	defer ticker.Stop()

	for {
		var status queueStatus
		if err := g.call(ctx, http.MethodGet, statusURL, nil, &status); err != nil {
			return err
		}

		switch status.Status {
		case statusCompleted:
			return nil
		case statusInQueue, statusInProgress:
		default:
			return fmt.Errorf("unexpected queue status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *FalGenerator) call(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Key "+g.Key)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrInvalidResponse
	}
	return nil
}

func (g *FalGenerator) modelURL() string {
	return strings.TrimRight(g.QueueURL, "/") + "/" + strings.Trim(g.Model, "/")
}

func (g *FalGenerator) client() *http.Client {
	return lo.Ternary(g.Client != nil, g.Client, http.DefaultClient)
}
