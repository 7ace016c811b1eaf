package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmorgan81/promptgrid/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const model = "fal-ai/flux/schnell"

// fakeQueue serves the submit, status and result endpoints of the queue API.
type fakeQueue struct {
	t        *testing.T
	pending  int32
	result   string
	submit   func(w http.ResponseWriter, task Task)
	received atomic.Value
	polls    atomic.Int32
}

func (q *fakeQueue) server() *httptest.Server {
	return httptest.NewServer(q.mux())
}

func (q *fakeQueue) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+model, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(q.t, http.MethodPost, r.Method)
		assert.Equal(q.t, "Key test-key", r.Header.Get("Authorization"))
		assert.Equal(q.t, "application/json", r.Header.Get("Content-Type"))

		var task Task
		assert.NoError(q.t, json.NewDecoder(r.Body).Decode(&task))
		q.received.Store(task)
		if q.submit != nil {
			q.submit(w, task)
			return
		}
		fmt.Fprint(w, `{"request_id":"req-1","status":"IN_QUEUE"}`)
	})
	mux.HandleFunc("/"+model+"/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(q.t, "Key test-key", r.Header.Get("Authorization"))
		if q.polls.Add(1) <= atomic.LoadInt32(&q.pending) {
			fmt.Fprint(w, `{"status":"IN_PROGRESS"}`)
			return
		}
		fmt.Fprint(w, `{"status":"COMPLETED"}`)
	})
	mux.HandleFunc("/"+model+"/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(q.t, http.MethodGet, r.Method)
		fmt.Fprint(w, q.result)
	})
	return mux
}

func newGenerator(srv *httptest.Server) *FalGenerator {
	return &FalGenerator{
		Client:       srv.Client(),
		Key:          "test-key",
		Model:        model,
		QueueURL:     srv.URL + "/",
		PollInterval: time.Millisecond,
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask("a red fox", seed.NewSequence(123))
	assert.Equal(t, Task{Prompt: "a red fox", AspectRatio: "1:1", NumImages: 1, Seed: 123}, task)

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prompt":"a red fox","aspect_ratio":"1:1","num_images":1,"seed":123}`, string(data))
}

func TestGenerateReturnsFirstImage(t *testing.T) {
	q := &fakeQueue{t: t, pending: 2, result: `{
		"images": [
			{"url":"https://x/1.png","width":512,"height":512,"content_type":"image/png"},
			{"url":"https://x/extra.png","width":512,"height":512,"content_type":"image/png"}
		],
		"seed": 42, "prompt": "a red fox", "timings": {"inference": 1.5}, "has_nsfw_concepts": [false, false]
	}`}
	srv := q.server()
	defer srv.Close()

	task := Task{Prompt: "a red fox", AspectRatio: "1:1", NumImages: 1, Seed: 42}
	img, err := newGenerator(srv).Generate(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, Image{URL: "https://x/1.png", Width: 512, Height: 512, ContentType: "image/png"}, img)
	assert.Equal(t, task, q.received.Load())
	assert.Equal(t, int32(3), q.polls.Load())
}

func TestSubscribeResult(t *testing.T) {
	q := &fakeQueue{t: t, result: `{"images":[{"url":"https://x/1.png"}],"seed":7,"prompt":"p","has_nsfw_concepts":[false]}`}
	srv := q.server()
	defer srv.Close()

	res, err := newGenerator(srv).Subscribe(context.Background(), Task{Prompt: "p", Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, int64(7), res.Data.Seed)
	assert.Equal(t, "p", res.Data.Prompt)
	assert.Equal(t, []bool{false}, res.Data.HasNSFWConcepts)
}

func TestSubscribeUsesReturnedURLs(t *testing.T) {
	var base string
	q := &fakeQueue{t: t, submit: func(w http.ResponseWriter, _ Task) {
		fmt.Fprintf(w, `{"request_id":"req-1","status_url":"%[1]s/elsewhere/status","response_url":"%[1]s/elsewhere/result"}`, base)
	}}
	mux := q.mux()
	mux.HandleFunc("/elsewhere/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"COMPLETED"}`)
	})
	mux.HandleFunc("/elsewhere/result", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"images":[{"url":"https://x/elsewhere.png"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	img, err := newGenerator(srv).Generate(context.Background(), Task{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/elsewhere.png", img.URL)
	assert.Zero(t, q.polls.Load())
}

func TestGenerateInvalidResponses(t *testing.T) {
	tests := map[string]string{
		"empty images":   `{"images":[]}`,
		"missing images": `{"seed":1}`,
		"empty url":      `{"images":[{"url":"","width":512}]}`,
		"null body":      `null`,
		"malformed":      `{"images":[`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			q := &fakeQueue{t: t, result: body}
			srv := q.server()
			defer srv.Close()

			_, err := newGenerator(srv).Generate(context.Background(), Task{Prompt: "p"})
			assert.ErrorIs(t, err, ErrInvalidResponse)
			assert.EqualError(t, err, "Invalid response from FAL.ai")
		})
	}
}

func TestGenerateSubmitWithoutRequestID(t *testing.T) {
	q := &fakeQueue{t: t, submit: func(w http.ResponseWriter, _ Task) {
		fmt.Fprint(w, `{}`)
	}}
	srv := q.server()
	defer srv.Close()

	_, err := newGenerator(srv).Generate(context.Background(), Task{Prompt: "p"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerateAPIError(t *testing.T) {
	q := &fakeQueue{t: t, submit: func(w http.ResponseWriter, _ Task) {
		http.Error(w, `{"detail":"Invalid key"}`, http.StatusUnauthorized)
	}}
	srv := q.server()
	defer srv.Close()

	_, err := newGenerator(srv).Generate(context.Background(), Task{Prompt: "p"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, `{"detail":"Invalid key"}`, apiErr.Body)
	assert.Equal(t, `401 Unauthorized: {"detail":"Invalid key"}`, err.Error())
}

func TestGenerateUnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+model, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"request_id":"req-1"}`)
	})
	mux.HandleFunc("/"+model+"/requests/req-1/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"FAILED"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newGenerator(srv).Generate(context.Background(), Task{Prompt: "p"})
	assert.EqualError(t, err, `unexpected queue status "FAILED"`)
}

func TestGenerateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	gen := newGenerator(srv)
	srv.Close()

	_, err := gen.Generate(context.Background(), Task{Prompt: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerateContextCancelledWhilePolling(t *testing.T) {
	q := &fakeQueue{t: t, pending: 1 << 30}
	srv := q.server()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newGenerator(srv).Generate(ctx, Task{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	assert.Equal(t, "502 Bad Gateway", (&APIError{StatusCode: http.StatusBadGateway}).Error())
}
