// Package webhook posts knowledge-base submissions and questions to the external service.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/knowledge-chat/backend/internal/models"
)

// Endpoints holds the three fixed webhook URLs.
type Endpoints struct {
	File     string
	Text     string
	Question string
}

// Recorder receives one record per outbound call.
type Recorder interface {
	Record(d models.Delivery)
}

// StatusError is returned for any non-2xx response. Callers do not branch on the code.
type StatusError struct {
	Flow       models.Flow
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s webhook returned status %d", e.Flow, e.StatusCode)
}

// Client talks to the ingestion and answering webhooks.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	endpoints Endpoints
	recorder  Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a client-wide timeout. Zero keeps the runtime default (none).
// The http.Client given to WithHTTPClient is never modified; a copy carries the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRecorder reports every call to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a webhook client.
func NewClient(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		endpoints: endpoints,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// SubmitFile sends a file as multipart/form-data in the "file" field.
func (c *Client) SubmitFile(ctx context.Context, name string, r io.Reader) error {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("writing form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}

	resp, err := c.post(ctx, models.FlowFile, c.endpoints.File, writer.FormDataContentType(), body)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// SubmitText sends pasted knowledge-base text as {"text": ...}.
func (c *Client) SubmitText(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encoding text payload: %w", err)
	}

	resp, err := c.post(ctx, models.FlowText, c.endpoints.Text, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Ask sends {"question": ...} and returns the "answer" field of the reply.
// An empty answer means the service accepted the question but returned no answer text.
// A null reply body is an error.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", fmt.Errorf("encoding question payload: %w", err)
	}

	resp, err := c.post(ctx, models.FlowQuestion, c.endpoints.Question, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding answer: %w", err)
	}
	return answerText(body)
}

func (c *Client) post(ctx context.Context, flow models.Flow, url, contentType string, body io.Reader) (*http.Response, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", flow, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		c.record(flow, 0, err, start)
		return nil, fmt.Errorf("%s webhook: %w", flow, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp)
		statusErr := &StatusError{Flow: flow, StatusCode: resp.StatusCode}
		c.record(flow, resp.StatusCode, statusErr, start)
		return nil, statusErr
	}

	c.record(flow, resp.StatusCode, nil, start)
	return resp, nil
}

func (c *Client) record(flow models.Flow, status int, err error, start time.Time) {
	if c.recorder == nil {
		return
	}
	d := models.Delivery{
		Flow:       flow,
		StatusCode: status,
		OK:         err == nil,
		DurationMs: time.Since(start).Milliseconds(),
		At:         start,
	}
	if err != nil {
		d.Error = err.Error()
	}
	c.recorder.Record(d)
}

// ErrNullReply is returned by Ask when a 2xx reply body is JSON null.
var ErrNullReply = errors.New("question webhook replied with null")

// answerText pulls the answer out of a decoded reply body.
// Replies that are not objects carry no answer field and yield "".
func answerText(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", ErrNullReply
	case map[string]any:
		return renderAnswer(b["answer"]), nil
	default:
		return "", nil
	}
}

// renderAnswer turns an answer value into text. Falsy values (null, false, 0, "")
// count as no answer.
func renderAnswer(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return a
	case bool:
		if !a {
			return ""
		}
		return "true"
	case float64:
		if a == 0 {
			return ""
		}
		return fmt.Sprint(a)
	default:
		return fmt.Sprint(a)
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
