package twilio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"voice-assistant/internal/observability"
)

const maxRecordingBytes = 25 << 20

var ErrRecordingUnavailable = errors.New("recording unavailable")

// RecordingDownloader fetches caller recordings referenced by RecordingUrl.
type RecordingDownloader struct {
	accountSID string
	authToken  string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewRecordingDownloader creates a downloader. When accountSID and authToken are set
// the request carries HTTP basic auth, which Twilio requires for protected recordings.
func NewRecordingDownloader(accountSID, authToken string, logger *observability.Logger) *RecordingDownloader {
	return &RecordingDownloader{
		accountSID: accountSID,
		authToken:  authToken,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

// Fetch downloads the recording. Any non-2xx response, transport failure or empty body
// is reported as ErrRecordingUnavailable.
func (d *RecordingDownloader) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	parsed, err := url.Parse(recordingURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid recording url", ErrRecordingUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	if d.accountSID != "" && d.authToken != "" {
		req.SetBasicAuth(d.accountSID, d.authToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error(ctx, "failed to download recording", err)
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn(ctx, fmt.Sprintf("recording download returned status %d", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrRecordingUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		d.logger.Error(ctx, "failed to read recording body", err)
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrRecordingUnavailable)
	}
	return data, nil
}
