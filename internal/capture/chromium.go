package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "planner/internal/log"
)

const (
	captureTimeout = 30 * time.Second
	readySelector  = `[data-ready="true"]`
)

// CaptureOptions describes one screenshot. The viewport size comes from the
// snapshot section of the config.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?month=2024-03".
	URL        string
	OutputPath string
	Width      int
	Height     int
}

func (o CaptureOptions) validate() error {
	switch {
	case o.URL == "":
		return errors.New("capture: URL is required")
	case o.OutputPath == "":
		return errors.New("capture: OutputPath is required")
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("capture: invalid viewport %dx%d", o.Width, o.Height)
	}
	return nil
}

// CaptureCalendarPNG renders opts.URL in headless Chromium once the page
// marks itself ready and writes a full-page PNG to opts.OutputPath.
func CaptureCalendarPNG(parentCtx context.Context, opts CaptureOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, captureTimeout)
	defer cancelTimeout()

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return fmt.Errorf("capture: render %s: %w", opts.URL, err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o700); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write %s: %w", opts.OutputPath, err)
	}

	appLog.Info("capture: snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}

// CalendarURL is the month page URL under base for a "YYYY-MM" month. An
// empty month means the current one.
func CalendarURL(base, month string) string {
	u := base + "/calendar"
	if month != "" {
		u += "?" + url.Values{"month": {month}}.Encode()
	}
	return u
}

// ServeLocal serves h on an ephemeral loopback port until the returned stop
// function is called. It lets a one-shot snapshot render the page without a
// running server.
func ServeLocal(h http.Handler) (base string, stop func(), err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("capture: listen: %w", err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("capture: local server failed", err)
		}
	}()

	stop = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
