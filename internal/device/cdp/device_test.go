package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

func TestScrollDelta(t *testing.T) {
	assert.Equal(t, 400.0, scrollDelta(schemas.ScrollDown, 1000))
	assert.Equal(t, -400.0, scrollDelta(schemas.ScrollUp, 1000))
}

func findChrome() bool {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// TestDeviceAgainstPage drives a real headless Chrome against a local page
// that records taps and typed text.
func TestDeviceAgainstPage(t *testing.T) {
	if testing.Short() || !findChrome() {
		t.Skip("requires a local Chrome; skipped in short mode")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head><meta name="viewport" content="width=device-width"></head>
<body style="margin:0;height:4000px">
<input id="q" style="position:absolute;left:0;top:0;width:200px;height:40px">
<script>
window.taps = 0;
document.addEventListener('touchend', () => window.taps++);
</script></body></html>`)
	}))
	defer srv.Close()

	d, err := New(zaptest.NewLogger(t), Options{
		Headless:          true,
		Width:             390,
		Height:            844,
		DeviceScaleFactor: 3,
		ScreenshotDir:     t.TempDir(),
	})
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, d.OpenURL(ctx, srv.URL))
	require.NoError(t, d.InputText(ctx, 100, 20, "hello"))
	require.NoError(t, d.Scroll(ctx, schemas.ScrollDown))

	var value string
	var taps int
	require.NoError(t, chromedp.Run(d.browserCtx,
		chromedp.Value("#q", &value, chromedp.ByQuery),
		chromedp.Evaluate(`window.taps`, &taps),
	))
	assert.Equal(t, "hello", value)
	assert.Equal(t, 1, taps)

	path, err := d.CaptureScreenshot(ctx)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	size, err := d.ScreenSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.ScreenSize{Width: 390, Height: 844}, size)
}
