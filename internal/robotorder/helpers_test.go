package robotorder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

// fakePage records every interaction and replays scripted page state.
type fakePage struct {
	mu sync.Mutex

	calls  []string
	clicks map[string]int

	// bannerStates are returned by successive visibility checks of the error
	// banner; the last state repeats.
	bannerSelector string
	bannerStates   []bool
	bannerChecks   int

	shot        []byte
	receiptHTML string
	failures    map[string]error
}

func newFakePage(t *testing.T, cfg *config.Config) *fakePage {
	t.Helper()
	return &fakePage{
		clicks:         make(map[string]int),
		bannerSelector: cfg.Site().Selectors.ErrorBanner,
		bannerStates:   []bool{false},
		shot:           pngBytes(t, 48, 32),
		receiptHTML:    `<div id="receipt"><h3>Receipt</h3><p class="badge badge-success">RSB-ROBO-ORDER-7F3A</p></div>`,
		failures:       make(map[string]error),
	}
}

func (p *fakePage) record(ctx context.Context, call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	p.calls = append(p.calls, call)
	if err, ok := p.failures[call]; ok {
		return err
	}
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.record(ctx, "navigate "+url)
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if err := p.record(ctx, "click "+selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.clicks[selector]++
	p.mu.Unlock()
	return nil
}

func (p *fakePage) SelectOption(ctx context.Context, selector, value string) error {
	return p.record(ctx, fmt.Sprintf("select %s=%s", selector, value))
}

func (p *fakePage) Fill(ctx context.Context, selector, text string) error {
	return p.record(ctx, fmt.Sprintf("fill %s=%s", selector, text))
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	return p.record(ctx, "wait "+selector)
}

func (p *fakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := p.record(ctx, "visible "+selector); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if selector != p.bannerSelector {
		return false, nil
	}
	i := p.bannerChecks
	if i >= len(p.bannerStates) {
		i = len(p.bannerStates) - 1
	}
	p.bannerChecks++
	return p.bannerStates[i], nil
}

func (p *fakePage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if err := p.record(ctx, "screenshot "+selector); err != nil {
		return nil, err
	}
	return p.shot, nil
}

func (p *fakePage) OuterHTML(ctx context.Context, selector string) (string, error) {
	if err := p.record(ctx, "html "+selector); err != nil {
		return "", err
	}
	return p.receiptHTML, nil
}

func (p *fakePage) clickCount(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[selector]
}

func (p *fakePage) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// testConfig returns defaults rooted in a temp directory with retry pacing
// shortened for tests.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.SetOutputDir(t.TempDir())
	cfg.SubmitCfg.RetryInterval = time.Millisecond
	cfg.SubmitCfg.SettleDelay = 0
	return cfg
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: 90, B: uint8(y * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
