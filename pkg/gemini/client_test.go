package gemini

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemimg/pkg/config"
	"gemimg/pkg/driver"
	"gemimg/pkg/driver/drivertest"
	errs "gemimg/pkg/errors"
	"gemimg/pkg/logger"
	"gemimg/pkg/metadata"
)

type fakeSession struct {
	page        *drivertest.Page
	connectErr  error
	connected   bool
	headless    []bool
	connects    int
	disconnects int
}

func (s *fakeSession) Connect(ctx context.Context, headless bool) error {
	s.connects++
	s.headless = append(s.headless, headless)
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSession) Disconnect() error {
	s.disconnects++
	s.connected = false
	return nil
}

func (s *fakeSession) CurrentPage() (driver.Page, error) {
	if !s.connected {
		return nil, errs.NewBrowser("Browser not connected. Call Connect first")
	}
	return s.page, nil
}

type failingRemover struct{ calls int }

func (r *failingRemover) Clean(ctx context.Context, path string) (string, error) {
	r.calls++
	return "", errors.New("exit status 1")
}

func redCirclePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	cx, cy, r := w/2, h/2, h/3
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				c = color.RGBA{255, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fastDriverOptions() driver.Options {
	opts := driver.DefaultOptions()
	opts.SettleDelay = 0
	opts.InputSettleDelay = 0
	opts.LoginPollInterval = time.Millisecond
	opts.GenerationPollInterval = time.Millisecond
	opts.DownloadTimeout = time.Millisecond
	opts.DownloadRetryDelay = time.Millisecond
	return opts
}

func targetKey(s driver.Strategy) string {
	return s.(interface{ Target() driver.Target }).Target().String()
}

// scriptedPage is logged in and renders an image after a couple of polls
func scriptedPage(t *testing.T, content []byte) *drivertest.Page {
	opts := fastDriverOptions()
	page := drivertest.NewPage("about:blank")
	page.Show(targetKey(opts.Selectors.ChatInput[0]))
	page.ShowAfter(targetKey(opts.Selectors.GeneratedImage[0]), 2)
	page.Show(targetKey(opts.Selectors.DownloadButton[0]))
	page.QueueDownload(&drivertest.Download{Content: content})
	return page
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfigFor(t.TempDir())
	return cfg
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestGenerateImageEndToEnd(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	session := &fakeSession{page: scriptedPage(t, redCirclePNG(t, 64, 48))}

	result, err := GenerateImage(context.Background(), testConfig(t),
		"a red circle on white background", filepath.Join("out", "red.png"), DefaultOptions(),
		WithSessionManager(session),
		WithDriverOptions(fastDriverOptions()),
		WithLogger(logger.NewNopLogger()),
	)
	require.NoError(t, err)

	want, err := filepath.Abs(filepath.Join("out", "red.png"))
	require.NoError(t, err)
	assert.Equal(t, want, result.ImagePath)
	assert.True(t, filepath.IsAbs(result.ImagePath))
	assert.Equal(t, 64, result.Width)
	assert.Equal(t, 48, result.Height)
	assert.False(t, result.WatermarkRemoved, "tool is not installed under the test home")
	assert.FileExists(t, result.ImagePath)

	assert.Equal(t, []bool{true}, session.headless)
	assert.Equal(t, 1, session.disconnects)
	assert.Len(t, session.page.Fills, 1)
	assert.Contains(t, session.page.Fills[0], "a red circle on white background")
}

func TestGenerateImageDisconnectsOnFailure(t *testing.T) {
	page := drivertest.NewPage("about:blank")
	opts := fastDriverOptions()
	opts.LoginMaxAttempts = 2
	session := &fakeSession{page: page}

	_, err := GenerateImage(context.Background(), testConfig(t), "a cat", filepath.Join(t.TempDir(), "cat.png"), DefaultOptions(),
		WithSessionManager(session),
		WithDriverOptions(opts),
		WithLogger(logger.NewNopLogger()),
	)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, 1, session.disconnects)
}

func TestGenerateImageConnectFailure(t *testing.T) {
	session := &fakeSession{connectErr: errs.NewBrowser("Failed to launch browser")}

	_, err := GenerateImage(context.Background(), testConfig(t), "a cat", "cat.png", DefaultOptions(),
		WithSessionManager(session),
		WithLogger(logger.NewNopLogger()),
	)
	assert.True(t, errs.Is(err, errs.ErrorTypeBrowser))
	assert.Equal(t, 1, session.disconnects)
}

func TestGenerateImageZeroOptionsRunsHeadless(t *testing.T) {
	session := &fakeSession{connectErr: errs.NewBrowser("Failed to launch browser")}

	_, err := GenerateImage(context.Background(), testConfig(t), "a cat", "cat.png", Options{AspectRatio: "16:9"},
		WithSessionManager(session),
		WithLogger(logger.NewNopLogger()),
	)
	require.Error(t, err)
	assert.Equal(t, []bool{true}, session.headless)

	session = &fakeSession{connectErr: errs.NewBrowser("Failed to launch browser")}
	_, _ = GenerateImage(context.Background(), testConfig(t), "a cat", "cat.png", Options{Headed: true},
		WithSessionManager(session),
		WithLogger(logger.NewNopLogger()),
	)
	assert.Equal(t, []bool{false}, session.headless)
}

func TestClientRequiresConnect(t *testing.T) {
	client := NewClient(testConfig(t), WithSessionManager(&fakeSession{}), WithLogger(logger.NewNopLogger()))

	_, err := client.GenerateImage(context.Background(), Request{Prompt: "a cat", OutputPath: filepath.Join(t.TempDir(), "x.png")})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeBrowser))

	assert.NoError(t, client.Disconnect())
	assert.NoError(t, client.Disconnect())
}

func TestClientRejectsEmptyPrompt(t *testing.T) {
	client := NewClient(testConfig(t), WithSessionManager(&fakeSession{}), WithLogger(logger.NewNopLogger()))

	_, err := client.GenerateImage(context.Background(), Request{Prompt: "  ", OutputPath: "x.png"})
	assert.True(t, errs.Is(err, errs.ErrorTypeGeneration))
}

func TestClientWatermarkFailureDoesNotFailGeneration(t *testing.T) {
	content := redCirclePNG(t, 32, 32)
	session := &fakeSession{page: scriptedPage(t, content)}
	remover := &failingRemover{}

	client := NewClient(testConfig(t),
		WithSessionManager(session),
		WithRemover(remover),
		WithDriverOptions(fastDriverOptions()),
		WithLogger(logger.NewNopLogger()),
	)
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))
	defer client.Disconnect()

	out := filepath.Join(t.TempDir(), "circle.png")
	result, err := client.GenerateImage(context.Background(), Request{Prompt: "a red circle", OutputPath: out})
	require.NoError(t, err)

	assert.Equal(t, 1, remover.calls)
	assert.False(t, result.WatermarkRemoved)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestClientWatermarkDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watermark.Enabled = false
	session := &fakeSession{page: scriptedPage(t, redCirclePNG(t, 8, 8))}
	remover := &failingRemover{}

	client := NewClient(cfg, WithSessionManager(session), WithRemover(remover),
		WithDriverOptions(fastDriverOptions()), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))

	_, err := client.GenerateImage(context.Background(), Request{Prompt: "dot", OutputPath: filepath.Join(t.TempDir(), "dot.png")})
	require.NoError(t, err)
	assert.Zero(t, remover.calls)
}

func TestClientWritesMetadata(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.WriteMetadata = true
	session := &fakeSession{page: scriptedPage(t, redCirclePNG(t, 40, 30))}

	client := NewClient(cfg, WithSessionManager(session),
		WithDriverOptions(fastDriverOptions()), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))

	out := filepath.Join(t.TempDir(), "scene.png")
	result, err := client.GenerateImage(context.Background(), Request{Prompt: "a scene", OutputPath: out, AspectRatio: "4:3"})
	require.NoError(t, err)
	assert.Equal(t, out+".json", result.MetadataPath)

	meta, err := metadata.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "a scene", meta.Prompt)
	assert.Equal(t, "4:3", meta.AspectRatio)
	assert.Contains(t, meta.SentPrompt, "(aspect ratio: 4:3)")
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, "4:3", meta.GetAspectRatio())
}

func TestClientUnknownFormatReportsZeroDimensions(t *testing.T) {
	session := &fakeSession{page: scriptedPage(t, []byte("not an image"))}
	client := NewClient(testConfig(t), WithSessionManager(session),
		WithDriverOptions(fastDriverOptions()), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))

	result, err := client.GenerateImage(context.Background(), Request{Prompt: "x", OutputPath: filepath.Join(t.TempDir(), "x.png")})
	require.NoError(t, err)
	assert.Zero(t, result.Width)
	assert.Zero(t, result.Height)
}

func TestClientRepeatedGenerations(t *testing.T) {
	content := redCirclePNG(t, 16, 16)
	page := scriptedPage(t, content)
	page.QueueDownload(&drivertest.Download{Content: content})
	session := &fakeSession{page: page}

	client := NewClient(testConfig(t), WithSessionManager(session),
		WithDriverOptions(fastDriverOptions()), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))

	dir := t.TempDir()
	for _, name := range []string{"one.png", "two.png"} {
		result, err := client.GenerateImage(context.Background(), Request{Prompt: name, OutputPath: filepath.Join(dir, name)})
		require.NoError(t, err)
		assert.Equal(t, 16, result.Width)
	}
	assert.Len(t, page.Gotos, 2)
	assert.Equal(t, 1, session.connects)
}

func TestClientRefusal(t *testing.T) {
	page := scriptedPage(t, redCirclePNG(t, 8, 8))
	page.Body = "I can't create images like that."
	session := &fakeSession{page: page}

	client := NewClient(testConfig(t), WithSessionManager(session),
		WithDriverOptions(fastDriverOptions()), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{}))

	out := filepath.Join(t.TempDir(), "x.png")
	_, err := client.GenerateImage(context.Background(), Request{Prompt: "x", OutputPath: out})
	assert.True(t, errs.Is(err, errs.ErrorTypeGeneration))
	assert.NoFileExists(t, out)
}

func TestEnsureLoggedIn(t *testing.T) {
	page := drivertest.NewPage("about:blank")
	opts := fastDriverOptions()
	page.ShowAfter(targetKey(opts.Selectors.ChatInput[0]), 3)
	session := &fakeSession{page: page}

	client := NewClient(testConfig(t), WithSessionManager(session),
		WithDriverOptions(opts), WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Connect(context.Background(), ConnectOptions{Headed: true}))

	require.NoError(t, client.EnsureLoggedIn(context.Background()))
	assert.Equal(t, []bool{false}, session.headless)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.False(t, opts.Headed)
	assert.Equal(t, 120*time.Second, opts.Timeout)
	assert.Empty(t, opts.AspectRatio)
}
