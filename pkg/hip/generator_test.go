package hip

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/hipreport/pkg/config"
	"github.com/haasonsaas/hipreport/pkg/posture"
	"github.com/haasonsaas/hipreport/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type generatorEnv struct {
	gen      *Generator
	dir      string
	recorder *telemetry.SpanRecorder
	logs     *bytes.Buffer
}

func newGeneratorEnv(t *testing.T, release string) generatorEnv {
	t.Helper()
	tool, dir := writeTool(t, toolOutput(requestDoc, baseReport), 0)

	cfg := config.DefaultConfig()
	cfg.GlobalProtect.InstallDir = dir
	cfg.GlobalProtect.Tool = tool
	cfg.OSRelease.Path = writeRelease(t, release)
	require.NoError(t, cfg.Validate())

	recorder := telemetry.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logs := &bytes.Buffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)

	return generatorEnv{
		gen:      NewGenerator(cfg, logger, provider.Tracer("test")),
		dir:      dir,
		recorder: recorder,
		logs:     logs,
	}
}

func TestGenerate(t *testing.T) {
	env := newGeneratorEnv(t, "NAME=\"Test\"\nPRETTY_NAME=\"Test Linux 1.0\"\n")

	out, err := env.gen.Generate(context.Background(), Input{
		Cookie:   "user=alice&domain=corp&computer=host1",
		ClientIP: "10.0.0.1,fe80::1",
		MD5:      "0123456789abcdef",
		ClientOS: "Linux",
	})
	require.NoError(t, err)

	doc := mustParse(t, out)
	tags := childTags(doc.Root())
	require.Equal(t, []string{"md5-sum", "user-name", "domain", "host-name", "ip-address", "ipv6-address"}, tags[1:7])
	require.Equal(t, "Test Linux 1.0", doc.Root().FindElement(hostInfoOSPath).Text())

	require.Equal(t, []string{"hip.collect", "hip.fetch", "hip.enrich", "hip.serialize"}, env.recorder.Names())
	require.Contains(t, env.logs.String(), "Decoded cookie")
	require.Contains(t, env.logs.String(), "Test Linux 1.0")
}

func TestGenerateReportAloneAfterPrefix(t *testing.T) {
	env := newGeneratorEnv(t, "PRETTY_NAME=\"Test Linux 1.0\"\n")
	env.gen.Fetcher.Tool, env.gen.Fetcher.Dir = writeTool(t, toolOutput(baseReport), 0)

	out, err := env.gen.Generate(context.Background(), Input{
		Cookie:   "user=alice&domain=corp&computer=host1",
		ClientIP: "10.0.0.1",
	})
	require.NoError(t, err)

	doc := mustParse(t, out)
	require.Equal(t, "hip-report", doc.Root().Tag)
	require.Equal(t, []string{"md5-sum", "user-name", "domain", "host-name", "ip-address", "hip-report-version"}, childTags(doc.Root())[1:7])
	require.Equal(t, "Test Linux 1.0", doc.Root().FindElement(hostInfoOSPath).Text())
}

func TestGenerateMissingCookieKeySkipsTool(t *testing.T) {
	env := newGeneratorEnv(t, "PRETTY_NAME=\"Test Linux 1.0\"\n")

	_, err := env.gen.Generate(context.Background(), Input{
		Cookie:   "user=alice&computer=host1",
		ClientIP: "10.0.0.1",
	})
	require.ErrorIs(t, err, posture.ErrMissingCookieKey)

	_, statErr := os.Stat(filepath.Join(env.dir, "ran.marker"))
	require.True(t, os.IsNotExist(statErr), "tool must not run when the cookie is incomplete")

	span := env.recorder.FirstSpanNamed("hip.collect")
	require.NotNil(t, span)
	require.Equal(t, codes.Error, span.Status().Code)
	require.Nil(t, env.recorder.FirstSpanNamed("hip.fetch"))
}

func TestGenerateNoOSDescription(t *testing.T) {
	env := newGeneratorEnv(t, "ID=mystery\n")
	in := Input{Cookie: "user=alice&domain=corp&computer=host1", ClientIP: "10.0.0.1"}

	_, err := env.gen.Generate(context.Background(), in)
	require.ErrorIs(t, err, posture.ErrNoOSDescription)

	env.gen.AllowMissingOS = true
	out, err := env.gen.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "", mustParse(t, out).Root().FindElement(hostInfoOSPath).Text())
}

func TestGenerateMissingOSReleaseFile(t *testing.T) {
	env := newGeneratorEnv(t, "PRETTY_NAME=x\n")
	env.gen.OSReleasePath = filepath.Join(t.TempDir(), "os-release")
	env.gen.AllowMissingOS = true

	_, err := env.gen.Generate(context.Background(), Input{Cookie: "user=a&domain=b&computer=c"})
	require.ErrorIs(t, err, os.ErrNotExist)
}
