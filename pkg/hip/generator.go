package hip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/haasonsaas/hipreport/pkg/config"
	"github.com/haasonsaas/hipreport/pkg/posture"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/haasonsaas/hipreport/pkg/hip"

// Input is what openconnect passes on the command line.
type Input struct {
	Cookie   string
	ClientIP string
	MD5      string
	ClientOS string
}

// Generator turns PanGpHip output into the report openconnect submits.
type Generator struct {
	Fetcher        *Fetcher
	OSReleasePath  string
	AllowMissingOS bool
	Logger         zerolog.Logger
	Tracer         trace.Tracer
}

func NewGenerator(cfg *config.Config, logger zerolog.Logger, tracer trace.Tracer) *Generator {
	return &Generator{
		Fetcher: &Fetcher{
			Tool:        cfg.GlobalProtect.Tool,
			Dir:         cfg.GlobalProtect.InstallDir,
			PrefixBytes: cfg.HIP.PrefixBytes,
			Document:    cfg.HIP.Document,
			Timeout:     time.Duration(cfg.HIP.TimeoutS) * time.Second,
			Logger:      logger,
		},
		OSReleasePath:  cfg.OSRelease.Path,
		AllowMissingOS: cfg.OSRelease.AllowMissing,
		Logger:         logger,
		Tracer:         tracer,
	}
}

// Generate collects the input fields, fetches the base report, enriches it
// and returns the serialized document. The cookie is checked before the
// tool is started.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	tracer := g.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	var fields *posture.Fields
	err := g.stage(ctx, tracer, "hip.collect", func(ctx context.Context, span trace.Span) error {
		var err error
		fields, err = posture.CollectFields(in.Cookie, in.ClientIP, in.MD5, in.ClientOS)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Bool("hip.ipv6", fields.HasIPv6()))
		g.Logger.Debug().
			Str("user", fields.User).
			Str("domain", fields.Domain).
			Str("computer", fields.Computer).
			Str("ip4", fields.IPv4).
			Str("ip6", fields.IPv6).
			Str("client_os", fields.ClientOS).
			Msg("Decoded cookie")
		return nil
	})
	if err != nil {
		return "", err
	}

	var doc *etree.Document
	err = g.stage(ctx, tracer, "hip.fetch", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("hip.tool", g.Fetcher.Tool),
			attribute.Int("hip.document", g.Fetcher.Document),
		)
		var err error
		doc, err = g.Fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		return "", err
	}

	err = g.stage(ctx, tracer, "hip.enrich", func(ctx context.Context, span trace.Span) error {
		desc, err := g.describeHost()
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("hip.os", desc))
		return Enrich(doc, fields, desc)
	})
	if err != nil {
		return "", err
	}

	var output string
	err = g.stage(ctx, tracer, "hip.serialize", func(ctx context.Context, span trace.Span) error {
		var err error
		output, err = Serialize(doc)
		span.SetAttributes(attribute.Int("hip.bytes", len(output)))
		return err
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

// describeHost reads the os-release description for the host-info OS
// element. A file without a usable name fails unless AllowMissingOS is set.
func (g *Generator) describeHost() (string, error) {
	g.Logger.Debug().Str("path", g.OSReleasePath).Msg("Getting release")
	rel, err := posture.ReadOSRelease(g.OSReleasePath)
	if err != nil {
		return "", fmt.Errorf("read os-release: %w", err)
	}
	desc, err := rel.Description()
	if errors.Is(err, posture.ErrNoOSDescription) && g.AllowMissingOS {
		g.Logger.Warn().Str("path", g.OSReleasePath).Msg("No OS description, leaving host-info os empty")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.OSReleasePath, err)
	}
	g.Logger.Debug().Str("release", desc).Msg("Release")
	return desc, nil
}

func (g *Generator) stage(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context, trace.Span) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.Logger.Error().Err(err).Str("stage", name).Msg("HIP report stage failed")
		return err
	}
	return nil
}
