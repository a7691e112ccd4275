// Command poisson solves a manufactured Poisson problem on a Cartesian mesh
// and reports the discrete error.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/notargets/cellfield/assembly"
	"github.com/notargets/cellfield/element"
	"github.com/notargets/cellfield/fespace"
	"github.com/notargets/cellfield/geometry"
	"github.com/notargets/cellfield/integration"
	"github.com/notargets/cellfield/mesh"
	"github.com/notargets/cellfield/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	configPath = flag.String("config", "", "YAML problem file")
	cells      = flag.Int("cells", 0, "Cells per coordinate (overrides the config)")
	order      = flag.Int("order", 0, "Element order (overrides the config)")
	problem    = flag.String("problem", "", "Manufactured problem: linear-x, linear, quadratic")
	partitions = flag.Int("partitions", 0, "Cell partitions for assembly")
	workers    = flag.Int("workers", 0, "Concurrent assembly workers")
	strategy   = flag.String("strategy", "", "Partition strategy: block, round-robin")
	snapshot   = flag.String("snapshot", "", "Write the system and solution as CBOR to this file")
	logLevel   = flag.String("log-level", "info", "Log level")
	pretty     = flag.Bool("pretty", true, "Human readable console logs")
	enableOTel = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	metrics    = flag.String("metrics", "", "Serve Prometheus metrics on this address during the solve")
)

type result struct {
	Cells    int
	Free     int
	Fixed    int
	Residual float64
	L2       float64
}

func main() {
	flag.Parse()
	if err := utils.SetupLogger(*logLevel, *pretty); err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *metrics != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metrics, nil); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		log.Info().Str("addr", *metrics).Msg("Serving metrics")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	overlayFlags(&cfg)

	start := time.Now()
	res, err := run(context.Background(), cfg)
	if err != nil {
		log.Error().Err(err).Msg("Solve failed")
		os.Exit(1)
	}
	log.Info().
		Int("cells", res.Cells).
		Int("free_dofs", res.Free).
		Int("fixed_dofs", res.Fixed).
		Float64("residual", res.Residual).
		Float64("l2_error", res.L2).
		Str("duration", time.Since(start).String()).
		Msg("Poisson solve complete")
}

// overlayFlags applies the flags that were set on the command line.
func overlayFlags(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cells":
			for d := range cfg.Mesh.Cells {
				cfg.Mesh.Cells[d] = *cells
			}
		case "order":
			cfg.Mesh.Order = *order
		case "problem":
			cfg.Problem = *problem
		case "partitions":
			cfg.Assembly.Partitions = *partitions
		case "workers":
			cfg.Assembly.Workers = *workers
		case "strategy":
			cfg.Assembly.Strategy = *strategy
		case "snapshot":
			cfg.Snapshot = *snapshot
		}
	})
}

func run(ctx context.Context, cfg Config) (*result, error) {
	model, err := mesh.NewCartesianModel(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	ref, err := element.NewLagrangeCube(element.Dimensionality(model.Dim), cfg.Mesh.Order)
	if err != nil {
		return nil, err
	}
	trian, err := geometry.NewTriangulation(model, ref)
	if err != nil {
		return nil, err
	}
	boundary, err := model.BoundaryNodes(cfg.Boundary...)
	if err != nil {
		return nil, err
	}
	space, err := fespace.NewSpace(trian, boundary)
	if err != nil {
		return nil, err
	}
	m, err := problemFor(cfg.Problem, model.Dim)
	if err != nil {
		return nil, err
	}
	log.Info().Str("mesh", model.String()).Str("element", ref.GetProperties().ShortName).
		Str("problem", cfg.Problem).Msg("Solving")

	sol, err := assembly.SolvePoisson(ctx, assembly.Poisson{
		Space:     space,
		Source:    m.f,
		Dirichlet: m.u,
		Degree:    cfg.Degree,
	}, cfg.Assembly)
	if err != nil {
		return nil, err
	}
	dOmega, err := integration.NewMeasure(trian, 2*cfg.Mesh.Order+2)
	if err != nil {
		return nil, err
	}
	l2, err := fespace.L2Error(sol.U.CellField, m.u, dOmega)
	if err != nil {
		return nil, err
	}
	if cfg.Snapshot != "" {
		if err := writeSnapshot(cfg.Snapshot, sol); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Snapshot).Msg("Snapshot written")
	}
	return &result{
		Cells:    trian.NumCells(),
		Free:     space.NumFreeDofs(),
		Fixed:    space.NumFixedDofs(),
		Residual: sol.Residual,
		L2:       l2,
	}, nil
}

func writeSnapshot(path string, sol *assembly.Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := assembly.WriteSnapshot(f, assembly.NewSnapshot(sol.System, sol.U.Free, sol.U.Fixed)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("cellfield-poisson"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
