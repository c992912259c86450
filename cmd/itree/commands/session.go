package commands

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/itree/pkg/config"
	"github.com/Sumatoshi-tech/itree/pkg/index"
	"github.com/Sumatoshi-tech/itree/pkg/observability"
	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
	"github.com/Sumatoshi-tech/itree/pkg/version"
)

// session is the loaded state shared by the query, check and serve commands.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	index     *index.Index
}

// openSession loads configuration, initializes observability and fills an
// index from files.
func openSession(ctx context.Context, globals *GlobalOptions, mode observability.AppMode, files []string) (*session, error) {
	cfg, err := config.LoadConfig(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(mode, version.Version)

	switch {
	case globals.Quiet:
		obsCfg.LogLevel = slog.LevelError
	case globals.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{cfg: cfg, providers: providers}

	s.index, err = index.New(
		index.WithName(cfg.Index.Name),
		index.WithLogger(providers.Logger),
		index.WithMeter(providers.MeterProvider.Meter("itree.index")),
		index.WithTracer(providers.TracerProvider.Tracer("itree.index")),
		index.WithVerifyOnReplace(cfg.Index.VerifyOnLoad),
	)
	if err != nil {
		s.close(ctx)

		return nil, fmt.Errorf("create index: %w", err)
	}

	err = s.load(ctx, files)
	if err != nil {
		s.close(ctx)

		return nil, err
	}

	return s, nil
}

func (s *session) load(ctx context.Context, files []string) error {
	parsed, err := s.readFiles(files)
	if err != nil {
		return err
	}

	for i, records := range parsed {
		n, loadErr := s.index.Load(ctx, records)
		if loadErr != nil {
			return fmt.Errorf("load %s: %w", files[i], loadErr)
		}

		s.providers.Logger.InfoContext(ctx, "range file loaded",
			"path", files[i],
			"intervals", humanize.Comma(int64(n)),
		)
	}

	return s.verifyOnLoad()
}

// reload rereads files and swaps them into the index in one step. The fresh
// tree is verified before the swap, so a failed reload keeps the old content.
func (s *session) reload(ctx context.Context, files []string) error {
	parsed, err := s.readFiles(files)
	if err != nil {
		return err
	}

	var records []rangefile.Record
	for _, part := range parsed {
		records = append(records, part...)
	}

	_, err = s.index.Replace(ctx, records)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	return nil
}

// readFiles parses files concurrently, keeping their order.
func (s *session) readFiles(files []string) ([][]rangefile.Record, error) {
	maxSize, err := s.cfg.Input.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	opts := rangefile.Options{MaxSize: maxSize}
	parsed := make([][]rangefile.Record, len(files))

	eg := new(errgroup.Group)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range files {
		eg.Go(func() error {
			records, loadErr := rangefile.LoadFile(path, opts)
			if loadErr != nil {
				return fmt.Errorf("load %s: %w", path, loadErr)
			}

			parsed[i] = records

			return nil
		})
	}

	err = eg.Wait()
	if err != nil {
		return nil, err
	}

	return parsed, nil
}

func (s *session) verifyOnLoad() error {
	if !s.cfg.Index.VerifyOnLoad {
		return nil
	}

	err := s.index.Verify()
	if err != nil {
		return fmt.Errorf("verify index: %w", err)
	}

	return nil
}

func (s *session) close(ctx context.Context) {
	if s.index != nil {
		closeErr := s.index.Close()
		if closeErr != nil {
			s.providers.Logger.WarnContext(ctx, "index close failed", "error", closeErr)
		}
	}

	shutdownErr := s.providers.Shutdown(context.WithoutCancel(ctx))
	if shutdownErr != nil {
		s.providers.Logger.WarnContext(ctx, "observability shutdown failed", "error", shutdownErr)
	}
}
