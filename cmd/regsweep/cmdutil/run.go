package cmdutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/regsweep/internal/cli/credentials"
	"github.com/marmos91/regsweep/internal/logger"
	"github.com/marmos91/regsweep/internal/telemetry"
	"github.com/marmos91/regsweep/pkg/abort"
	"github.com/marmos91/regsweep/pkg/config"
	"github.com/marmos91/regsweep/pkg/ledger"
	"github.com/marmos91/regsweep/pkg/metrics"
	"github.com/marmos91/regsweep/pkg/reconcile"
	"github.com/marmos91/regsweep/pkg/registry"
)

// ResolveToken resolves the API token. Flag, environment and config file are
// already folded into cfg by LoadConfig; below them sit the credentials
// stored by `regsweep login`, then GITHUB_TOKEN.
func ResolveToken(cfg *config.Config) (string, error) {
	if cfg.API.Token != "" {
		return cfg.API.Token, nil
	}
	if store, err := credentials.NewStore(); err == nil {
		if tok, ok := store.TokenFor(cfg.API.URL); ok {
			return tok, nil
		}
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("no API token: run 'regsweep login', pass --token, or set GITHUB_TOKEN")
}

// NewAPIClient builds the GitHub Packages client from configuration.
func NewAPIClient(cfg *config.Config, token string) (*ledger.Client, error) {
	kind, err := ledger.ParseOwnerKind(cfg.API.OwnerKind)
	if err != nil {
		return nil, err
	}
	return ledger.New(cfg.API.URL).
		WithToken(token).
		WithOwnerKind(kind).
		WithPageSize(cfg.API.PageSize).
		WithRetryMax(cfg.API.RetryMax).
		WithTimeout(cfg.API.Timeout).
		WithRateLimit(cfg.API.RateLimit), nil
}

// NewRegistryClient builds the OCI registry client from configuration. An
// empty registry token falls back to the API token, which is what ghcr.io
// expects anyway.
func NewRegistryClient(cfg *config.Config, apiToken string) *registry.Client {
	token := cfg.Registry.Token
	if token == "" {
		token = apiToken
	}
	return registry.New(cfg.Registry.URL).
		WithToken(token).
		WithTimeout(cfg.Registry.Timeout).
		WithRateLimit(cfg.Registry.RateLimit)
}

// InitTelemetry starts tracing when enabled. The returned shutdown must run
// before exit so buffered spans flush.
func InitTelemetry(ctx context.Context, cfg *config.Config, version string) (func(context.Context) error, error) {
	return telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "regsweep",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
}

// RunOptions selects what one reconciliation run does.
type RunOptions struct {
	// Operation names the subcommand for logs and spans: list, report, delete.
	Operation string
	// Tags is the deletion filter (empty for list and report without one).
	Tags []string
	// Concurrency overrides the configured fetch/delete parallelism when > 0.
	Concurrency int
}

// Run is one assembled reconciliation run: clients, abort signal, optional
// metrics recorder and the root span. Commands build it once, reconcile,
// consume the planner, then Finish it.
type Run struct {
	Config   *config.Config
	Repo     Repository
	Opts     RunOptions
	Signal   *abort.Signal
	API      *ledger.Client
	Registry *registry.Client
	Recorder *metrics.Recorder
	RunID    string

	versions *ledgerVersions
	ctx      context.Context
	span     trace.Span
	start    time.Time
}

// NewRun wires a run. ctx is the command context: cancelling it (Ctrl-C)
// aborts the run with reason "interrupted".
func NewRun(ctx context.Context, cfg *config.Config, repo Repository, opts RunOptions) (*Run, error) {
	token, err := ResolveToken(cfg)
	if err != nil {
		return nil, err
	}
	api, err := NewAPIClient(cfg, token)
	if err != nil {
		return nil, err
	}
	reg := NewRegistryClient(cfg, token)

	if opts.Concurrency > 0 {
		cfg.Sweep.Concurrency = opts.Concurrency
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewRecorder(repo.String())
	}

	signal := abort.New(ctx)
	runID := uuid.NewString()
	spanCtx, span := telemetry.StartReconcileSpan(signal.Context(), repo.String(), opts.Operation)

	logger.Info("starting run",
		logger.KeyRunID, runID,
		logger.KeyPackage, repo.String(),
		logger.KeyCommand, opts.Operation)

	return &Run{
		Config:   cfg,
		Repo:     repo,
		Opts:     opts,
		Signal:   signal,
		API:      api,
		Registry: reg,
		Recorder: recorder,
		RunID:    runID,
		versions: &ledgerVersions{client: api, owner: repo.Owner, pkg: repo.Package},
		ctx:      spanCtx,
		span:     span,
		start:    time.Now(),
	}, nil
}

// Context returns the run context. It carries the root span and trips when
// the run aborts.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Reconcile enumerates the ledger, fetches every tagged index and returns
// the planner over the folded graph.
func (r *Run) Reconcile() (*reconcile.Planner, error) {
	engine := reconcile.NewEngine(
		r.versions,
		&registryManifests{client: r.Registry, repo: RepositoryPath(r.Repo)},
		r.Signal,
		r.Recorder,
		reconcile.Options{
			Package:    r.Repo.String(),
			DeleteTags: r.Opts.Tags,
			Workers:    r.Config.Sweep.Concurrency,
			QueueSize:  r.Config.Sweep.QueueSize,
		})

	graph, err := engine.Reconcile(r.ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.NewPlanner(graph, r.versions, r.Signal, r.Recorder, r.Repo.String(), r.Opts.Tags), nil
}

// Finish records the run outcome, writes the metrics textfile when one is
// configured and ends the root span.
func (r *Run) Finish(runErr error) {
	if runErr != nil {
		telemetry.RecordError(r.ctx, runErr)
	}
	r.Recorder.FinishRun(runErr == nil)
	if r.Config.Metrics.Textfile != "" {
		if err := r.Recorder.WriteTextfile(r.Config.Metrics.Textfile); err != nil {
			logger.Error("metrics textfile write failed",
				logger.KeyError, err.Error())
		}
	}
	r.span.End()

	outcome := reconcile.OutcomeOK
	if runErr != nil {
		outcome = reconcile.OutcomeError
	}
	logger.Info("run finished",
		logger.KeyRunID, r.RunID,
		logger.KeyOutcome, outcome,
		logger.KeyDurationMs, logger.Duration(r.start))
}

// RepositoryPath returns the ghcr repository path of a package. Registry
// paths are lowercase even when the GitHub owner is not.
func RepositoryPath(repo Repository) string {
	return strings.ToLower(repo.String())
}

// ledgerVersions binds the API client to one package as the version ledger.
type ledgerVersions struct {
	client *ledger.Client
	owner  string
	pkg    string
}

func (l *ledgerVersions) EachVersion(ctx context.Context, fn func(reconcile.Version) error) error {
	return l.client.EachVersion(ctx, l.owner, l.pkg, func(v ledger.PackageVersion) error {
		return fn(reconcile.Version{
			ID:        v.ID,
			Digest:    v.Digest(),
			Tags:      v.Tags(),
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
		})
	})
}

func (l *ledgerVersions) DeleteVersion(ctx context.Context, id int64) error {
	return l.client.DeleteVersion(ctx, l.owner, l.pkg, id)
}

// registryManifests binds the registry client to one repository as the
// manifest source.
type registryManifests struct {
	client *registry.Client
	repo   string
}

func (r *registryManifests) ManifestDigests(ctx context.Context, reference string) ([]digest.Digest, error) {
	return r.client.ManifestDigests(ctx, r.repo, reference)
}
