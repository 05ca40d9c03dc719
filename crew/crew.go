// Package crew assembles the data-scientist team: a data analyst, a coder
// and a slides generator coordinated by a supervisor.
package crew

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/artifact"
	"github.com/hupe1980/agentcrew/code"
	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/datatools"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/metrics"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/runner"
	"github.com/hupe1980/agentcrew/session"
	"github.com/hupe1980/agentcrew/tool"
)

// Deps are the collaborators the agents' tools use.
type Deps struct {
	Data      *datatools.DB
	Docs      *memory.InMemoryStore
	Artifacts *artifact.Store
	Executor  code.Executor

	// Callbacks are registered on every agent of the crew.
	Callbacks []agent.Callback
	OnPartial func(agentName string, chunk model.Response)
	Logger    logging.Logger
	// Now dates the prompts. Defaults to time.Now.
	Now func() time.Time
}

// New builds the supervisor and its three sub-agents on llm.
func New(cfg *config.Config, llm model.Model, deps Deps) (*agent.Supervisor, error) {
	if deps.Data == nil || deps.Artifacts == nil || deps.Executor == nil {
		return nil, errors.New("crew: data, artifacts and executor are required")
	}

	if deps.Logger == nil {
		deps.Logger = logging.NoOpLogger{}
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	vars := map[string]any{
		"data_db_path":     absPath(cfg.DataDBPath),
		"output_dir":       absPath(cfg.OutputDirectory),
		"today":            deps.Now().Format("2006-01-02"),
		"data_analyst":     DataAnalystName,
		"coder":            CoderName,
		"slides_generator": SlidesGeneratorName,
	}

	common := func(o *agent.ModelAgentOptions) {
		o.MaxTurns = cfg.Agent.MaxTurns
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.ToolTimeout = cfg.Agent.ToolTimeout
		o.Stream = deps.OnPartial != nil
		o.OnPartial = deps.OnPartial
		o.Callbacks = deps.Callbacks
		o.Logger = deps.Logger
	}

	runPython := code.NewRunPythonTool(deps.Executor)
	listFiles := artifact.NewListTool(deps.Artifacts)

	analyst, err := agent.NewModelAgent(DataAnalystName, llm, common, func(o *agent.ModelAgentOptions) {
		o.Description = "Answers questions about the sales and customer data by querying the database."
		o.Instruction = agent.NewInstructionFromTemplate(dataAnalystPrompt, vars)
		o.Tools = datatools.Tools(deps.Data, deps.Docs)
	})
	if err != nil {
		return nil, err
	}

	coder, err := agent.NewModelAgent(CoderName, llm, common, func(o *agent.ModelAgentOptions) {
		o.Description = "Writes and executes python code for analysis, machine learning and charts."
		o.Instruction = agent.NewInstructionFromTemplate(coderPrompt, vars)
		o.Tools = []tool.Tool{runPython, listFiles}
	})
	if err != nil {
		return nil, err
	}

	slides, err := agent.NewModelAgent(SlidesGeneratorName, llm, common, func(o *agent.ModelAgentOptions) {
		o.Description = "Creates PowerPoint presentations with python-pptx and saves them to the output directory."
		o.Instruction = agent.NewInstructionFromTemplate(slidesGeneratorPrompt, vars)
		o.Tools = []tool.Tool{runPython, listFiles}
	})
	if err != nil {
		return nil, err
	}

	return agent.NewSupervisor(SupervisorName, llm, []agent.Agent{analyst, coder, slides}, func(o *agent.SupervisorOptions) {
		common(&o.ModelAgentOptions)
		// A delegation spans a whole sub-agent run, which is bounded by the
		// sub-agent's own limits.
		o.ToolTimeout = 0
		o.Description = "Coordinates the data-scientist crew."
		o.Instruction = agent.NewInstructionFromTemplate(supervisorPrompt, vars)
		o.MergeMode = cfg.Agent.MergeMode
	})
}

// Crew is a fully wired crew with its runner and resources.
type Crew struct {
	Supervisor *agent.Supervisor
	Runner     *runner.Runner
	Store      session.Store
	Registry   *prometheus.Registry

	data *datatools.DB
}

// OpenOptions adjusts Open.
type OpenOptions struct {
	// Model overrides the model built from the configuration.
	Model     model.Model
	OnPartial func(agentName string, chunk model.Response)
	Logger    logging.Logger
}

// Open wires the crew described by cfg: the read-only analytics database,
// documentation, output directory, python executor, checkpoint store and
// metrics. Close releases what it opened.
func Open(cfg *config.Config, optFns ...func(o *OpenOptions)) (_ *Crew, err error) {
	opts := OpenOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	llm := opts.Model
	if llm == nil {
		if llm, err = NewModel(cfg.LLM, opts.Logger); err != nil {
			return nil, err
		}
	}

	c := &Crew{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.data, err = datatools.Open(cfg.DataDBPath, func(o *datatools.Options) {
		o.ReadOnly = true
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("open data database: %w", err)
	}

	docs, err := loadDocs(cfg.DocumentationPath)
	if err != nil {
		return nil, err
	}

	artifacts, err := artifact.NewDirStore(cfg.OutputDirectory)
	if err != nil {
		return nil, err
	}

	executor := code.NewPythonExecutor(func(o *code.PythonExecutorOptions) {
		o.Interpreter = cfg.PythonBin
		o.WorkDir = absPath(cfg.OutputDirectory)
		if cfg.Agent.ToolTimeout > 0 {
			o.Timeout = cfg.Agent.ToolTimeout
		}
		o.Logger = opts.Logger
	})

	c.Store, err = OpenStore(cfg.Checkpoint, opts.Logger)
	if err != nil {
		return nil, err
	}

	c.Supervisor, err = New(cfg, llm, Deps{
		Data:      c.data,
		Docs:      docs,
		Artifacts: artifacts,
		Executor:  executor,
		Callbacks: metrics.NewRecorder(c.Registry).Callbacks(),
		OnPartial: opts.OnPartial,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	c.Runner = runner.New(c.Supervisor, func(o *runner.Options) {
		o.Store = c.Store
		o.Logger = opts.Logger
	})

	return c, nil
}

// Close releases the checkpoint store and the analytics database.
func (c *Crew) Close() error {
	var errs []error

	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}

	if c.data != nil {
		errs = append(errs, c.data.Close())
	}

	return errors.Join(errs...)
}

// OpenStore opens the checkpoint store selected by cfg. SQLite stores are
// fronted by a cache when CacheSize is positive.
func OpenStore(cfg config.CheckpointConfig, logger logging.Logger) (session.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return session.NewInMemoryStore(), nil
	case config.BackendSQLite:
		store, err := session.NewSQLiteStore(cfg.DBPath, func(o *session.SQLiteOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}

		if cfg.CacheSize <= 0 {
			return store, nil
		}

		cached, err := session.NewCachedStore(store, cfg.CacheSize)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open checkpoint cache: %w", err)
		}

		return cached, nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.Backend)
	}
}

func loadDocs(path string) (*memory.InMemoryStore, error) {
	docs := memory.NewInMemoryStore(memory.DefaultDocuments(time.Now())...)

	if path == "" {
		return docs, nil
	}

	extra, err := memory.LoadDocuments(afero.NewOsFs(), path)
	if err != nil {
		return nil, err
	}

	for _, d := range extra {
		docs.Store(d)
	}

	return docs, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
