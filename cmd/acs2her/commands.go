package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/acs2"
	"github.com/cartridge/acs2her/internal/agent"
	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/env"
	"github.com/cartridge/acs2her/internal/events"
	httpServer "github.com/cartridge/acs2her/internal/http"
	"github.com/cartridge/acs2her/internal/metrics"
	"github.com/cartridge/acs2her/internal/report"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "acs2her",
		Short: "Goal-conditioned ACS2 with hindsight experience replay",
		Long: `acs2her trains an anticipatory classifier system on goal-based tasks.

Explore trials store real and relabeled transitions in a bounded replay
memory and learn from sampled minibatches. Exploit trials act greedily
towards the environment goal and update rewards online.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(os.Stdout, viper.New()))
	return root
}

// newRunCommand binds its flags into v. Environment variables prefixed with
// ACS2HER_ override the flag defaults.
func newRunCommand(out io.Writer, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train on the bit-flipping task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, run, err := loadSettings(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(out, run)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err = runExperiment(ctx, cfg, run, logger)
			return err
		},
	}

	cfg := config.Default(4, 4)
	run := config.DefaultRun()
	flags := cmd.Flags()

	flags.String("config", "", "Optional config file (yaml, toml or json)")

	// Environment
	flags.Int("bits", run.Bits, "Number of bits in the bit-flipping task")
	flags.Int("max_steps", run.MaxSteps, "Steps before a trial is cut off")

	// Trial schedule
	flags.Int("explore_trials", run.ExploreTrials, "Explore trials to run")
	flags.Int("exploit_trials", run.ExploitTrials, "Exploit trials to run")
	flags.Bool("interleave", run.Interleave, "Alternate explore and exploit trials instead of running two phases")
	flags.Uint64("seed", run.Seed, "Random seed (0 derives one from the clock)")

	// Reporting
	flags.Int("metrics_window", run.MetricsWindow, "Trials included in summaries")
	flags.String("plot_path", run.PlotPath, "Write a learning curve to this file")
	flags.String("status_addr", run.StatusAddr, "Serve the status API on this address")
	flags.Duration("status_linger", run.StatusLinger, "Keep the status API up this long after training")

	// Events
	flags.String("events_url", run.EventsURL, "Publish trial events to this NATS server")
	flags.String("events_subject", run.EventsSubject, "NATS subject prefix for trial events")

	// Logging
	flags.String("log_level", run.LogLevel, "Log level (debug, info, warn, error)")
	flags.Bool("log_pretty", run.LogPretty, "Human readable console logs")

	// Agent
	flags.String("classifier_wildcard", cfg.ClassifierWildcard, "Wildcard symbol")
	flags.Float64("theta_i", cfg.ThetaI, "Inadequacy threshold")
	flags.Float64("theta_r", cfg.ThetaR, "Reliability threshold")
	flags.Int("theta_exp", cfg.ThetaExp, "Experience needed to subsume")
	flags.Int("u_max", cfg.UMax, "Maximum specified attributes in a condition")
	flags.Float64("beta", cfg.Beta, "Learning rate")
	flags.Float64("gamma", cfg.Gamma, "Discount factor")
	flags.Float64("epsilon", cfg.Epsilon, "Exploration probability")
	flags.String("explore_policy", cfg.ExplorePolicy, "Explore trial action selection (random, best_action, epsilon_greedy)")
	flags.Bool("do_ga", cfg.DoGA, "Enable genetic generalization")
	flags.Int("theta_ga", cfg.ThetaGA, "Time between GA applications in an action set")
	flags.Float64("mu", cfg.Mu, "Mutation probability")
	flags.Float64("chi", cfg.Chi, "Crossover probability")
	flags.Int("theta_as", cfg.ThetaAS, "Action set size limit")
	flags.Bool("do_subsumption", cfg.DoSubsumption, "Enable subsumption")
	flags.Int("er_buffer_size", cfg.ERBufferSize, "Replay memory capacity")
	flags.Int("er_samples_number", cfg.ERSamplesNumber, "Minibatch size per replay update")
	flags.String("her_strategy", string(cfg.HERStrategy), "Hindsight goal strategy (final, future, episode)")
	flags.Int("her_goals_number", cfg.HERGoalsNumber, "Hindsight goals per transition")

	// Bind flags to viper for environment variable support
	v.BindPFlags(flags)
	v.SetEnvPrefix("ACS2HER")
	v.AutomaticEnv()

	return cmd
}

// loadSettings reads the optional config file and decodes every bound key.
// The classifier layout always follows the number of bits.
func loadSettings(v *viper.Viper) (*config.Config, *config.Run, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	run := config.DefaultRun()
	if err := v.Unmarshal(run); err != nil {
		return nil, nil, fmt.Errorf("decode run settings: %w", err)
	}
	if err := run.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid run settings: %w", err)
	}

	cfg := config.Default(run.Bits, run.Bits)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("decode agent settings: %w", err)
	}
	cfg.ClassifierLength = 2 * run.Bits
	cfg.NumberOfPossibleActions = run.Bits
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid agent settings: %w", err)
	}
	return cfg, run, nil
}

func newLogger(out io.Writer, run *config.Run) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(run.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	if run.LogPretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// runExperiment trains on the bit-flipping task. Cancelling ctx stops
// training between trials; summaries and the plot are still produced.
func runExperiment(ctx context.Context, cfg *config.Config, run *config.Run, logger zerolog.Logger) (*metrics.Collector, error) {
	seed := run.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	runID := uuid.NewString()

	bitflip, err := env.NewBitFlip(run.Bits, run.MaxSteps, rand.NewSource(seed))
	if err != nil {
		return nil, err
	}
	population := acs2.NewPopulation(cfg, rand.NewSource(seed+1))
	collector := metrics.NewCollector(logger, run.MetricsWindow)
	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithObserver(collector),
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if run.EventsURL != "" {
		nc, err := events.NewNATSPublisher(run.EventsURL, run.EventsSubject, logger)
		if err != nil {
			return nil, fmt.Errorf("connect events: %w", err)
		}
		defer nc.Close()
		publisher = nc
		opts = append(opts, agent.WithObserver(events.NewTrialObserver(ctx, runID, publisher, logger)))
	}

	a, err := agent.New(cfg, population, rand.NewSource(seed+2), opts...)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	defer a.Close()

	logger.Info().
		Str("run_id", runID).
		Uint64("seed", seed).
		Int("bits", run.Bits).
		Str("her_strategy", string(a.Config().HERStrategy)).
		Msg("Starting experiment")

	var statusErr chan error
	statusCtx, stopStatus := context.WithCancel(context.Background())
	defer stopStatus()
	if run.StatusAddr != "" {
		statusErr = make(chan error, 1)
		srv := httpServer.NewServer(collector, a.Memory(), logger)
		go func() { statusErr <- srv.ListenAndServe(statusCtx, run.StatusAddr, 5*time.Second) }()
	}

	err = train(ctx, a, bitflip, run)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("Shutdown signal received, training stopped")
		err = nil
	}
	if err != nil {
		return collector, err
	}

	collector.LogSummary()
	if err := events.PublishSummaries(ctx, runID, publisher, collector); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish summaries")
	}
	logger.Info().
		Int("population", population.Size()).
		Int("reliable", len(population.Reliable())).
		Int("time", a.Time()).
		Msg("Training finished")

	if run.PlotPath != "" {
		if err := report.LearningCurve(run.PlotPath, fmt.Sprintf("%d-bit flipping", run.Bits), collector.Trials(nil)); err != nil {
			return collector, fmt.Errorf("learning curve: %w", err)
		}
		logger.Info().Str("path", run.PlotPath).Msg("Learning curve written")
	}

	if statusErr != nil {
		if run.StatusLinger > 0 {
			select {
			case <-time.After(run.StatusLinger):
			case <-ctx.Done():
			case err := <-statusErr:
				return collector, err
			}
		}
		stopStatus()
		if err := <-statusErr; err != nil {
			return collector, fmt.Errorf("status server: %w", err)
		}
	}
	return collector, nil
}

func train(ctx context.Context, a *agent.Agent, e agent.Environment, run *config.Run) error {
	if run.Interleave {
		_, err := a.ExploreExploit(ctx, e, run.ExploreTrials+run.ExploitTrials)
		return err
	}
	if _, err := a.Explore(ctx, e, run.ExploreTrials); err != nil {
		return err
	}
	_, err := a.Exploit(ctx, e, run.ExploitTrials)
	return err
}
