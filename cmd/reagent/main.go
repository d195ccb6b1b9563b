package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soldano/reagent/internal/adapters/executor"
	"github.com/soldano/reagent/internal/adapters/llm"
	"github.com/soldano/reagent/internal/config"
	"github.com/soldano/reagent/internal/core/domain"
	"github.com/soldano/reagent/internal/core/services"
	"github.com/soldano/reagent/pkg/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "reagent",
		Short: "ReAct agent loop with a workspace tool-execution gateway",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(serveCmd(), askCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// stack bundles the wired services one invocation needs.
type stack struct {
	cfg      config.Config
	logger   *slog.Logger
	agent    *services.ReActAgentService
	gateway  *services.ToolGateway
	eventBus *services.EventBus
}

func buildStack() (*stack, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	ws := services.NewWorkspaceManager(cfg.WorkspaceDir)
	audit := services.NewAuditLog(ws.Root(), logger)

	var remote services.RemoteExecutor
	if cfg.ExecutorURL != "" {
		remote = executor.NewClient(cfg.ExecutorURL)
	}
	runner := services.NewCommandRunner(logger, ws, remote, audit)

	registry, err := services.NewWorkspaceToolRegistry(ws, runner, remote)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	gateway := services.NewToolGateway(logger, registry, cfg.ToolTimeout)

	provider, err := llm.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}

	parser := services.NewToolCallParser(logger)
	agent := services.NewReActAgentService(logger, provider, parser, gateway)

	return &stack{
		cfg:      cfg,
		logger:   logger,
		agent:    agent,
		gateway:  gateway,
		eventBus: services.NewEventBus(logger),
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server exposing the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := buildStack()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				<-sig
				st.logger.Info("shutting down")
				cancel()
			}()

			srv := server.NewServer(st.logger, st.agent, st.gateway, st.eventBus, st.cfg.MaxIterations)
			httpSrv := &http.Server{
				Addr:    st.cfg.ListenAddr,
				Handler: srv.Handler(),
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				st.logger.Info("listening", "addr", st.cfg.ListenAddr)
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func askCmd() *cobra.Command {
	var workingDir string
	var maxIterations int
	var showSteps bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one agent loop invocation and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := buildStack()
			if err != nil {
				return err
			}
			if maxIterations <= 0 {
				maxIterations = st.cfg.MaxIterations
			}

			result, err := st.agent.Run(cmd.Context(), services.RunRequest{
				UserMessage:   args[0],
				MaxIterations: maxIterations,
				WorkingDir:    workingDir,
				OnProgress: func(ev services.ProgressEvent) {
					if ev.Tool != "" {
						fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Stage, ev.Tool)
					}
				},
			})
			if err != nil {
				return err
			}

			if showSteps {
				printSteps(result.Steps)
			}
			fmt.Println(result.FinalAnswer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&workingDir, "workdir", "w", "", "working directory for tool executions")
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "iteration budget for the loop")
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print the reasoning transcript before the answer")
	return cmd
}

func printSteps(steps []domain.ReActStep) {
	for i, step := range steps {
		switch {
		case step.IsFinalAnswer:
			fmt.Fprintf(os.Stderr, "%d. answer\n", i+1)
		case step.Action != "":
			input, _ := json.Marshal(step.ActionInput)
			fmt.Fprintf(os.Stderr, "%d. %s %s\n", i+1, step.Action, input)
		default:
			fmt.Fprintf(os.Stderr, "%d. observation: %s\n", i+1, firstLine(step.Observation))
		}
	}
}

func firstLine(s string) string {
	for i, ch := range s {
		if ch == '\n' {
			return s[:i]
		}
	}
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
