// jobs ejecuta y consulta los jobs de mantenimiento fuera del servidor HTTP.
// Comparte el lock con las réplicas del API, así que es seguro lanzarlo desde cron.
//
// Uso:
//
//	go run ./cmd/jobs list
//	go run ./cmd/jobs run <nombre> [payload-json]
//	go run ./cmd/jobs retry <nombre> [payload-json]
//	go run ./cmd/jobs dead-letters [limit]
//	go run ./cmd/jobs replay <dead-letter-id>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/bootstrap"
	"github.com/jhoicas/invorya-core/pkg/config"
	"github.com/jhoicas/invorya-core/pkg/logger"
)

const usage = `uso: jobs <comando> [argumentos]

comandos:
  list                          jobs registrados
  run <nombre> [payload-json]   ejecuta con lock y dead letter
  retry <nombre> [payload-json] solo reintentos, sin lock
  dead-letters [limit]          dead letters recientes
  replay <id>                   reintenta un dead letter
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer deps.Close()

	out, err := dispatch(ctx, deps.Runner, os.Args[1], os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		deps.Close()
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir salida: %v\n", err)
	}
}

func dispatch(ctx context.Context, runner *jobs.Runner, cmd string, args []string) (any, error) {
	switch cmd {
	case "list":
		return runner.ListJobs(), nil
	case "run", "retry":
		if len(args) < 1 {
			return nil, fmt.Errorf("%s: falta el nombre del job", cmd)
		}
		var payload json.RawMessage
		if len(args) > 1 {
			if !json.Valid([]byte(args[1])) {
				return nil, fmt.Errorf("%s: el payload no es JSON válido", cmd)
			}
			payload = json.RawMessage(args[1])
		}
		if cmd == "run" {
			return runner.RunJob(ctx, args[0], payload)
		}
		return attemptOutput(runner.RetryJob(ctx, args[0], payload))
	case "dead-letters":
		limit := 20
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("dead-letters: limit inválido %q", args[0])
			}
			limit = n
		}
		return runner.ListDeadLetters(ctx, limit, 0)
	case "replay":
		if len(args) < 1 {
			return nil, fmt.Errorf("replay: falta el id del dead letter")
		}
		return attemptOutput(runner.ReplayDeadLetter(ctx, args[0]))
	default:
		return nil, fmt.Errorf("comando desconocido %q\n\n%s", cmd, usage)
	}
}

type attemptView struct {
	Attempts int `json:"attempts"`
	Result   any `json:"result,omitempty"`
}

// attemptOutput un intento fallido se reporta como error (código de salida 1).
func attemptOutput(res jobs.AttemptResult, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, fmt.Errorf("%d intento(s): %w", res.Attempts, res.Err)
	}
	return attemptView{Attempts: res.Attempts, Result: res.Result}, nil
}
