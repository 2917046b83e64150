package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	logger "github.com/Easy-Infra-Ltd/easy-logger"

	"github.com/Liad0205/safe-mcp/src/config"
	"github.com/Liad0205/safe-mcp/src/guard"
	"github.com/Liad0205/safe-mcp/src/sanitizer"
	"github.com/Liad0205/safe-mcp/src/server"
)

func main() {
	log := logger.CreateLoggerFromEnv(nil, "blue").With("process", "safemcp")

	cfgPath := "config.json"
	explicit := len(os.Args) > 1
	if explicit {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	if err := registerDemoTools(srv); err != nil {
		fmt.Fprintf(os.Stderr, "register: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// registerDemoTools adds one tool per guard pattern: trusted and
// untrusted marking, sanitization of untrusted output, input validation,
// a custom sanitizer pipeline, and a fully chained tool.
func registerDemoTools(srv *server.Server) error {
	tools := []server.Tool{
		{
			Name:        "get_internal_data",
			Description: "Fetch data from a trusted internal source.",
			InputSchema: objectSchema(map[string]any{
				"user_id": map[string]any{"type": "string"},
			}, "user_id"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"user_id": args["user_id"], "info": "internal only"}, nil
			},
			Stages: []guard.Stage{guard.Safe()},
		},
		{
			Name:        "fetch_external_api",
			Description: "Fetch data from an external API.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string"},
			}, "query"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"query": args["query"], "result": "external data"}, nil
			},
			Stages: []guard.Stage{guard.Unsafe()},
		},
		{
			Name:        "search_user_content",
			Description: "Search user-generated content.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string"},
			}, "query"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"query": args["query"], "content": "<script>alert('xss')</script>"}, nil
			},
			Stages:   []guard.Stage{guard.Unsafe()},
			Sanitize: true,
		},
		{
			Name:        "add_positive_numbers",
			Description: "Add two positive numbers.",
			InputSchema: objectSchema(map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			}, "a", "b"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				a, _ := numberArg(args, "a")
				b, _ := numberArg(args, "b")
				return a + b, nil
			},
			Stages: []guard.Stage{
				guard.ValidateInputs(guard.Predicate{
					Name: "is_positive",
					Check: func(args map[string]any) bool {
						a, okA := numberArg(args, "a")
						b, okB := numberArg(args, "b")
						return okA && okB && a > 0 && b > 0
					},
				}),
				guard.Safe(),
			},
		},
		{
			Name:        "process_text",
			Description: "Process text with encoded-content filtering.",
			InputSchema: objectSchema(map[string]any{
				"text": map[string]any{"type": "string"},
			}, "text"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"processed": args["text"]}, nil
			},
			Stages: []guard.Stage{
				guard.Unsafe(),
				guard.Sanitize(sanitizer.NewBasic(sanitizer.DefaultScanners(), sanitizer.Options{
					FilterDetectedEncodings: true,
				})),
			},
		},
		{
			Name:        "handle_user_input",
			Description: "Echo user input behind the full guard chain.",
			InputSchema: objectSchema(map[string]any{
				"x": map[string]any{"type": "string"},
			}, "x"),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"echo": args["x"]}, nil
			},
			Stages: []guard.Stage{
				guard.ValidateInputs(guard.Predicate{
					Name: "short_string",
					Check: func(args map[string]any) bool {
						s, ok := args["x"].(string)
						return ok && len(s) < 100
					},
				}),
				guard.Unsafe(),
			},
			Sanitize: true,
		},
	}

	for _, t := range tools {
		if err := srv.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// numberArg reads a numeric argument. JSON numbers decode as float64;
// ints appear when a caller passes pre-decoded arguments.
func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
