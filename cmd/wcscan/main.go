// Command wcscan is a thin reference CLI for the scanner core. Per
// spec.md §1, command-line parsing and logging setup are external
// collaborators; this binary wires the three verbs named in spec.md §6's
// CLI boundary to the scanner/scanconfig packages and contains no scanning
// logic of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"

	"github.com/nsisonglabs/webcachescan/lib/httpclient"
	"github.com/nsisonglabs/webcachescan/lib/scanconfig"
	"github.com/nsisonglabs/webcachescan/lib/scanner"
)

type scanArgs struct {
	Threads   int     `flag:"threads,default=10,Number of concurrent probe families"`
	Timeout   int     `flag:"timeout,default=30,Per-request timeout in seconds"`
	Insecure  bool    `flag:"insecure,default=false,Skip TLS certificate verification"`
	RateLimit float64 `flag:"rate-limit,default=0,Requests per second (0 disables the limiter)"`
}

type configArgs struct {
	Path string `flag:"config,Path to a configuration file"`
}

func main() {
	var scan scanArgs
	var validate, generate configArgs

	root := &command.C{
		Name: "wcscan",
		Help: "Web cache vulnerability scanner (core library reference CLI).",
		Commands: []*command.C{
			{
				Name:     "scan",
				Usage:    "scan <target-url>",
				Help:     "Scan a target for web cache vulnerabilities.",
				SetFlags: command.Flags(flax.MustBind, &scan),
				Run:      func(env *command.Env) error { return runScan(env, &scan) },
			},
			{
				Name:     "validate-config",
				Usage:    "validate-config --config <path>",
				Help:     "Validate a configuration file.",
				SetFlags: command.Flags(flax.MustBind, &validate),
				Run:      func(env *command.Env) error { return runValidateConfig(&validate) },
			},
			{
				Name:     "generate-config",
				Usage:    "generate-config --config <path>",
				Help:     "Write a default configuration file.",
				SetFlags: command.Flags(flax.MustBind, &generate),
				Run:      func(env *command.Env) error { return runGenerateConfig(&generate) },
			},
		},
	}

	command.RunOrFail(root.NewEnv(nil), os.Args[1:])
}

func runScan(env *command.Env, args *scanArgs) error {
	targets := env.Args
	if len(targets) != 1 {
		return fmt.Errorf("scan requires exactly one target URL")
	}

	s, err := scanner.New(scanner.Config{
		HTTP: httpclient.Config{
			Timeout:         time.Duration(args.Timeout) * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			VerifySSL:       !args.Insecure,
			RateLimit:       args.RateLimit,
		},
		Concurrency: args.Threads,
	})
	if err != nil {
		return fmt.Errorf("constructing scanner: %w", err)
	}

	result, err := s.Scan(context.Background(), targets[0])
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("scanned %s: %d findings, %d requests sent, %v elapsed\n",
		result.Target, len(result.Findings), result.RequestsSent, result.Duration)
	for _, f := range result.Findings {
		fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Kind, f.Description)
	}
	return nil
}

func runValidateConfig(args *configArgs) error {
	cfg, err := scanconfig.Load(args.Path)
	if err != nil {
		return err
	}
	if err := scanconfig.Validate(cfg); err != nil {
		return err
	}
	fmt.Println("config OK")
	return nil
}

func runGenerateConfig(args *configArgs) error {
	if err := scanconfig.GenerateDefault(args.Path); err != nil {
		return err
	}
	fmt.Println("wrote", args.Path)
	return nil
}
