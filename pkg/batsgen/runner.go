package batsgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		runTargets  map[string]bool
		projectRoot string
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

func getTargetEnv(target *Target, tmpDir string) expand.Environ {
	envVars := os.Environ()

	for name, value := range target.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	envVars = append(envVars, "TEST_TMPDIR="+tmpDir)
	return expand.ListEnviron(envVars...)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// RunTarget executes the given target through the embedded shell runtime.
// Suite targets run their members in declaration order and stop at the first
// failure. With dryRun set, each statement is printed but nothing executes.
func RunTarget(ctx context.Context, projectRoot, name string, targets TargetList, dryRun bool) error {
	rctx := runtimeCtx{
		projectRoot: projectRoot,
		runTargets:  make(map[string]bool),
	}

	ctx = context.WithValue(ctx, runtimeCtxKey{}, &rctx)
	target, found := targets[name]
	if !found {
		return eris.Errorf("Target %s not found", name)
	}

	return runTargetInternal(ctx, target, targets, dryRun)
}

func runTargetInternal(ctx context.Context, target *Target, targets TargetList, dryRun bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	status, ok := rctx.runTargets[target.Name]
	if ok {
		if status {
			// this target has already been run
			log(ctx).Debug().Msgf("Target %s already run", target.Name)
			return nil
		}

		return eris.Errorf("Target %s was called recursively", target.Name)
	}

	rctx.runTargets[target.Name] = false

	for _, member := range target.Members {
		memberTarget, ok := targets[member]
		if !ok {
			return eris.Errorf("Target %s not found", member)
		}

		err := runTargetInternal(ctx, memberTarget, targets, dryRun)
		if err != nil {
			return eris.Wrapf(err, "Suite %s failed in member %s", target.Name, member)
		}
	}

	if len(target.Srcs) > 0 {
		err := runScriptTarget(ctx, target, dryRun)
		if err != nil {
			return err
		}
	}

	rctx.runTargets[target.Name] = true
	return nil
}

func runScriptTarget(ctx context.Context, target *Target, dryRun bool) error {
	script := AssembleScript(target, ":")

	parser := syntax.NewParser()
	parsed, err := parser.Parse(strings.NewReader(script), target.Name)
	if err != nil {
		return eris.Wrapf(err, "failed to parse the entrypoint for %s", target.Name)
	}

	tmpDir, err := os.MkdirTemp("", "batsgen-")
	if err != nil {
		return eris.Wrap(err, "failed to create the test temp directory")
	}
	defer os.RemoveAll(tmpDir)

	base := target.Base
	if base == "" {
		base = getRuntimeCtx(ctx).projectRoot
	}

	runner, err := interp.New(
		interp.Dir(base),
		interp.Env(getTargetEnv(target, tmpDir)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, stmt := range parsed.Stmts {
		strBuffer.Reset()
		err = printer.Print(&strBuffer, stmt)
		if err != nil {
			return eris.Wrapf(err, "failed to render a statement for %s", target.Name)
		}

		log(ctx).Info().
			Str("target", target.Name).
			Bool("command", true).
			Msg(strBuffer.String())

		if dryRun {
			continue
		}

		err = runner.Run(ctx, stmt)
		if err != nil {
			return err
		}

		if runner.Exited() {
			return nil
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
