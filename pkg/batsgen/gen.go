package batsgen

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// GenerateOptions controls where entrypoint scripts and staged helper
// libraries end up and how the PATH export is assembled.
type GenerateOptions struct {
	// OutDir receives one executable entrypoint script per target.
	OutDir string
	// HelperSources maps logical helper names to their source directories.
	// Usually filled from the build script's helper_lib() declarations.
	HelperSources map[string]string
	// PathSeparator joins the PATH entries; ":" when empty.
	PathSeparator string
}

// helperStagingDir is the scratch directory the helper libraries are copied to.
const helperStagingDir = "helpers"

// AssembleScript renders the entrypoint script for a single target. Pure;
// suite targets (which have members instead of srcs) render an empty string.
func AssembleScript(target *Target, pathSeparator string) string {
	if len(target.Members) > 0 {
		return ""
	}

	if pathSeparator == "" {
		pathSeparator = ":"
	}

	cmdLine := RenderCommandLine(ScriptSpec{
		Interpreter: target.Interpreter,
		Args:        target.Args,
		TestPaths:   target.Srcs,
	})

	return RenderLaunchScript(LaunchEnvironment{
		DependencyFiles: target.Deps,
		PathSeparator:   pathSeparator,
		TmpDirVar:       DefaultTmpDirVar,
	}, cmdLine)
}

// EntrypointName returns the file name of a target's generated script.
func EntrypointName(target *Target) string {
	name := strings.NewReplacer("#", "-", "/", "-").Replace(target.Name)
	return name + ".sh"
}

// Generate writes the entrypoint script for every runnable target in the
// list and stages the helper libraries once if any target asks for them.
func Generate(ctx context.Context, targets TargetList, opts GenerateOptions) error {
	err := os.MkdirAll(opts.OutDir, 0o755)
	if err != nil {
		return eris.Wrapf(err, "failed to create the output directory %s", opts.OutDir)
	}

	needHelpers := false
	entrypoints := make(map[string]string, len(targets))
	for _, target := range targets {
		script := AssembleScript(target, opts.PathSeparator)
		if script == "" {
			continue
		}

		err = ValidateScript(target.Name, script)
		if err != nil {
			return err
		}

		fileName := EntrypointName(target)
		if other, ok := entrypoints[fileName]; ok {
			return eris.Errorf("targets %s and %s both map to the entrypoint %s", other, target.Name, fileName)
		}
		entrypoints[fileName] = target.Name

		dest := filepath.Join(opts.OutDir, fileName)
		err = atomicWrite(dest, []byte(script), 0o755)
		if err != nil {
			return eris.Wrapf(err, "failed to write the entrypoint for %s", target.Name)
		}

		log(ctx).Info().
			Str("target", target.Name).
			Str("path", dest).
			Msgf("wrote entrypoint to %s", dest)

		if target.UsesAssert {
			needHelpers = true
		}
	}

	if needHelpers {
		actions, err := PlanStaging(HelperStagingSpec{
			Sources:  opts.HelperSources,
			DestRoot: filepath.Join(opts.OutDir, helperStagingDir),
		})
		if err != nil {
			return err
		}

		err = ExecuteStaging(ctx, actions)
		if err != nil {
			return err
		}
	}

	return nil
}

// atomicWrite writes data through a tmp file and a rename so a crashed run
// never leaves a half-written entrypoint behind.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	err := os.WriteFile(tmp, data, perm)
	if err != nil {
		return err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}
