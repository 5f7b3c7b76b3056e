// Package cmd implements a simple CLI for the batsgen package
package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/batsgen/pkg/batsgen"
)

// buildFileName is the build script this command searches for.
const buildFileName = "tests.star"

// cacheFileName sits next to the build script and caches its evaluation.
const cacheFileName = ".batsgen.cache"

var RootCmd = &cobra.Command{
	Use:   "batsgen",
	Short: "Test target generator for bats suites",
	Long: `This command parses the first tests.star file it finds and generates or runs
the bats test targets it declares.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(genCmd)
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(listCmd)

	genCmd.Flags().StringP("out", "o", "bats-out", "directory for the generated entrypoint scripts")
	genCmd.Flags().StringArray("helper", nil, "helper library source in the form name=dir (overrides helper_lib declarations)")
	runCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
}

func setupContext() (context.Context, zerolog.Logger) {
	logger := zerolog.New(NewConsoleWriter())
	ctx := batsgen.WithLogger(context.Background(), &logger)
	return ctx, logger
}

// findBuildFile walks up from the working directory until it finds a
// tests.star file and returns its path relative to the working directory.
func findBuildFile(logger zerolog.Logger) string {
	wd, err := os.Getwd()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to retrieve the current working directory")
	}

	path := wd
	var buildPath string
	for {
		buildPath = filepath.Join(path, buildFileName)
		_, err := os.Stat(buildPath)
		if err == nil {
			break
		}
		if !eris.Is(err, os.ErrNotExist) {
			logger.Fatal().Err(err).Msgf("Failed to check %s", buildPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			logger.Fatal().Msgf("No %s file found", buildFileName)
		}

		path = parent
	}

	buildPath, err = filepath.Rel(wd, buildPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to simplify path")
	}

	return buildPath
}

// splitOptionArgs separates key=value option settings from target names.
func splitOptionArgs(args []string) ([]string, map[string]string) {
	names := make([]string, 0)
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			names = append(names, part)
		}
	}

	return names, options
}

func loadBuildFile(ctx context.Context, logger zerolog.Logger, options map[string]string) *batsgen.BuildFile {
	buildPath := findBuildFile(logger)
	cachePath := filepath.Join(filepath.Dir(buildPath), cacheFileName)

	if batsgen.CheckCacheFreshness(cachePath, buildPath) == nil {
		cachedOptions, cached, err := batsgen.ReadCache(cachePath)
		if err == nil && maps.Equal(cachedOptions, options) {
			logger.Debug().Msgf("Using cached targets from %s", cachePath)
			return cached
		}
	}

	result, err := batsgen.RunScript(ctx, buildPath, filepath.Dir(buildPath), options, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse targets")
	}

	err = batsgen.WriteCache(cachePath, options, result)
	if err != nil {
		logger.Warn().Err(err).Msgf("Failed to write %s", cachePath)
	}

	return result
}

var genCmd = &cobra.Command{
	Use:   "gen [key=value...]",
	Short: "Generate the entrypoint scripts and stage the helper libraries",
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}

		helperFlags, err := cmd.Flags().GetStringArray("helper")
		if err != nil {
			return err
		}

		ctx, logger := setupContext()
		_, options := splitOptionArgs(args)
		result := loadBuildFile(ctx, logger, options)

		helpers := result.HelperSources
		if helpers == nil {
			helpers = make(map[string]string)
		}
		for _, entry := range helperFlags {
			pos := strings.Index(entry, "=")
			if pos < 0 {
				return eris.Errorf("malformed --helper value %s, expected name=dir", entry)
			}
			helpers[entry[:pos]] = entry[pos+1:]
		}

		err = batsgen.Generate(ctx, result.Targets, batsgen.GenerateOptions{
			OutDir:        outDir,
			HelperSources: helpers,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to generate targets")
		}

		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <target...> [key=value...]",
	Short: "Run the given test targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		ctx, logger := setupContext()
		names, options := splitOptionArgs(args)
		if len(names) == 0 {
			return eris.New("no targets given")
		}

		result := loadBuildFile(ctx, logger, options)
		for _, name := range names {
			err = batsgen.RunTarget(ctx, ".", name, result.Targets, dryRun)
			if err != nil {
				logger.Fatal().Err(err).Msgf("Failed target %s:", name)
			}
		}

		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the declared test targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, logger := setupContext()
		_, options := splitOptionArgs(args)
		result := loadBuildFile(ctx, logger, options)

		fmt.Println("Available targets:")
		maxNameLen := 0
		sortedNames := make([]string, 0)
		for _, target := range result.Targets {
			if target.Hidden {
				continue
			}

			nameLen := len(target.Name)
			if nameLen > maxNameLen {
				maxNameLen = nameLen
			}

			sortedNames = append(sortedNames, target.Name)
		}

		sort.Strings(sortedNames)

		lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
		for _, name := range sortedNames {
			fmt.Printf(lineFmt, name+":", result.Targets[name].Desc)
		}

		return nil
	},
}

func Execute() {
	cobra.CheckErr(RootCmd.Execute())
}
